// Package core defines the shared language of the ctesplit system.
//
// This package contains:
//   - Domain entities (Entity, Snapshot, Binding, Workspace)
//   - Persistence contracts (EntityStore, SharedStore)
//   - Error kinds shared by every component (SyntaxError, CircularDependencyError, ...)
//   - Diagnostics recorded by best-effort operations
//
// The Golden Rule: pkg/core imports only the standard library and golang.org/x/text.
// All other packages depend on core, not the reverse.
package core
