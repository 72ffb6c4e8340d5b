// Package config holds the project-level configuration defaults and config
// file discovery shared by the CLI and anything else that needs to locate a
// ctesplit project.
package config

import (
	"fmt"
	"strings"
)

// Default configuration values.
const (
	DefaultStateFile  = ".ctesplit/state.db"
	DefaultLibraryDir = "library"
	DefaultWorkspace  = "default"
	DefaultDialect    = "ansi"
	DefaultMaxDepth   = 64
)

// Dialects lists the dialect names accepted for composed SQL.
var Dialects = []string{"ansi", "postgres", "duckdb", "sqlite", "mysql", "tidb"}

// ValidateDialect checks that name is a known dialect.
func ValidateDialect(name string) error {
	for _, d := range Dialects {
		if strings.EqualFold(d, name) {
			return nil
		}
	}
	return fmt.Errorf("unknown dialect %q (expected one of: %s)", name, strings.Join(Dialects, ", "))
}

// ValidateMaxDepth checks the nesting bound.
func ValidateMaxDepth(depth int) error {
	if depth < 1 || depth > 10000 {
		return fmt.Errorf("max_depth must be between 1 and 10000, got %d", depth)
	}
	return nil
}
