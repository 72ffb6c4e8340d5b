// Package resolution auto-composes ad-hoc queries at execution time: names
// that match a known sub-query in the workspace or the shared library are
// pulled into a WITH clause, everything else is left as a table reference.
//
// Resolution is best effort. Scan and render failures fall back to the
// original query with a diagnostic; only dependency cycles and runaway
// nesting abort the call.
package resolution

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/ctesplit/internal/compose"
	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/internal/scanner"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Config holds Service dependencies. Nil fields get defaults.
type Config struct {
	Scanner  *scanner.Scanner
	Resolver *dag.Resolver
	Composer *compose.Composer
	Logger   *slog.Logger
}

// Service resolves queries against a private and a shared pool.
type Service struct {
	scanner  *scanner.Scanner
	resolver *dag.Resolver
	composer *compose.Composer
	logger   *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	s := &Service{
		scanner:  cfg.Scanner,
		resolver: cfg.Resolver,
		composer: cfg.Composer,
		logger:   cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.scanner == nil {
		s.scanner = scanner.New(scanner.WithLogger(s.logger))
	}
	if s.resolver == nil {
		s.resolver = dag.NewResolver(dag.WithLogger(s.logger))
	}
	if s.composer == nil {
		c, err := compose.New(compose.Config{Logger: s.logger})
		if err != nil {
			return nil, err
		}
		s.composer = c
	}
	return s, nil
}

// Result is the outcome of Resolve.
type Result struct {
	// SQL is the statement to execute: composed, or the original query.
	SQL string `json:"sql"`
	// Composed is false when SQL is the unmodified original.
	Composed bool `json:"composed"`
	// Private and Shared list the names pulled in from each pool, in the
	// order they appear in the WITH clause.
	Private []string `json:"private,omitempty"`
	Shared  []string `json:"shared,omitempty"`
	// Unknown lists referenced names found in neither pool.
	Unknown     []string          `json:"unknown,omitempty"`
	Diagnostics []core.Diagnostic `json:"diagnostics,omitempty"`
}

// Resolve composes query with the sub-queries it references. Both
// snapshots are taken by the caller before the call, so concurrent pool
// edits do not affect it.
func (s *Service) Resolve(query string, private, shared core.Snapshot) (*Result, error) {
	result := &Result{SQL: query}

	scan := s.scanner.ScanWithFallback(query)
	var depthErr *core.DepthExceededError
	if errors.As(scan.Cause, &depthErr) {
		return nil, fmt.Errorf("failed to scan query: %w", scan.Cause)
	}
	if scan.Degraded {
		s.logger.Warn("query could not be scanned, running it unmodified", "error", scan.Cause)
		result.Diagnostics = append(result.Diagnostics, core.NewDiagnostic(core.SeverityWarning, "", scan.Cause))
		return result, nil
	}

	res, err := s.resolver.ResolveTwoPool(scan.Names, private, shared)
	if err != nil {
		return nil, err
	}

	for _, name := range res.Unknown {
		result.Unknown = append(result.Unknown, name)
		result.Diagnostics = append(result.Diagnostics,
			core.NewDiagnostic(core.SeverityInfo, name, &core.UnknownNameError{Name: name}))
	}
	if res.Empty() {
		return result, nil
	}

	sql, err := s.composer.Compose(query, res.Entities())
	if err != nil {
		s.logger.Warn("composition failed, running query unmodified", "error", err)
		result.Diagnostics = append(result.Diagnostics, core.NewDiagnostic(core.SeverityError, "", err))
		return result, nil
	}

	result.SQL = sql
	result.Composed = true
	for _, e := range res.Private {
		result.Private = append(result.Private, e.Name)
	}
	for _, e := range res.Shared {
		result.Shared = append(result.Shared, e.Name)
	}

	s.logger.Debug("resolved query",
		"private", len(result.Private),
		"shared", len(result.Shared),
		"unknown", len(result.Unknown))
	return result, nil
}
