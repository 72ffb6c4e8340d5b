// Package engine orchestrates workspaces: decomposing statements into a
// workspace's private pool, editing that pool, composing it back and
// resolving ad-hoc queries against the pool and the shared library.
//
// The dependency graph is never stored. Every operation rebuilds what it
// needs from the flat entity pool.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/ctesplit/internal/compose"
	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/internal/decompose"
	"github.com/leapstack-labs/ctesplit/internal/library"
	"github.com/leapstack-labs/ctesplit/internal/resolution"
	"github.com/leapstack-labs/ctesplit/internal/scanner"
	"github.com/leapstack-labs/ctesplit/internal/state"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

var errNoLibrary = errors.New("no shared library configured")

// Engine ties the pools to the decompose, compose and resolve machinery.
type Engine struct {
	logger *slog.Logger

	store   state.Store
	library *library.Library

	scanner    *scanner.Scanner
	resolver   *dag.Resolver
	decomposer *decompose.Decomposer
	composer   *compose.Composer
	resolution *resolution.Service

	// serializes read-check-write sequences on the private pools
	mu sync.Mutex
}

// Config holds engine configuration.
type Config struct {
	// StatePath is the path to the SQLite state database (":memory:" for a
	// throwaway one).
	StatePath string
	// LibraryDir is the shared library root. Empty disables the library.
	LibraryDir string
	// Dialect selects identifier quoting and validation of composed SQL.
	Dialect string
	// MaxDepth bounds nesting during scans and dependency chains during
	// resolution. Zero uses the defaults.
	MaxDepth int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New opens the state store and wires the components.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "state", cfg.StatePath, "library", cfg.LibraryDir, "dialect", cfg.Dialect)

	sc := scanner.New(scanner.WithMaxDepth(cfg.MaxDepth), scanner.WithLogger(logger))
	resolver := dag.NewResolver(dag.WithMaxDepth(cfg.MaxDepth), dag.WithLogger(logger))

	composer, err := compose.New(compose.Config{Dialect: cfg.Dialect, Resolver: resolver, Logger: logger})
	if err != nil {
		return nil, err
	}
	svc, err := resolution.New(resolution.Config{
		Scanner:  sc,
		Resolver: resolver,
		Composer: composer,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	var lib *library.Library
	if cfg.LibraryDir != "" {
		lib = library.New(library.Config{Dir: cfg.LibraryDir, Scanner: sc, Logger: logger})
	}

	return &Engine{
		logger:     logger,
		store:      store,
		library:    lib,
		scanner:    sc,
		resolver:   resolver,
		decomposer: decompose.New(decompose.Config{Scanner: sc, Resolver: resolver, Logger: logger}),
		composer:   composer,
		resolution: svc,
	}, nil
}

// Close releases the state store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Library returns the shared library, or nil when none is configured.
func (e *Engine) Library() *library.Library {
	return e.library
}

// Store returns the state store.
func (e *Engine) Store() state.Store {
	return e.store
}

// Composer returns the composer used for rendering.
func (e *Engine) Composer() *compose.Composer {
	return e.composer
}

func (e *Engine) sharedSnapshot() (core.Snapshot, error) {
	if e.library == nil {
		return core.NewSnapshot(nil), nil
	}
	snap, err := core.SnapshotOf(e.library)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load shared library: %w", err)
	}
	return snap, nil
}

func (e *Engine) privateSnapshot(ws *core.Workspace) (core.Snapshot, error) {
	snap, err := core.SnapshotOf(e.store.Pool(ws.ID))
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to load workspace %q: %w", ws.Name, err)
	}
	return snap, nil
}
