// Package config provides configuration management for the ctesplit CLI.
//
// Values are layered with koanf: built-in defaults, then ctesplit.yaml,
// then CTESPLIT_* environment variables, then explicitly set flags.
package config

import intconfig "github.com/leapstack-labs/ctesplit/internal/config"

// Config holds all CLI configuration options.
type Config struct {
	// StatePath is the SQLite database holding workspaces.
	StatePath string `koanf:"state_path"`
	// LibraryDir is the shared library root.
	LibraryDir string `koanf:"library_dir"`
	// Workspace is the workspace commands operate on.
	Workspace    string `koanf:"workspace"`
	Dialect      string `koanf:"dialect"`
	MaxDepth     int    `koanf:"max_depth"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultStateFile  = intconfig.DefaultStateFile
	DefaultLibraryDir = intconfig.DefaultLibraryDir
	DefaultWorkspace  = intconfig.DefaultWorkspace
	DefaultDialect    = intconfig.DefaultDialect
	DefaultMaxDepth   = intconfig.DefaultMaxDepth
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		StatePath:    DefaultStateFile,
		LibraryDir:   DefaultLibraryDir,
		Workspace:    DefaultWorkspace,
		Dialect:      DefaultDialect,
		MaxDepth:     DefaultMaxDepth,
		OutputFormat: DefaultOutput,
	}
}
