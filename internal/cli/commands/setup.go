package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/ctesplit/internal/cli/config"
	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/leapstack-labs/ctesplit/internal/engine"
	"github.com/leapstack-labs/ctesplit/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Workspace returns the configured workspace, creating it on first use.
func (c *CommandContext) Workspace() (*core.Workspace, error) {
	return c.Engine.EnsureWorkspace(c.Cfg.Workspace)
}

// Helper functions shared across commands

// getConfig returns the current configuration, or the defaults when
// commands run without the root command (as in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	// Ensure state directory exists
	if cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	return engine.New(engine.Config{
		StatePath:  cfg.StatePath,
		LibraryDir: cfg.LibraryDir,
		Dialect:    cfg.Dialect,
		MaxDepth:   cfg.MaxDepth,
		Logger:     logger,
	})
}

// readInput reads SQL from the file named by the first argument, or from
// stdin when there is no argument or it is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	sql := strings.TrimSpace(string(data))
	if sql == "" {
		return "", fmt.Errorf("no SQL given")
	}
	return sql, nil
}

func entityInfo(e *core.Entity, pool string, withBody bool) output.EntityInfo {
	info := output.EntityInfo{
		Name:          e.Name,
		Pool:          pool,
		Description:   e.Description,
		Dependencies:  e.Dependencies,
		Columns:       e.Columns,
		OutputColumns: e.OutputColumns,
		Recursive:     e.Recursive,
	}
	if info.Dependencies == nil {
		info.Dependencies = []string{}
	}
	if withBody {
		info.Body = e.Body
	}
	if !e.UpdatedAt.IsZero() {
		info.UpdatedAt = e.UpdatedAt.Format(time.RFC3339)
	}
	return info
}

func diagnosticInfos(diags []core.Diagnostic) []output.DiagnosticInfo {
	out := make([]output.DiagnosticInfo, 0, len(diags))
	for _, d := range diags {
		out = append(out, output.DiagnosticInfo{Severity: d.Severity.String(), Name: d.Name, Message: d.Message})
	}
	return out
}

// printDiagnostics writes warnings and errors to stderr; info diagnostics
// only show with --verbose.
func printDiagnostics(r *output.Renderer, diags []core.Diagnostic, verbose bool) {
	for _, d := range diags {
		if d.Severity == core.SeverityInfo && !verbose {
			continue
		}
		msg := d.Message
		if d.Name != "" && !strings.Contains(msg, d.Name) {
			msg = d.Name + ": " + msg
		}
		r.Warning(msg)
	}
}

// entityRows formats entities as table rows.
func entityRows(entities []*core.Entity) [][]string {
	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []string{e.Name, output.FormatList(e.Dependencies), output.FormatList(e.OutputColumns)})
	}
	return rows
}

var entityHeader = []string{"Name", "Depends On", "Columns"}
