package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/leapstack-labs/ctesplit/internal/engine"
	"github.com/spf13/cobra"
)

// NewLibraryCommand creates the library command group.
func NewLibraryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"lib"},
		Short:   "Manage the shared sub-query library",
		Long: `Manage the shared library: a directory of .sql files, one sub-query per
file, available to every workspace. A private sub-query with the same
name takes precedence over a library one.

Each file may start with a YAML header between "---" lines:

  ---
  name: revenue
  description: Paid order totals
  dependencies: [orders]
  ---
  SELECT ...`,
	}

	cmd.AddCommand(newLibraryListCommand())
	cmd.AddCommand(newLibraryShowCommand())
	cmd.AddCommand(newLibraryPublishCommand())
	cmd.AddCommand(newLibraryRefreshCommand())
	cmd.AddCommand(newLibraryWatchCommand())

	return cmd
}

func newLibraryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List library sub-queries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entities, err := cmdCtx.Engine.LibraryEntities()
			if err != nil {
				return fmt.Errorf("failed to list library: %w", err)
			}
			return renderEntityList(cmdCtx.Renderer, "library", "shared", entities)
		},
	}
}

func newLibraryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one library sub-query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			e, err := cmdCtx.Engine.LibraryEntity(args[0])
			if err != nil {
				return err
			}
			return renderEntity(cmdCtx.Renderer, e, "shared", nil)
		},
	}
}

func newLibraryPublishCommand() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "publish <name>",
		Short: "Copy a workspace sub-query into the library",
		Long: `Copy a private sub-query into the shared library. Every sub-query it
depends on must already be in the library, so that library sub-queries
never depend on a workspace.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cmdCtx.Workspace()
			if err != nil {
				return err
			}
			e, err := cmdCtx.Engine.Publish(ws.ID, args[0], overwrite)
			if err != nil {
				var pubErr *engine.PublishError
				if errors.As(err, &pubErr) {
					return fmt.Errorf("%w (publish those first)", err)
				}
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(entityInfo(e, "shared", false))
			}
			r.Success(fmt.Sprintf("published %s to %s", e.Name, cmdCtx.Cfg.LibraryDir))
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing library sub-query")

	return cmd
}

func newLibraryRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload changed library files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Engine.RefreshLibrary(); err != nil {
				return fmt.Errorf("failed to refresh library: %w", err)
			}
			entities, err := cmdCtx.Engine.LibraryEntities()
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.ResultOutput{Status: "refreshed", Message: fmt.Sprintf("%d sub-queries", len(entities))})
			}
			r.Success(fmt.Sprintf("library has %d sub-queries", len(entities)))
			return nil
		},
	}
}

func newLibraryWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the library directory and reload on change",
		Long: `Watch the library directory and reload changed files as they are
written, reporting load errors as they happen. Stops on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			lib := cmdCtx.Engine.Library()
			if lib == nil {
				return fmt.Errorf("no library directory configured")
			}
			if err := lib.Refresh(); err != nil {
				return fmt.Errorf("failed to load library: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := cmdCtx.Renderer
			r.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", lib.Dir()))
			return lib.Watch(ctx, func(err error) {
				if err != nil {
					r.Warning(err.Error())
					return
				}
				entities, err := lib.List()
				if err != nil {
					r.Warning(err.Error())
					return
				}
				r.Success(fmt.Sprintf("reloaded: %d sub-queries", len(entities)))
			})
		},
	}
}
