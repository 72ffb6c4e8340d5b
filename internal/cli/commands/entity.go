package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/leapstack-labs/ctesplit/pkg/core"
	"github.com/spf13/cobra"
)

// NewEntityCommand creates the entity command group.
func NewEntityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entity",
		Aliases: []string{"sub"},
		Short:   "Inspect and edit the workspace's sub-queries",
		Long: `Inspect and edit the private sub-queries of a workspace.

Edits recompute dependencies and output columns from the body and are
rejected if they would introduce a dependency cycle.`,
	}

	cmd.AddCommand(newEntityListCommand())
	cmd.AddCommand(newEntityShowCommand())
	cmd.AddCommand(newEntityPutCommand())
	cmd.AddCommand(newEntityRemoveCommand())
	cmd.AddCommand(newEntityRenameCommand())

	return cmd
}

func newEntityListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sub-queries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cmdCtx.Workspace()
			if err != nil {
				return err
			}
			entities, err := cmdCtx.Engine.Entities(ws.ID)
			if err != nil {
				return err
			}
			return renderEntityList(cmdCtx.Renderer, ws.Name, "private", entities)
		},
	}
}

func renderEntityList(r *output.Renderer, title, pool string, entities []*core.Entity) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := output.EntityListOutput{
			Workspace: title,
			Entities:  make([]output.EntityInfo, 0, len(entities)),
			Total:     len(entities),
		}
		if pool != "private" {
			out.Workspace = ""
		}
		for _, e := range entities {
			out.Entities = append(out.Entities, entityInfo(e, pool, false))
		}
		return r.JSON(out)
	}

	if len(entities) == 0 {
		r.Muted("No sub-queries.")
		return nil
	}
	r.Header(1, fmt.Sprintf("Sub-queries (%s)", title))
	r.Table(entityHeader, entityRows(entities))
	return nil
}

func newEntityShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one sub-query",
		Args:  cobra.ExactArgs(1),
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
			e, err := cmdCtx.Engine.Entity(ws.ID, args[0])
			if err != nil {
				return err
			}
			upstream, err := cmdCtx.Engine.Upstream(ws.ID, e.Name)
			if err != nil {
				return err
			}
			return renderEntity(cmdCtx.Renderer, e, "private", upstream)
		},
	}
}

// renderEntity shows one sub-query. upstream lists the sub-queries it
// reaches through its dependencies, when known.
func renderEntity(r *output.Renderer, e *core.Entity, pool string, upstream []string) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		info := entityInfo(e, pool, true)
		info.Upstream = upstream
		return r.JSON(info)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, e.Name))
		r.Println("")
		if e.Description != "" {
			r.Println(e.Description)
			r.Println("")
		}
		r.Println(output.FormatKeyValue("Pool", pool))
		r.Println(output.FormatKeyValue("Depends On", output.FormatList(e.Dependencies)))
		if len(upstream) > 0 {
			r.Println(output.FormatKeyValue("Upstream", output.FormatList(upstream)))
		}
		r.Println(output.FormatKeyValue("Output Columns", output.FormatList(e.OutputColumns)))
		if len(e.Columns) > 0 {
			r.Println(output.FormatKeyValue("Declared Columns", output.FormatList(e.Columns)))
		}
		if e.Recursive {
			r.Println(output.FormatKeyValue("Recursive", "yes"))
		}
		r.Println("")
		r.Println(output.FormatCodeBlock("sql", e.Body))
	default:
		styles := r.Styles()
		r.Header(1, e.Name)
		if e.Description != "" {
			r.Println(e.Description)
		}
		r.Printf("%s %s\n", styles.Muted.Render("pool:"), pool)
		r.Printf("%s %s\n", styles.Muted.Render("depends on:"), output.FormatList(e.Dependencies))
		if len(upstream) > 0 {
			r.Printf("%s %s\n", styles.Muted.Render("upstream:"), output.FormatList(upstream))
		}
		r.Printf("%s %s\n", styles.Muted.Render("columns:"), output.FormatList(e.OutputColumns))
		if e.Recursive {
			r.Printf("%s\n", styles.Muted.Render("recursive"))
		}
		r.Println("")
		r.Code(e.Body)
	}
	return nil
}

func newEntityPutCommand() *cobra.Command {
	var (
		description string
		columns     []string
		recursive   bool
	)

	cmd := &cobra.Command{
		Use:   "put <name> [file]",
		Short: "Create or replace a sub-query",
		Long: `Create or replace a private sub-query. The body is read from the file
or from stdin ("-").`,
		Example: `  # Add a sub-query from stdin
  echo "SELECT * FROM orders WHERE paid" | ctesplit entity put paid_orders

  # Recursive sub-query with declared columns
  ctesplit entity put seq seq.sql --recursive --columns n`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd, args[1:])
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ws, err := cmdCtx.Workspace()
			if err != nil {
				return err
			}
			res, err := cmdCtx.Engine.PutEntity(ws.ID, &core.Entity{
				Name:        args[0],
				Body:        body,
				Description: description,
				Columns:     columns,
				Recursive:   recursive,
			})
			if err != nil {
				var cycle *core.CircularDependencyError
				if errors.As(err, &cycle) {
					return fmt.Errorf("rejected: %w", err)
				}
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(struct {
					Entity      output.EntityInfo       `json:"entity"`
					Diagnostics []output.DiagnosticInfo `json:"diagnostics"`
				}{entityInfo(res.Entity, "private", true), diagnosticInfos(res.Diagnostics)})
			}
			printDiagnostics(r, res.Diagnostics, cmdCtx.Cfg.Verbose)
			r.Success(fmt.Sprintf("saved %s (depends on: %s)", res.Entity.Name, output.FormatList(res.Entity.Dependencies)))
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Free-text description")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Declared column list (comma-separated)")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "Allow the body to reference itself")

	return cmd
}

func newEntityRemoveCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a sub-query",
		Long: `Remove a private sub-query. Removal is refused while other sub-queries
depend on it, unless --force is given.`,
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
			dependents, err := cmdCtx.Engine.RemoveEntity(ws.ID, args[0], force)
			if err != nil {
				var inUse *core.InUseError
				if errors.As(err, &inUse) {
					return fmt.Errorf("%w (use --force to remove anyway)", err)
				}
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.ResultOutput{Status: "removed", Message: args[0], Names: dependents})
			}
			r.Success("removed " + args[0])
			if len(dependents) > 0 {
				r.Warning("now unresolved in: " + strings.Join(dependents, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Remove even if other sub-queries depend on it")

	return cmd
}

func newEntityRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rename <old> <new>",
		Aliases: []string{"mv"},
		Short:   "Rename a sub-query and update its references",
		Long: `Rename a private sub-query. References to it in other sub-queries and in
the saved main query are rewritten.`,
		Args: cobra.ExactArgs(2),
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
			rewritten, err := cmdCtx.Engine.RenameEntity(ws.ID, args[0], args[1])
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(output.ResultOutput{Status: "renamed", Message: args[0] + " -> " + args[1], Names: rewritten})
			}
			r.Success(fmt.Sprintf("renamed %s to %s", args[0], args[1]))
			if len(rewritten) > 0 {
				r.Muted("updated: " + strings.Join(rewritten, ", "))
			}
			return nil
		},
	}
}
