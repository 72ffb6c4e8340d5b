package commands

import (
	"fmt"

	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewComposeCommand creates the compose command.
func NewComposeCommand() *cobra.Command {
	var (
		entity  string
		include []string
	)

	cmd := &cobra.Command{
		Use:   "compose [file]",
		Short: "Reassemble a query from its sub-queries",
		Long: `Reassemble the workspace's main query, or the query given as a file
or on stdin ("-"), into one statement whose WITH clause holds the private
sub-queries it references, dependencies first.

With --entity, a single sub-query is rendered as a standalone statement.
With --with, the named sub-queries (and their dependencies) are included
even when the main query does not reference them.`,
		Example: `  # Reassemble the saved main query
  ctesplit compose

  # Compose a new main query against the workspace
  echo "SELECT * FROM revenue" | ctesplit compose -

  # Render one sub-query on its own
  ctesplit compose --entity revenue

  # Export with an explicit set of sub-queries
  ctesplit compose --with revenue,customers`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(cmd, args, entity, include)
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "Render a single sub-query")
	cmd.Flags().StringSliceVar(&include, "with", nil, "Sub-queries to include (comma-separated)")

	return cmd
}

func runCompose(cmd *cobra.Command, args []string, entity string, include []string) error {
	if entity != "" && len(include) > 0 {
		return fmt.Errorf("--entity and --with cannot be combined")
	}

	var mainSQL string
	if len(args) > 0 {
		var err error
		if mainSQL, err = readInput(cmd, args); err != nil {
			return err
		}
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

	eng := cmdCtx.Engine
	var sql string
	switch {
	case entity != "":
		sql, err = eng.ComposeEntity(ws.ID, entity)
	case len(include) > 0:
		sql, err = eng.Export(ws.ID, mainSQL, include)
	default:
		sql, err = eng.Compose(ws.ID, mainSQL)
	}
	if err != nil {
		return fmt.Errorf("failed to compose: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.ComposeOutput{
			Workspace: ws.Name,
			Entity:    entity,
			Include:   include,
			SQL:       sql,
		})
	}
	// Raw SQL unless markdown was asked for, so the output pipes straight
	// into a database client.
	if r.Mode() == output.ModeMarkdown {
		r.Println(output.FormatCodeBlock("sql", sql))
		return nil
	}
	r.Println(sql)
	return nil
}
