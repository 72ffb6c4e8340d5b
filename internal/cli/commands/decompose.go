package commands

import (
	"fmt"

	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/leapstack-labs/ctesplit/internal/engine"
	"github.com/spf13/cobra"
)

// NewDecomposeCommand creates the decompose command.
func NewDecomposeCommand() *cobra.Command {
	var mainName string

	cmd := &cobra.Command{
		Use:   "decompose [file]",
		Short: "Split a query into its sub-queries",
		Long: `Split a SQL statement into a main query and one sub-query per CTE.

The sub-queries replace the workspace's private pool and the main query is
saved with the workspace, so that compose can reassemble it later.
Reads from stdin when no file (or "-") is given.`,
		Example: `  # Decompose a file into the default workspace
  ctesplit decompose report.sql

  # Decompose from stdin into another workspace
  cat report.sql | ctesplit decompose --workspace sales

  # Name the main query
  ctesplit decompose report.sql --name monthly_report`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompose(cmd, args, mainName)
		},
	}

	cmd.Flags().StringVar(&mainName, "name", "", "Name of the main query (default: main)")

	return cmd
}

func runDecompose(cmd *cobra.Command, args []string, mainName string) error {
	sql, err := readInput(cmd, args)
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
	res, err := cmdCtx.Engine.Decompose(ws.ID, sql, mainName)
	if err != nil {
		return fmt.Errorf("failed to decompose: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return decomposeJSON(r, res)
	default:
		return decomposeText(r, res)
	}
}

func decomposeText(r *output.Renderer, res *engine.DecomposeResult) error {
	styles := r.Styles()

	r.Header(1, fmt.Sprintf("Decomposed into workspace %s", res.Workspace.Name))

	r.Header(2, "Main query: "+res.MainName)
	r.Code(res.MainSQL)
	r.Println("")

	if len(res.Entities) == 0 {
		r.Muted("No sub-queries.")
		return nil
	}

	r.Header(2, "Sub-queries")
	r.Table(entityHeader, entityRows(res.Entities))
	r.Println(styles.Muted.Render(fmt.Sprintf("Order: %s", output.FormatList(res.Order))))
	return nil
}

func decomposeJSON(r *output.Renderer, res *engine.DecomposeResult) error {
	out := output.DecomposeOutput{
		Workspace: res.Workspace.Name,
		MainName:  res.MainName,
		MainSQL:   res.MainSQL,
		Order:     res.Order,
		Entities:  make([]output.EntityInfo, 0, len(res.Entities)),
	}
	if out.Order == nil {
		out.Order = []string{}
	}
	for _, e := range res.Entities {
		out.Entities = append(out.Entities, entityInfo(e, "private", true))
	}
	return r.JSON(out)
}
