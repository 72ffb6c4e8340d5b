package commands

import (
	"fmt"

	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewDependentsCommand creates the dependents command.
func NewDependentsCommand() *cobra.Command {
	var transitive bool

	cmd := &cobra.Command{
		Use:   "dependents <name>",
		Short: "List sub-queries that depend on a name",
		Long: `List the private sub-queries that reference a name directly, or with
--transitive through other sub-queries. The name may be a sub-query or a
real table.`,
		Example: `  # Direct dependents
  ctesplit dependents orders

  # Everything affected by a change to orders
  ctesplit dependents orders --transitive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDependents(cmd, args[0], transitive)
		},
	}

	cmd.Flags().BoolVarP(&transitive, "transitive", "T", false, "Include indirect dependents")

	return cmd
}

func runDependents(cmd *cobra.Command, name string, transitive bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ws, err := cmdCtx.Workspace()
	if err != nil {
		return err
	}
	deps, err := cmdCtx.Engine.Dependents(ws.ID, name, transitive)
	if err != nil {
		return fmt.Errorf("failed to find dependents: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(output.DependentsOutput{Name: name, Transitive: transitive, Dependents: nonNil(deps)})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Dependents of "+name))
		r.Println("")
		for _, d := range deps {
			r.Printf("- %s\n", d)
		}
		if len(deps) == 0 {
			r.Println("_none_")
		}
	default:
		styles := r.Styles()
		if len(deps) == 0 {
			r.Muted(fmt.Sprintf("Nothing depends on %s", name))
			return nil
		}
		r.Header(1, "Dependents of "+name)
		for _, d := range deps {
			r.Printf("  %s\n", styles.Name.Render(d))
		}
	}
	return nil
}
