package commands

import (
	"fmt"

	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	var libraryOnly bool

	cmd := &cobra.Command{
		Use:   "resolve [file]",
		Short: "Compose a query with the sub-queries it references",
		Long: `Compose an ad-hoc query with every sub-query it references, looked up
first in the workspace's private pool and then in the shared library.

Names found in neither pool are treated as real tables. A query that
references no sub-query is printed unchanged. Reads from stdin when no
file (or "-") is given.`,
		Example: `  # Resolve against the workspace and the library
  echo "SELECT * FROM revenue" | ctesplit resolve

  # Resolve against the library alone
  ctesplit resolve adhoc.sql --library-only

  # Show which pool each name came from
  ctesplit resolve adhoc.sql --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args, libraryOnly)
		},
	}

	cmd.Flags().BoolVar(&libraryOnly, "library-only", false, "Ignore the workspace's private sub-queries")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string, libraryOnly bool) error {
	query, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ref := ""
	if !libraryOnly {
		ws, err := cmdCtx.Workspace()
		if err != nil {
			return err
		}
		ref = ws.ID
	}

	res, err := cmdCtx.Engine.Resolve(ref, query)
	if err != nil {
		return fmt.Errorf("failed to resolve: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(output.ResolveOutput{
			SQL:         res.SQL,
			Composed:    res.Composed,
			Private:     nonNil(res.Private),
			Shared:      nonNil(res.Shared),
			Unknown:     nonNil(res.Unknown),
			Diagnostics: diagnosticInfos(res.Diagnostics),
		})
	}

	printDiagnostics(r, res.Diagnostics, cmdCtx.Cfg.Verbose)
	cmdCtx.Logger.Debug("resolved query",
		"private", res.Private,
		"shared", res.Shared,
		"unknown", res.Unknown,
		"composed", res.Composed)

	if r.Mode() == output.ModeMarkdown {
		r.Println(output.FormatCodeBlock("sql", res.SQL))
		return nil
	}
	r.Println(res.SQL)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
