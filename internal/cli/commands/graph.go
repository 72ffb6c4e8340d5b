package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/spf13/cobra"
)

// GraphQuerier provides read-only access to the sub-query graph.
type GraphQuerier interface {
	Dependencies(string) []string
	Dependents(string) []string
	Roots() []string
	Leaves() []string
	NodeCount() int
	EdgeCount() int
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the sub-query dependency graph",
		Long: `Display the dependency graph of the workspace's private sub-queries.

Sub-queries are grouped by level: each level depends only on earlier ones,
so level 0 holds the sub-queries that read real tables only. Roots read no
other sub-query; leaves are read by no other sub-query.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the graph
  ctesplit graph

  # Output as JSON
  ctesplit graph --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd)
		},
	}

	return cmd
}

func runGraph(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ws, err := cmdCtx.Workspace()
	if err != nil {
		return err
	}
	graph, err := cmdCtx.Engine.Graph(ws.ID)
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	levels, err := graph.ExecutionLevels()
	if err != nil {
		return fmt.Errorf("failed to get graph levels: %w", err)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return graphJSON(r, ws.Name, graph, levels)
	case output.ModeMarkdown:
		return graphMarkdown(r, graph, levels)
	default:
		return graphText(r, graph, levels)
	}
}

// graphText outputs the graph in styled text format.
func graphText(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	styles := r.Styles()

	r.Header(1, "Dependency Graph")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, name := range level {
			deps := graph.Dependencies(name)
			children := graph.Dependents(name)

			r.Printf("  %s\n", styles.Name.Render(name))
			if len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Printf("%s %s\n", styles.Muted.Render("reads only tables:"), output.FormatList(graph.Roots()))
	r.Printf("%s %s\n", styles.Muted.Render("unused by others:"), output.FormatList(graph.Leaves()))
	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d sub-queries, %d dependencies", graph.NodeCount(), graph.EdgeCount())))

	return nil
}

// graphMarkdown outputs the graph in markdown format.
func graphMarkdown(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	r.Println(output.FormatHeader(1, "Dependency Graph"))
	r.Println("")

	for i, level := range levels {
		r.Println(output.FormatHeader(2, fmt.Sprintf("Level %d", i)))

		for _, name := range level {
			deps := graph.Dependencies(name)
			children := graph.Dependents(name)

			r.Printf("- %s\n", name)
			if len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Roots", output.FormatList(graph.Roots())))
	r.Println(output.FormatKeyValue("Leaves", output.FormatList(graph.Leaves())))
	r.Println(output.FormatKeyValue("Total Sub-queries", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.EdgeCount())))

	return nil
}

// graphJSON outputs the graph in JSON format.
func graphJSON(r *output.Renderer, workspace string, graph GraphQuerier, levels [][]string) error {
	out := output.GraphOutput{
		Workspace:     workspace,
		Levels:        make([]output.GraphLevel, 0, len(levels)),
		Roots:         nonNil(graph.Roots()),
		Leaves:        nonNil(graph.Leaves()),
		TotalEntities: graph.NodeCount(),
		TotalEdges:    graph.EdgeCount(),
	}

	for i, level := range levels {
		gl := output.GraphLevel{
			Level:    i,
			Entities: make([]output.GraphNode, 0, len(level)),
		}
		for _, name := range level {
			gl.Entities = append(gl.Entities, output.GraphNode{
				Name:      name,
				DependsOn: nonNil(graph.Dependencies(name)),
				UsedBy:    nonNil(graph.Dependents(name)),
			})
		}
		out.Levels = append(out.Levels, gl)
	}

	return r.JSON(out)
}
