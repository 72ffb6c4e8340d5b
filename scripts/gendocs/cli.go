package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/ctesplit/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandGroup is one section of the CLI index. Commands are listed in the
// order a query moves through them.
type commandGroup struct {
	Title    string
	Summary  string
	Commands []string
}

var commandGroups = []commandGroup{
	{
		Title:    "Split",
		Summary:  "Break a statement with a WITH clause into named sub-queries stored in the workspace.",
		Commands: []string{"decompose"},
	},
	{
		Title:    "Edit",
		Summary:  "Change, add, rename or drop sub-queries. Writes are rejected when they would create a cycle.",
		Commands: []string{"entity", "workspace"},
	},
	{
		Title:    "Assemble",
		Summary:  "Render SQL again from stored sub-queries, ordered so every definition precedes its use.",
		Commands: []string{"compose", "resolve"},
	},
	{
		Title:    "Inspect",
		Summary:  "Look at the dependency graph of a workspace.",
		Commands: []string{"graph", "dependents"},
	},
	{
		Title:    "Share",
		Summary:  "Publish sub-queries to the shared library and pull library changes back into lookups.",
		Commands: []string{"library"},
	},
}

const workflowExample = `# split a report into sub-queries
ctesplit decompose report.sql

# edit one of them in place
ctesplit entity put orders_clean orders_clean.sql

# see what the change reaches
ctesplit dependents orders_clean

# render the report again
ctesplit compose > report.sql`

// generateCLIDocs writes an index page and one page per top-level command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rootCmd := cli.NewRootCmd()
	visible := visibleCommands(rootCmd)

	if err := generateCLIIndex(rootCmd, visible, outDir); err != nil {
		return fmt.Errorf("failed to generate index: %w", err)
	}
	log.Printf("  Generated index.md")

	for _, cmd := range visible {
		if err := generateCommandPage(cmd, outDir); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", cmd.Name(), err)
		}
		log.Printf("  Generated %s.md", cmd.Name())
	}
	return nil
}

func visibleCommands(root *cobra.Command) map[string]*cobra.Command {
	out := make(map[string]*cobra.Command)
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		out[cmd.Name()] = cmd
	}
	return out
}

func generateCLIIndex(rootCmd *cobra.Command, visible map[string]*cobra.Command, outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter("CLI Reference", "Command-line interface reference for ctesplit")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("ctesplit splits a SQL statement into the sub-queries of its WITH clause, " +
		"keeps them in a workspace where they can be edited one at a time, and assembles them into SQL again.")

	w.Header(2, "Workflow")
	w.Paragraph("A typical session goes decompose, edit, then compose or resolve:")
	w.CodeBlock("bash", workflowExample)

	listed := make(map[string]bool)
	for _, g := range commandGroups {
		var rows [][]string
		for _, name := range g.Commands {
			cmd, ok := visible[name]
			if !ok {
				continue
			}
			listed[name] = true
			rows = append(rows, commandRow(cmd))
		}
		if len(rows) == 0 {
			continue
		}
		w.Header(2, g.Title)
		w.Paragraph(g.Summary)
		w.Table([]string{"Command", "Description"}, rows)
	}

	var rest [][]string
	for _, cmd := range rootCmd.Commands() {
		if _, ok := visible[cmd.Name()]; ok && !listed[cmd.Name()] {
			rest = append(rest, commandRow(cmd))
		}
	}
	if len(rest) > 0 {
		w.Header(2, "Other")
		w.Table([]string{"Command", "Description"}, rest)
	}

	w.Header(2, "Global Options")
	w.Paragraph("These flags are available for all commands:")
	writeFlagsTable(w, rootCmd.PersistentFlags())

	w.Header(2, "Environment Variables")
	w.Table([]string{"Variable", "Description"}, [][]string{
		{InlineCode("CTESPLIT_STATE_PATH"), "State database path"},
		{InlineCode("CTESPLIT_LIBRARY_DIR"), "Shared library directory"},
		{InlineCode("CTESPLIT_WORKSPACE"), "Workspace to operate on"},
		{InlineCode("CTESPLIT_DIALECT"), "SQL dialect"},
		{InlineCode("CTESPLIT_MAX_DEPTH"), "Maximum nesting and dependency depth"},
		{InlineCode("CTESPLIT_OUTPUT"), "Output format"},
	})
	w.Paragraph("Command-line flags take precedence over environment variables, which take precedence over `ctesplit.yaml`.")

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error, including cycles, depth limits and unknown sub-queries"},
	})

	return os.WriteFile(filepath.Join(outDir, "index.md"), w.Bytes(), 0600)
}

func commandRow(cmd *cobra.Command) []string {
	link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
	return []string{link, cleanDescription(cmd.Short)}
}

// generateCommandPage documents a command. Subcommands of a group such as
// entity get their own section on the parent's page.
func generateCommandPage(cmd *cobra.Command, outDir string) error {
	w := NewMarkdownWriter()

	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()
	w.Header(1, cmd.Name())
	writeCommandBody(w, cmd, 2)

	if cmd.HasInheritedFlags() {
		w.Header(2, "Global Options")
		writeFlagsTable(w, cmd.InheritedFlags())
	}

	return os.WriteFile(filepath.Join(outDir, cmd.Name()+".md"), w.Bytes(), 0600)
}

func writeCommandBody(w *MarkdownWriter, cmd *cobra.Command, level int) {
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	useLine := cmd.UseLine()
	if cmd.HasSubCommands() {
		useLine = cmd.CommandPath() + " <subcommand> [options]"
	}
	w.CodeBlock("bash", useLine)

	if len(cmd.Aliases) > 0 {
		aliases := make([]string, len(cmd.Aliases))
		for i, alias := range cmd.Aliases {
			aliases[i] = InlineCode(alias)
		}
		w.Paragraph("Aliases: " + strings.Join(aliases, ", "))
	}

	if cmd.HasLocalFlags() {
		w.Header(level+1, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}

	if cmd.Example != "" {
		w.Header(level+1, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}

	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" {
			continue
		}
		w.Header(level, sub.Name())
		writeCommandBody(w, sub, level+1)
	}
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = "-" + f.Shorthand
		}
		def := f.DefValue
		if f.Value.Type() == "string" && def != "" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Short", "Default", "Description"}, rows)
}

// cleanExample strips the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return strings.TrimSpace(example)
	}
	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
