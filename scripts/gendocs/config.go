package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/ctesplit/internal/cli/config"
	intconfig "github.com/leapstack-labs/ctesplit/internal/config"
)

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
}

// getConfigSchema returns the configuration schema definition.
// This is based on internal/cli/config/types.go Config.
func getConfigSchema() []ConfigField {
	return []ConfigField{
		{Name: "state_path", Type: "string", Default: config.DefaultStateFile, Description: "SQLite database holding workspaces"},
		{Name: "library_dir", Type: "string", Default: config.DefaultLibraryDir, Description: "Shared library directory (one .sql file per sub-query)"},
		{Name: "workspace", Type: "string", Default: config.DefaultWorkspace, Description: "Workspace commands operate on"},
		{Name: "dialect", Type: "string", Default: config.DefaultDialect, Description: "SQL dialect: " + strings.Join(intconfig.Dialects, ", ")},
		{Name: "max_depth", Type: "int", Default: fmt.Sprintf("%d", config.DefaultMaxDepth), Description: "Maximum nesting depth of a query and length of a dependency chain"},
		{Name: "verbose", Type: "bool", Default: "false", Description: "Debug logging on stderr"},
		{Name: "output", Type: "string", Default: config.DefaultOutput, Description: "Output format: auto, text, markdown, json"},
	}
}

// generateConfigDocs generates the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()

	w.Frontmatter("Configuration", "ctesplit configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("ctesplit is configured via `" + intconfig.ConfigFileName + "` in your project root. " +
		"The file is searched for upward from the current directory; relative paths in it are resolved against its directory.")

	headers := []string{"Field", "Type", "Default", "Description"}
	var rows [][]string
	for _, f := range getConfigSchema() {
		rows = append(rows, []string{InlineCode(f.Name), f.Type, InlineCode(f.Default), f.Description})
	}
	w.Table(headers, rows)

	w.Header(2, "Example")
	w.CodeBlock("yaml", `state_path: .ctesplit/state.db
library_dir: library
workspace: analytics
dialect: postgres
max_depth: 64`)

	w.Header(2, "Precedence")
	w.BulletList([]string{
		"Command-line flags",
		"`CTESPLIT_*` environment variables",
		"`" + intconfig.ConfigFileName + "`",
		"Built-in defaults",
	})

	filename := filepath.Join(outDir, "configuration.md")
	if err := os.WriteFile(filename, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated configuration.md")
	return nil
}
