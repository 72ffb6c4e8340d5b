// Package main provides tests for the ctesplit CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/ctesplit/internal/cli"
	"github.com/leapstack-labs/ctesplit/internal/cli/config"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	output, err := run(t, "", "version")
	if err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(output, "ctesplit") {
		t.Errorf("version output should contain 'ctesplit', got: %s", output)
	}
}

func TestHelpCommand(t *testing.T) {
	output, err := run(t, "", "--help")
	if err != nil {
		t.Errorf("help command error = %v", err)
	}

	expectedCommands := []string{"decompose", "compose", "resolve", "graph", "dependents", "entity", "workspace", "library"}
	for _, expected := range expectedCommands {
		if !strings.Contains(output, expected) {
			t.Errorf("help output should contain '%s', got: %s", expected, output)
		}
	}
}

func TestDecomposeEditCompose(t *testing.T) {
	t.Cleanup(config.ResetConfig)
	dir := t.TempDir()
	t.Chdir(dir)

	query := `WITH customers AS (SELECT id, name FROM raw_customers),
orders AS (SELECT customer_id, amount FROM raw_orders)
SELECT c.name, sum(o.amount) FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name`
	if err := os.WriteFile(filepath.Join(dir, "report.sql"), []byte(query), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "", "decompose", "report.sql"); err != nil {
		t.Fatalf("decompose error = %v", err)
	}
	if _, err := run(t, "SELECT id, name FROM raw_customers WHERE active", "entity", "put", "customers", "-"); err != nil {
		t.Fatalf("entity put error = %v", err)
	}

	output, err := run(t, "", "compose", "-o", "text")
	if err != nil {
		t.Fatalf("compose error = %v", err)
	}
	if !strings.Contains(output, "WHERE active") {
		t.Errorf("composed query should contain the edited sub-query, got: %s", output)
	}
	if !strings.Contains(output, "orders AS (SELECT customer_id, amount FROM raw_orders)") {
		t.Errorf("composed query should keep the untouched sub-query, got: %s", output)
	}

	if _, err := os.Stat(filepath.Join(dir, ".ctesplit", "state.db")); err != nil {
		t.Errorf("state database should be created in the project: %v", err)
	}
}
