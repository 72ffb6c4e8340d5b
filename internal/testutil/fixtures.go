package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

// Entity builds an entity fixture.
func Entity(name, body string, deps ...string) *core.Entity {
	return &core.Entity{Name: name, Body: body, Dependencies: deps}
}

// WriteFile writes content under dir, creating parent directories, and
// returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
