package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCLIDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(dir))

	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	require.NoError(t, err)
	for _, want := range []string{"## Workflow", "## Split", "## Edit", "## Assemble", "## Inspect", "## Share", "[`decompose`](/cli/decompose)"} {
		assert.Contains(t, string(index), want)
	}
	assert.Less(t, strings.Index(string(index), "## Split"), strings.Index(string(index), "## Assemble"))

	entity, err := os.ReadFile(filepath.Join(dir, "entity.md"))
	require.NoError(t, err)
	assert.Contains(t, string(entity), "## put")
	assert.Contains(t, string(entity), "## rename")
	assert.Contains(t, string(entity), "ctesplit entity <subcommand> [options]")

	_, err = os.Stat(filepath.Join(dir, "compose.md"))
	assert.NoError(t, err)
}

func TestCleanExample(t *testing.T) {
	got := cleanExample("\n    ctesplit decompose q.sql\n      ctesplit compose\n")
	assert.Equal(t, "ctesplit decompose q.sql\n  ctesplit compose", got)
}

