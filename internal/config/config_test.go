package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("workspace: x\n"), 0o600))

	tests := []struct {
		name      string
		start     string
		maxLevels int
		want      string
	}{
		{name: "in root", start: root, maxLevels: 10, want: root},
		{name: "nested", start: nested, maxLevels: 10, want: root},
		{name: "too deep", start: nested, maxLevels: 2, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindProjectRoot(tt.start, tt.maxLevels))
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindConfigFile(dir))

	alt := filepath.Join(dir, ConfigFileNameAlt)
	require.NoError(t, os.WriteFile(alt, nil, 0o600))
	assert.Equal(t, alt, FindConfigFile(dir))

	primary := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(primary, nil, 0o600))
	assert.Equal(t, primary, FindConfigFile(dir))
}

func TestValidateDialect(t *testing.T) {
	for _, d := range []string{"ansi", "Postgres", "mysql", "TIDB"} {
		assert.NoError(t, ValidateDialect(d), d)
	}
	assert.Error(t, ValidateDialect("oracle"))
}

func TestValidateMaxDepth(t *testing.T) {
	assert.NoError(t, ValidateMaxDepth(DefaultMaxDepth))
	assert.Error(t, ValidateMaxDepth(0))
	assert.Error(t, ValidateMaxDepth(10001))
}
