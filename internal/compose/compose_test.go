package compose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ctesplit/internal/testutil"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

func newComposer(t *testing.T, dialect string) *Composer {
	t.Helper()
	c, err := New(Config{Dialect: dialect, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return c
}

func TestCompose(t *testing.T) {
	s1 := &core.Entity{Name: "s1", Body: "SELECT 1"}
	s2 := &core.Entity{Name: "s2", Body: "SELECT * FROM s1", Dependencies: []string{"s1"}}

	tests := []struct {
		name     string
		dialect  string
		main     string
		entities []*core.Entity
		want     string
	}{
		{
			name:     "no entities leaves query unchanged",
			main:     "SELECT * FROM real_table ",
			entities: nil,
			want:     "SELECT * FROM real_table ",
		},
		{
			name:     "ordered entities",
			main:     "SELECT * FROM s2",
			entities: []*core.Entity{s1, s2},
			want:     "WITH s1 AS (SELECT 1),\ns2 AS (SELECT * FROM s1)\nSELECT * FROM s2",
		},
		{
			name:     "main with its own WITH is merged",
			main:     "WITH local AS (SELECT * FROM s1) SELECT * FROM local",
			entities: []*core.Entity{s1},
			want:     "WITH s1 AS (SELECT 1),\nlocal AS (SELECT * FROM s1)\nSELECT * FROM local",
		},
		{
			name: "recursive and declared columns",
			main: "SELECT n FROM nums",
			entities: []*core.Entity{{
				Name:      "nums",
				Body:      "SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < 5",
				Columns:   []string{"n"},
				Recursive: true,
			}},
			want: "WITH RECURSIVE nums (n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM nums WHERE n < 5)\nSELECT n FROM nums",
		},
		{
			name: "identifiers quoted when needed",
			main: `SELECT * FROM "Order Items"`,
			entities: []*core.Entity{{
				Name:    "Order Items",
				Body:    "SELECT 1, 2",
				Columns: []string{"id", "select"},
			}},
			want: "WITH \"Order Items\" (id, \"select\") AS (SELECT 1, 2)\nSELECT * FROM \"Order Items\"",
		},
		{
			name:    "mysql quoting",
			dialect: "mysql",
			main:    "SELECT * FROM `Order Items`",
			entities: []*core.Entity{{
				Name: "Order Items",
				Body: "SELECT 1",
			}},
			want: "WITH `Order Items` AS (SELECT 1)\nSELECT * FROM `Order Items`",
		},
		{
			name:     "trailing comment keeps closing paren",
			main:     "SELECT * FROM c",
			entities: []*core.Entity{{Name: "c", Body: "SELECT 1 -- one"}},
			want:     "WITH c AS (SELECT 1 -- one\n)\nSELECT * FROM c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newComposer(t, tt.dialect).Compose(tt.main, tt.entities)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompose_Errors(t *testing.T) {
	s1 := &core.Entity{Name: "s1", Body: "SELECT 1"}

	tests := []struct {
		name     string
		dialect  string
		main     string
		entities []*core.Entity
		reason   string
	}{
		{"name collision with main WITH", "", "WITH s1 AS (SELECT 2) SELECT * FROM s1", []*core.Entity{s1}, "duplicate"},
		{"duplicate entities", "", "SELECT 1", []*core.Entity{s1, {Name: "S1", Body: "SELECT 3"}}, "duplicate"},
		{"empty body", "", "SELECT 1", []*core.Entity{{Name: "e", Body: "  "}}, "empty body"},
		{"empty name", "", "SELECT 1", []*core.Entity{{Body: "SELECT 1"}}, "without a name"},
		{"malformed main", "", "SELECT (", []*core.Entity{s1}, "main query is malformed"},
		{"unbalanced body", "", "SELECT * FROM s1", []*core.Entity{{Name: "s1", Body: "SELECT (1"}}, "failed validation"},
		{"mysql parser rejection", "mysql", "SELECT * FROM s1", []*core.Entity{{Name: "s1", Body: "SELECT FROM WHERE"}}, "failed validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newComposer(t, tt.dialect).Compose(tt.main, tt.entities)
			assert.Empty(t, got)
			var renderErr *core.CompositionRenderError
			require.ErrorAs(t, err, &renderErr)
			assert.Contains(t, renderErr.Reason, tt.reason)
		})
	}
}

func TestCompose_CustomValidator(t *testing.T) {
	rejected := errors.New("rejected by policy")
	c, err := New(Config{Validator: ValidatorFunc(func(string) error { return rejected })})
	require.NoError(t, err)

	_, err = c.Compose("SELECT * FROM a", []*core.Entity{{Name: "a", Body: "SELECT 1"}})
	require.ErrorIs(t, err, rejected)
	var renderErr *core.CompositionRenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, []string{"a"}, renderErr.Names)
}

func TestNew_UnknownDialect(t *testing.T) {
	_, err := New(Config{Dialect: "oracle"})
	assert.ErrorContains(t, err, `unknown dialect "oracle"`)
}

func TestCanonical(t *testing.T) {
	a, err := Canonical("select *   from T where x=1")
	require.NoError(t, err)
	b, err := Canonical("SELECT * FROM T WHERE x = 1")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = Canonical("SELECT FROM WHERE")
	assert.Error(t, err)
}
