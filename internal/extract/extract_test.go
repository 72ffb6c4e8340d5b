package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ctesplit/pkg/core"
)

func TestExtract_NoWith(t *testing.T) {
	sql := "  SELECT * FROM orders  "
	res, err := Extract(sql)
	require.NoError(t, err)
	assert.False(t, res.HasWith())
	assert.Equal(t, sql, res.Remainder)
}

func TestExtract(t *testing.T) {
	sql := `WITH a AS (SELECT 1),
  b (x, y) AS (
    SELECT x, y FROM a -- trailing ) in comment
  )
SELECT * FROM b`

	res, err := Extract(sql)
	require.NoError(t, err)
	require.Len(t, res.Definitions, 2)
	assert.False(t, res.Recursive)
	assert.Equal(t, []string{"a", "b"}, res.Names())

	assert.Equal(t, "SELECT 1", res.Definitions[0].Body)
	assert.Nil(t, res.Definitions[0].Columns)

	assert.Equal(t, "SELECT x, y FROM a -- trailing ) in comment", res.Definitions[1].Body)
	assert.Equal(t, []string{"x", "y"}, res.Definitions[1].Columns)
	assert.Equal(t, 2, res.Definitions[1].Pos.Line)

	assert.Equal(t, "SELECT * FROM b", res.Remainder)
}

func TestExtract_RecursiveAndHints(t *testing.T) {
	sql := `with recursive
  nums AS MATERIALIZED (SELECT 1 AS n UNION ALL SELECT n + 1 FROM nums WHERE n < 5),
  "Odd Nums" AS NOT MATERIALIZED (SELECT n FROM nums WHERE n % 2 = 1)
SELECT * FROM "Odd Nums";`

	res, err := Extract(sql)
	require.NoError(t, err)
	assert.True(t, res.Recursive)
	require.Len(t, res.Definitions, 2)
	assert.Equal(t, MaterializeAlways, res.Definitions[0].Materialized)
	assert.Equal(t, "Odd Nums", res.Definitions[1].Name)
	assert.Equal(t, MaterializeNever, res.Definitions[1].Materialized)
	assert.Equal(t, `SELECT * FROM "Odd Nums";`, res.Remainder)
}

func TestExtract_StringsWithParens(t *testing.T) {
	res, err := Extract("WITH a AS (SELECT ')' AS p, $$(($$ AS q) SELECT * FROM a")
	require.NoError(t, err)
	require.Len(t, res.Definitions, 1)
	assert.Equal(t, "SELECT ')' AS p, $$(($$ AS q", res.Definitions[0].Body)
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		message string
	}{
		{"unbalanced", "WITH a AS (SELECT (1) SELECT * FROM a", "unbalanced"},
		{"unterminated literal", "WITH a AS (SELECT 'x) SELECT * FROM a", "unterminated"},
		{"missing as", "WITH a (SELECT 1) SELECT * FROM a", "expected"},
		{"missing body paren", "WITH a AS SELECT 1", "expected"},
		{"empty body", "WITH a AS () SELECT * FROM a", "empty body"},
		{"missing remainder", "WITH a AS (SELECT 1)", "statement after the WITH block"},
		{"duplicate name", "WITH a AS (SELECT 1), A AS (SELECT 2) SELECT * FROM a", "duplicate"},
		{"keyword as name", "WITH select AS (SELECT 1) SELECT 1", "sub-query name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Extract(tt.sql)
			assert.Nil(t, res)
			var syn *core.SyntaxError
			require.ErrorAs(t, err, &syn)
			assert.Contains(t, syn.Message, tt.message)
		})
	}
}
