package decompose

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/internal/testutil"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

func newDecomposer(t *testing.T) *Decomposer {
	t.Helper()
	return New(Config{Logger: testutil.NewTestLogger(t)})
}

func TestDecompose_ExampleA(t *testing.T) {
	dec, err := newDecomposer(t).Decompose("WITH a AS (SELECT 1), b AS (SELECT * FROM a) SELECT * FROM b", "report")
	require.NoError(t, err)

	main := dec.MainModel()
	assert.Equal(t, core.ModelMain, main.Kind)
	assert.Equal(t, "report", main.Name)
	assert.Equal(t, "SELECT * FROM b", main.Body)
	assert.Equal(t, []string{"b"}, dec.DependencyNames(dec.Main))

	subs := dec.Subs()
	require.Len(t, subs, 2)
	assert.Equal(t, "a", subs[0].Name)
	assert.Equal(t, "SELECT 1", subs[0].Body)
	assert.Empty(t, dec.DependencyNames(subs[0].ID))
	assert.Equal(t, "b", subs[1].Name)
	assert.Equal(t, "SELECT * FROM a", subs[1].Body)
	assert.Equal(t, []string{"a"}, dec.DependencyNames(subs[1].ID))

	order, err := dec.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestDecompose_NoWith(t *testing.T) {
	dec, err := newDecomposer(t).Decompose("SELECT * FROM orders", "")
	require.NoError(t, err)

	assert.Equal(t, 1, dec.Len())
	assert.Empty(t, dec.Subs())
	assert.Equal(t, DefaultMainName, dec.MainModel().Name)
	assert.Equal(t, "SELECT * FROM orders", dec.MainModel().Body)
	assert.Empty(t, dec.Entities())
}

func TestDecompose_ExactlyOneMain(t *testing.T) {
	dec, err := newDecomposer(t).Decompose("WITH main AS (SELECT 1) SELECT * FROM main", "main")
	require.NoError(t, err)

	mains := 0
	for i := 0; i < dec.Len(); i++ {
		if dec.Model(NodeID(i)).Kind == core.ModelMain {
			mains++
		}
	}
	assert.Equal(t, 1, mains)
	// the main model never shadows a sub-query of the same name
	assert.Equal(t, []string{"main"}, dec.DependencyNames(dec.Main))
	id, ok := dec.Lookup("main")
	require.True(t, ok)
	assert.Equal(t, core.ModelSub, dec.Model(id).Kind)
}

func TestDecompose_SiblingScoping(t *testing.T) {
	sql := `WITH totals AS (SELECT * FROM orders JOIN line_items USING (order_id)),
report AS (SELECT * FROM totals t JOIN (SELECT * FROM totals_archive) x ON true)
SELECT * FROM report, customers`

	dec, err := newDecomposer(t).Decompose(sql, "")
	require.NoError(t, err)

	totals, _ := dec.Lookup("totals")
	report, _ := dec.Lookup("report")
	assert.Empty(t, dec.DependencyNames(totals), "real tables are not edges")
	assert.Equal(t, []string{"totals"}, dec.DependencyNames(report))
	assert.Equal(t, []string{"report"}, dec.DependencyNames(dec.Main))
}

func TestDecompose_ForwardReference(t *testing.T) {
	dec, err := newDecomposer(t).Decompose("WITH b AS (SELECT * FROM a), a AS (SELECT 1) SELECT * FROM b", "")
	require.NoError(t, err)

	b, _ := dec.Lookup("b")
	assert.Equal(t, []string{"a"}, dec.DependencyNames(b))

	order, err := dec.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestDecompose_Recursive(t *testing.T) {
	dec, err := newDecomposer(t).Decompose(
		"WITH RECURSIVE tree AS (SELECT id, parent FROM nodes WHERE parent IS NULL UNION ALL SELECT n.id, n.parent FROM nodes n JOIN tree t ON n.parent = t.id) SELECT * FROM tree", "")
	require.NoError(t, err)
	assert.True(t, dec.Recursive)

	tree, _ := dec.Lookup("tree")
	assert.True(t, dec.Model(tree).Recursive)
	assert.Empty(t, dec.DependencyNames(tree), "self reference is not an edge")

	entities := dec.Entities()
	require.Len(t, entities, 1)
	assert.True(t, entities[0].Recursive)
	assert.Equal(t, []string{"nodes"}, entities[0].Dependencies)
}

func TestDecompose_Cycle(t *testing.T) {
	_, err := newDecomposer(t).Decompose("WITH x AS (SELECT * FROM y), y AS (SELECT * FROM x) SELECT * FROM x", "")
	var cycleErr *core.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Cycle, "x")
	assert.Contains(t, cycleErr.Cycle, "y")
}

func TestDecompose_SyntaxError(t *testing.T) {
	tests := []string{
		"WITH a AS (SELECT 1 SELECT * FROM a",
		"WITH a AS (SELECT 1), b AS (SELECT (x FROM a)) SELECT 1 FROM (b",
		"WITH a AS (SELECT 'oops) SELECT 1",
	}
	for _, sql := range tests {
		_, err := newDecomposer(t).Decompose(sql, "")
		var syn *core.SyntaxError
		assert.ErrorAs(t, err, &syn, sql)
	}
}

func TestDecomposition_Entities(t *testing.T) {
	dec, err := newDecomposer(t).Decompose(
		"WITH stg (id, amt) AS (SELECT id, amount AS amt FROM raw), agg AS (SELECT sum(amt) AS total FROM stg) SELECT * FROM agg", "")
	require.NoError(t, err)

	entities := dec.Entities()
	require.Len(t, entities, 2)

	assert.Equal(t, "stg", entities[0].Name)
	assert.Equal(t, []string{"id", "amt"}, entities[0].Columns)
	assert.Equal(t, []string{"id", "amt"}, entities[0].OutputColumns)
	assert.Equal(t, []string{"raw"}, entities[0].Dependencies, "real tables are kept in the stored list")
	assert.False(t, entities[0].UpdatedAt.IsZero())

	assert.Equal(t, "agg", entities[1].Name)
	assert.Equal(t, []string{"stg"}, entities[1].Dependencies)
	assert.Equal(t, []string{"total"}, entities[1].OutputColumns)
}

func TestRebuild(t *testing.T) {
	pool := []*core.Entity{
		testutil.Entity("agg", "SELECT * FROM stg", "stg"),
		testutil.Entity("stg", "SELECT * FROM raw", "raw"),
		testutil.Entity("unused", "SELECT 1"),
	}

	d := newDecomposer(t)
	dec, err := d.Rebuild("", "SELECT * FROM agg JOIN dim ON true", pool)
	require.NoError(t, err)
	assert.Equal(t, []string{"agg"}, dec.DependencyNames(dec.Main))

	agg, _ := dec.Lookup("agg")
	assert.Equal(t, []string{"stg"}, dec.DependencyNames(agg))
	assert.Equal(t, []string{"stg"}, dec.Model(agg).Refs)

	order, err := dec.ExecutionOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"stg", "agg", "unused"}, order)

	_, err = d.Rebuild("", "SELECT * FROM x", []*core.Entity{
		testutil.Entity("x", "SELECT * FROM y", "y"),
		testutil.Entity("y", "SELECT * FROM x", "x"),
	})
	var cycleErr *core.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
}

func TestDecompose_QuotedNames(t *testing.T) {
	dec, err := newDecomposer(t).Decompose(`WITH "MyCte" AS (SELECT 1), plain AS (SELECT * FROM "MyCte") SELECT * FROM plain`, "")
	require.NoError(t, err)

	entities := dec.Entities()
	require.Len(t, entities, 2)
	assert.Equal(t, "MyCte", entities[0].Name)
	assert.True(t, entities[0].Quoted)
	assert.False(t, entities[1].Quoted)
	assert.Equal(t, []string{"MyCte"}, entities[1].Dependencies)
}

func TestDecompose_DepthBound(t *testing.T) {
	var b strings.Builder
	b.WriteString("WITH c0 AS (SELECT 1)")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, ", c%d AS (SELECT * FROM c%d)", i, i-1)
	}
	b.WriteString(" SELECT * FROM c10")

	d := New(Config{Resolver: dag.NewResolver(dag.WithMaxDepth(5))})
	_, err := d.Decompose(b.String(), "")
	var depthErr *core.DepthExceededError
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, 5, depthErr.Limit)

	_, err = New(Config{}).Decompose(b.String(), "")
	assert.NoError(t, err)
}
