package resolution

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ctesplit/internal/dag"
	"github.com/leapstack-labs/ctesplit/internal/scanner"
	"github.com/leapstack-labs/ctesplit/internal/testutil"
	"github.com/leapstack-labs/ctesplit/pkg/core"
)

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := New(Config{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return s
}

func snapshot(entities ...*core.Entity) core.Snapshot {
	return core.NewSnapshot(entities)
}

func TestResolve_ExampleB(t *testing.T) {
	private := snapshot(
		testutil.Entity("s2", "SELECT * FROM s1", "s1"),
		testutil.Entity("s1", "SELECT 1"),
	)

	res, err := newService(t).Resolve("SELECT * FROM s2", private, snapshot())
	require.NoError(t, err)

	assert.True(t, res.Composed)
	assert.Equal(t, "WITH s1 AS (SELECT 1),\ns2 AS (SELECT * FROM s1)\nSELECT * FROM s2", res.SQL)
	assert.Equal(t, []string{"s1", "s2"}, res.Private)
	assert.Empty(t, res.Shared)
	assert.Empty(t, res.Diagnostics)
}

func TestResolve_NoOp(t *testing.T) {
	query := "SELECT * FROM orders o JOIN customers c ON c.id = o.cid"
	private := snapshot(testutil.Entity("unrelated", "SELECT 1"))
	shared := snapshot(testutil.Entity("other", "SELECT 2"))

	res, err := newService(t).Resolve(query, private, shared)
	require.NoError(t, err)

	assert.False(t, res.Composed)
	assert.Equal(t, query, res.SQL)
	assert.Equal(t, []string{"orders", "customers"}, res.Unknown)
	require.Len(t, res.Diagnostics, 2)
	for _, d := range res.Diagnostics {
		assert.Equal(t, core.SeverityInfo, d.Severity)
		var unknown *core.UnknownNameError
		assert.ErrorAs(t, d.Err, &unknown)
	}
}

func TestResolve_Precedence(t *testing.T) {
	private := snapshot(
		testutil.Entity("orders_summary", "SELECT * FROM stg", "stg"),
		testutil.Entity("stg", "SELECT * FROM raw_orders", "raw_orders"),
	)
	shared := snapshot(
		testutil.Entity("orders_summary", "SELECT 'from library'"),
		testutil.Entity("stg", "SELECT 'library stg'"),
		testutil.Entity("fx_rates", "SELECT * FROM rates", "rates"),
	)

	res, err := newService(t).Resolve("SELECT * FROM orders_summary JOIN fx_rates USING (currency)", private, shared)
	require.NoError(t, err)

	assert.Equal(t, []string{"stg", "orders_summary"}, res.Private)
	assert.Equal(t, []string{"fx_rates"}, res.Shared)
	assert.Contains(t, res.SQL, "orders_summary AS (SELECT * FROM stg)")
	assert.Contains(t, res.SQL, "stg AS (SELECT * FROM raw_orders)")
	assert.NotContains(t, res.SQL, "library")

	// private entries precede shared ones
	assert.Less(t, strings.Index(res.SQL, "orders_summary AS"), strings.Index(res.SQL, "fx_rates AS"))
}

func TestResolve_Cycle(t *testing.T) {
	private := snapshot(
		testutil.Entity("x", "SELECT * FROM y", "y"),
		testutil.Entity("y", "SELECT * FROM x", "x"),
		testutil.Entity("ok", "SELECT 1"),
	)
	s := newService(t)

	res, err := s.Resolve("SELECT * FROM x", private, snapshot())
	assert.Nil(t, res)
	var cycleErr *core.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Cycle, "x")
	assert.Contains(t, cycleErr.Cycle, "y")

	res, err = s.Resolve("SELECT * FROM ok", private, snapshot())
	require.NoError(t, err)
	assert.True(t, res.Composed)
}

func TestResolve_DegradesOnScanFailure(t *testing.T) {
	query := "SELECT * FROM s1 WHERE (a = 1"
	private := snapshot(testutil.Entity("s1", "SELECT 1"))

	res, err := newService(t).Resolve(query, private, snapshot())
	require.NoError(t, err)
	assert.False(t, res.Composed)
	assert.Equal(t, query, res.SQL)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, core.SeverityWarning, res.Diagnostics[0].Severity)
	var syn *core.SyntaxError
	assert.ErrorAs(t, res.Diagnostics[0].Err, &syn)
}

func TestResolve_DegradesOnRenderFailure(t *testing.T) {
	private := snapshot(testutil.Entity("broken", "SELECT (1"))

	res, err := newService(t).Resolve("SELECT * FROM broken", private, snapshot())
	require.NoError(t, err)
	assert.False(t, res.Composed)
	assert.Equal(t, "SELECT * FROM broken", res.SQL)
	require.NotEmpty(t, res.Diagnostics)
	last := res.Diagnostics[len(res.Diagnostics)-1]
	assert.Equal(t, core.SeverityError, last.Severity)
	var renderErr *core.CompositionRenderError
	assert.ErrorAs(t, last.Err, &renderErr)
}

func TestResolve_DepthAborts(t *testing.T) {
	s, err := New(Config{
		Scanner:  scanner.New(scanner.WithMaxDepth(4)),
		Resolver: dag.NewResolver(dag.WithMaxDepth(2)),
	})
	require.NoError(t, err)

	_, err = s.Resolve("SELECT ((((((1))))))", snapshot(), snapshot())
	var depthErr *core.DepthExceededError
	require.ErrorAs(t, err, &depthErr)

	chain := snapshot(
		testutil.Entity("a", "SELECT * FROM b", "b"),
		testutil.Entity("b", "SELECT * FROM c", "c"),
		testutil.Entity("c", "SELECT * FROM d", "d"),
		testutil.Entity("d", "SELECT 1"),
	)
	_, err = s.Resolve("SELECT * FROM a", chain, snapshot())
	require.ErrorAs(t, err, &depthErr)
	assert.Equal(t, 2, depthErr.Limit)
}

func TestResolve_LocalWithMerged(t *testing.T) {
	private := snapshot(testutil.Entity("base", "SELECT 1 AS id"))

	res, err := newService(t).Resolve("WITH tmp AS (SELECT * FROM base) SELECT * FROM tmp", private, snapshot())
	require.NoError(t, err)
	assert.Equal(t, "WITH base AS (SELECT 1 AS id),\ntmp AS (SELECT * FROM base)\nSELECT * FROM tmp", res.SQL)
}

func TestResolve_SnapshotIsolation(t *testing.T) {
	e := testutil.Entity("s1", "SELECT 1")
	private := snapshot(e)

	// edits after the snapshot was taken do not leak into the call
	e.Body = "SELECT 'edited'"

	res, err := newService(t).Resolve("SELECT * FROM s1", private, snapshot())
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "s1 AS (SELECT 1)")
}
