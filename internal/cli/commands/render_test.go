package commands

import (
	"testing"

	"github.com/leapstack-labs/ctesplit/internal/cli/config"
	"github.com/leapstack-labs/ctesplit/internal/cli/output"
	"github.com/leapstack-labs/ctesplit/internal/cli/testutil"
	"github.com/leapstack-labs/ctesplit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntity() *core.Entity {
	return &core.Entity{
		Name:          "revenue",
		Body:          "SELECT customer_id, sum(amount) AS total FROM paid_orders GROUP BY customer_id",
		Description:   "Revenue per customer",
		Dependencies:  []string{"paid_orders"},
		OutputColumns: []string{"customer_id", "total"},
	}
}

func TestRenderEntity_Markdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, renderEntity(tr.Renderer, sampleEntity(), "shared", nil))

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# revenue")
	assert.Contains(t, out, "- **Depends On:** paid_orders")
	assert.Contains(t, out, "- **Output Columns:** customer_id, total")
	assert.NotContains(t, out, "Upstream")
	assert.Contains(t, out, "```sql\nSELECT customer_id")
}

func TestRenderEntity_Text(t *testing.T) {
	tr := testutil.NewTestRendererText()
	require.NoError(t, renderEntity(tr.Renderer, sampleEntity(), "private", []string{"stg"}))

	out := testutil.StripANSI(tr.Output())
	assert.Contains(t, out, "revenue")
	assert.Contains(t, out, "depends on: paid_orders")
	assert.Contains(t, out, "upstream: stg")
	assert.Contains(t, out, "pool: private")
}

func TestRenderEntityList(t *testing.T) {
	tests := []struct {
		name string
		tr   *testutil.TestRenderer
		want []string
	}{
		{"markdown", testutil.NewTestRendererMarkdown(), []string{"# Sub-queries (library)", "| revenue |"}},
		{"text", testutil.NewTestRendererText(), []string{"Sub-queries (library)", "revenue", "paid_orders"}},
		{"json", testutil.NewTestRendererJSON(), []string{`"total": 1`, `"pool": "shared"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, renderEntityList(tt.tr.Renderer, "library", "shared", []*core.Entity{sampleEntity()}))
			out := testutil.StripANSI(tt.tr.Output())
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestRenderEntityList_Empty(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	require.NoError(t, renderEntityList(tr.Renderer, "default", "private", nil))
	assert.Contains(t, tr.Output(), "No sub-queries.")
}

func TestPrintDiagnostics(t *testing.T) {
	diags := []core.Diagnostic{
		{Severity: core.SeverityWarning, Name: "a", Message: "scan degraded"},
		{Severity: core.SeverityInfo, Name: "orders", Message: "unknown name orders treated as a table"},
	}

	tr := testutil.NewTestRendererMarkdown()
	printDiagnostics(tr.Renderer, diags, false)
	assert.Contains(t, tr.ErrorOutput(), "a: scan degraded")
	assert.NotContains(t, tr.ErrorOutput(), "orders")

	tr = testutil.NewTestRendererMarkdown()
	printDiagnostics(tr.Renderer, diags, true)
	assert.Contains(t, tr.ErrorOutput(), "unknown name orders")
}

func TestProjectLibrary(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	t.Chdir(testutil.SetupTestProject(t))

	_, err := config.LoadConfig("", nil)
	require.NoError(t, err)
	config.GetCurrentConfig().OutputFormat = string(output.ModeJSON)

	out, _, err := execute(t, NewLibraryCommand(), "", "list")
	require.NoError(t, err)
	var list output.EntityListOutput
	decodeJSON(t, out, &list)
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "paid_orders", list.Entities[0].Name)
	assert.Equal(t, "Orders that have been paid", list.Entities[0].Description)

	out, _, err = execute(t, NewLibraryCommand(), "", "show", "REVENUE")
	require.NoError(t, err)
	var shown output.EntityInfo
	decodeJSON(t, out, &shown)
	assert.Equal(t, []string{"paid_orders"}, shown.Dependencies)

	out, _, err = execute(t, NewResolveCommand(), "SELECT total FROM revenue")
	require.NoError(t, err)
	var res output.ResolveOutput
	decodeJSON(t, out, &res)
	assert.Equal(t, []string{"paid_orders", "revenue"}, res.Shared)
	assert.Equal(t, []string{"orders"}, res.Unknown)
}
