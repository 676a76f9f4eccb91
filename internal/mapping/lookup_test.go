package mapping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
)

func TestLookup_SKUThenModel(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, err := st.Import(ctx, []Mapping{
		{CompetitorSKU: "4TTR4036", CompetitorCompany: "Trane", TargetSKU: "OURS-36", Confidence: 0.96, Source: "catalog review"},
	})
	require.NoError(t, err)
	l := NewLookup(st)

	c, err := l.LookupExistingMapping(ctx, model.CompetitorProduct{SKU: "UNMAPPED", Model: "4TTR-4036", Company: "TRANE"})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "OURS-36", c.TargetSKU)
	assert.Equal(t, model.MethodExistingMapping, c.Method)
	assert.InDelta(t, 0.96, c.Confidence, 1e-9)
	assert.Contains(t, c.Reasoning[0], "catalog review")

	c, err = l.LookupExistingMapping(ctx, model.CompetitorProduct{SKU: "4TTR4036", Company: "Lennox"})
	require.NoError(t, err)
	assert.Nil(t, c, "company-specific mapping does not apply to other companies")
}

func TestLookup_ShortCircuitsEngine(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, err := st.Upsert(ctx, Mapping{CompetitorSKU: "COMP-77", TargetSKU: "OURS-36", Confidence: 0.93})
	require.NoError(t, err)

	e := matching.NewEngine(nil, nil).WithMappingLookup(NewLookup(st), nil)
	catalog := []model.CatalogProduct{{SKU: "OURS-36", Model: "XR16036"}}

	resp, err := e.Match(ctx, model.CompetitorProduct{SKU: "comp 77"}, catalog, matching.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, resp.ShortCircuited)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "OURS-36", resp.Matches[0].TargetSKU)
}
