package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-match/internal/model"
)

func exactCatalog() []model.CatalogProduct {
	return []model.CatalogProduct{
		{ID: "1", SKU: "LEN-036-16", Model: "EL16XC1036", Brand: "Lennox", ProductType: "air_conditioner"},
		{ID: "2", SKU: "TRN-4TWR4036", Model: "4TWR4036", Brand: "Trane", ProductType: "heat_pump"},
		{ID: "3", SKU: "GDM-GSX140361", Model: "GSX140361", Brand: "Goodman", ProductType: "air_conditioner"},
	}
}

func TestExactStrategy_SKU(t *testing.T) {
	s := NewExactStrategy(DefaultHeuristics())

	got, err := s.FindMatches(context.Background(), model.CompetitorProduct{SKU: "len 036 16"}, exactCatalog(), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "LEN-036-16", got[0].TargetSKU)
	assert.Equal(t, model.MethodExactSKU, got[0].Method)
	assert.GreaterOrEqual(t, got[0].Confidence, 0.95)
	assert.Equal(t, "exact", got[0].Strategy)
}

func TestExactStrategy_SKUAlwaysSingleHighCandidate(t *testing.T) {
	s := NewExactStrategy(DefaultHeuristics())
	catalog := exactCatalog()

	for _, item := range catalog {
		variants := []string{item.SKU, NormalizeCode(item.SKU), " " + item.SKU + " "}
		for _, sku := range variants {
			got, err := s.FindMatches(context.Background(), model.CompetitorProduct{SKU: sku}, catalog, DefaultOptions())
			require.NoError(t, err)
			require.Len(t, got, 1, sku)
			assert.Equal(t, model.MethodExactSKU, got[0].Method)
			assert.GreaterOrEqual(t, got[0].Confidence, 0.95)
		}
	}
}

func TestExactStrategy_Model(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        float64
	}{
		{"type confirmed", "4 ton 16 SEER heat pump", ExactModelConfidence},
		{"compatible type", "3 ton air conditioner", ExactModelConfidence},
		{"no description", "", ExactModelLooseConfidence},
		{"incompatible type", "gas furnace 96% AFUE", ExactModelLooseConfidence},
	}

	s := NewExactStrategy(DefaultHeuristics())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.CompetitorProduct{SKU: "COMP-9", Model: "4twr-4036", Description: tt.description}
			got, err := s.FindMatches(context.Background(), p, exactCatalog(), DefaultOptions())
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "TRN-4TWR4036", got[0].TargetSKU)
			assert.Equal(t, model.MethodExactModel, got[0].Method)
			assert.InDelta(t, tt.want, got[0].Confidence, 1e-9)
		})
	}
}

func TestExactStrategy_SKUWinsOverModel(t *testing.T) {
	s := NewExactStrategy(DefaultHeuristics())
	p := model.CompetitorProduct{SKU: "GDM-GSX140361", Model: "GSX140361"}

	got, err := s.FindMatches(context.Background(), p, exactCatalog(), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.MethodExactSKU, got[0].Method)
}

func TestExactStrategy_SKUEqualsCatalogModel(t *testing.T) {
	s := NewExactStrategy(DefaultHeuristics())

	got, err := s.FindMatches(context.Background(), model.CompetitorProduct{SKU: "el16xc1-036", Company: "Lennox"}, exactCatalog(), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "LEN-036-16", got[0].TargetSKU)
	assert.Equal(t, model.MethodExactModel, got[0].Method)
	assert.InDelta(t, ExactModelLooseConfidence, got[0].Confidence, 1e-9)
	assert.Contains(t, got[0].Reasoning[0], "EL16XC1036")
}

func TestExactStrategy_CanHandle(t *testing.T) {
	s := NewExactStrategy(DefaultHeuristics())
	assert.True(t, s.CanHandle(model.CompetitorProduct{SKU: "A1"}))
	assert.True(t, s.CanHandle(model.CompetitorProduct{Model: "XR14"}))
	assert.False(t, s.CanHandle(model.CompetitorProduct{SKU: " - "}))
}

func TestExactStrategy_NoMatch(t *testing.T) {
	s := NewExactStrategy(DefaultHeuristics())
	got, err := s.FindMatches(context.Background(), model.CompetitorProduct{SKU: "UNKNOWN-1"}, exactCatalog(), DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, got)
}
