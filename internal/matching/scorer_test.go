package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-match/internal/model"
)

func TestScorer_CorroborationBounds(t *testing.T) {
	tests := []struct {
		name    string
		primary model.MatchMethod
		other   model.MatchMethod
	}{
		{"exact model plus specs", model.MethodExactModel, model.MethodSpecifications},
		{"fuzzy plus specs", model.MethodFuzzyModel, model.MethodSpecifications},
		{"specs plus ai", model.MethodSpecifications, model.MethodAIEnhanced},
	}

	s := NewScorer(nil)
	catalog := []model.CatalogProduct{{SKU: "A"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Fuse(model.CompetitorProduct{SKU: "X"}, catalog, []model.MatchCandidate{
				{TargetSKU: "A", Confidence: 0.85, Method: tt.primary},
				{TargetSKU: "A", Confidence: 0.75, Method: tt.other},
			})
			require.Len(t, got, 1)
			assert.GreaterOrEqual(t, got[0].Confidence, 0.85)
			assert.LessOrEqual(t, got[0].Confidence, 0.95)
			assert.InDelta(t, 0.88, got[0].Confidence, 1e-9)
			assert.Equal(t, model.MethodHybrid, got[0].Method)
		})
	}
}

func TestScorer_HeuristicCeiling(t *testing.T) {
	s := NewScorer(nil)
	catalog := []model.CatalogProduct{{SKU: "A"}}
	cands := []model.MatchCandidate{
		{TargetSKU: "A", Confidence: 0.93, Method: model.MethodSpecifications},
		{TargetSKU: "A", Confidence: 0.90, Method: model.MethodFuzzyModel},
		{TargetSKU: "A", Confidence: 0.90, Method: model.MethodHybrid},
		{TargetSKU: "A", Confidence: 0.90, Method: model.MethodAIEnhanced},
		{TargetSKU: "A", Confidence: 0.90, Method: model.MethodFuzzyModel},
	}

	got := s.Fuse(model.CompetitorProduct{SKU: "X"}, catalog, cands)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.95, got[0].Confidence, 1e-9)
}

func TestScorer_ExactAboveCeilingNotLowered(t *testing.T) {
	s := NewScorer(nil)
	catalog := []model.CatalogProduct{{SKU: "A"}}

	got := s.Fuse(model.CompetitorProduct{SKU: "A"}, catalog, []model.MatchCandidate{
		{TargetSKU: "A", Confidence: 0.98, Method: model.MethodExactSKU},
		{TargetSKU: "A", Confidence: 0.70, Method: model.MethodSpecifications, SpecsMatched: []string{FieldTonnage}},
	})
	require.Len(t, got, 1)
	assert.InDelta(t, 0.98, got[0].Confidence, 1e-9)
	assert.Equal(t, model.MethodHybrid, got[0].Method)
	assert.Equal(t, "A", got[0].Product.SKU)
}

func TestScorer_PrimaryByPriorityAndMergedLists(t *testing.T) {
	s := NewScorer(nil)
	catalog := []model.CatalogProduct{{SKU: "A"}}

	got := s.Fuse(model.CompetitorProduct{SKU: "X"}, catalog, []model.MatchCandidate{
		{TargetSKU: "A", Confidence: 0.6, Method: model.MethodFuzzyModel, Strategy: "fuzzy", Reasoning: []string{"fuzzy reason", "shared"}},
		{TargetSKU: "A", Confidence: 0.7, Method: model.MethodSpecifications, Strategy: "specifications",
			Reasoning: []string{"spec reason", "shared"}, SpecsMatched: []string{FieldTonnage}, SpecsMissing: []string{FieldSEER}},
		{TargetSKU: "A", Confidence: 0.5, Method: model.MethodSpecifications, Strategy: "capacity",
			SpecsMatched: []string{FieldTonnage}, SpecsMissing: []string{FieldAFUE}},
	})
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, []string{"spec reason", "shared", "fuzzy reason"}, c.Reasoning[:3])
	assert.Equal(t, []string{FieldTonnage}, c.SpecsMatched)
	assert.Equal(t, []string{FieldSEER, FieldAFUE}, c.SpecsMissing)
	assert.Equal(t, "specifications+fuzzy+capacity", c.Strategy)
	// 0.7 + min(0.15, 0.03*2)
	assert.InDelta(t, 0.76, c.Confidence, 1e-9)
}

func TestScorer_DropsUnknownTargets(t *testing.T) {
	s := NewScorer(nil)
	catalog := []model.CatalogProduct{{SKU: "A"}}

	got := s.Fuse(model.CompetitorProduct{SKU: "X"}, catalog, []model.MatchCandidate{
		{TargetSKU: "GHOST", Confidence: 0.9, Method: model.MethodFuzzyModel},
		{TargetSKU: "a", Confidence: 0.6, Method: model.MethodFuzzyModel},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].TargetSKU)
}

func TestScorer_StableCatalogOrderOnTies(t *testing.T) {
	s := NewScorer(nil)
	catalog := []model.CatalogProduct{{SKU: "A"}, {SKU: "B"}, {SKU: "C"}, {SKU: "D"}}

	got := s.Fuse(model.CompetitorProduct{SKU: "X"}, catalog, []model.MatchCandidate{
		{TargetSKU: "C", Confidence: 0.6, Method: model.MethodFuzzyModel},
		{TargetSKU: "D", Confidence: 0.8, Method: model.MethodFuzzyModel},
		{TargetSKU: "B", Confidence: 0.6, Method: model.MethodFuzzyModel},
		{TargetSKU: "A", Confidence: 0.6, Method: model.MethodFuzzyModel},
	})
	require.Len(t, got, 4)
	skus := []string{got[0].TargetSKU, got[1].TargetSKU, got[2].TargetSKU, got[3].TargetSKU}
	assert.Equal(t, []string{"D", "A", "B", "C"}, skus)
}

func TestScorer_BusinessRules(t *testing.T) {
	tests := []struct {
		name       string
		competitor model.CompetitorProduct
		item       model.CatalogProduct
		cand       model.MatchCandidate
		want       float64
	}{
		{
			name:       "brand family bonus",
			competitor: model.CompetitorProduct{SKU: "X", Company: "Trane"},
			item:       model.CatalogProduct{SKU: "A", Brand: "American Standard"},
			cand:       model.MatchCandidate{TargetSKU: "A", Confidence: 0.6, Method: model.MethodFuzzyModel},
			want:       0.65,
		},
		{
			name:       "brand mismatch without identity or spec signal",
			competitor: model.CompetitorProduct{SKU: "X", Company: "Goodman"},
			item:       model.CatalogProduct{SKU: "A", Brand: "Trane"},
			cand:       model.MatchCandidate{TargetSKU: "A", Confidence: 0.6, Method: model.MethodFuzzyModel},
			want:       0.54,
		},
		{
			name:       "brand mismatch tolerated with spec signal",
			competitor: model.CompetitorProduct{SKU: "X", Company: "Goodman"},
			item:       model.CatalogProduct{SKU: "A", Brand: "Trane"},
			cand: model.MatchCandidate{TargetSKU: "A", Confidence: 0.6, Method: model.MethodSpecifications,
				SpecsMatched: []string{FieldTonnage}},
			want: 0.6,
		},
		{
			name:       "product type mismatch with specs compared",
			competitor: model.CompetitorProduct{SKU: "X", Description: "gas furnace"},
			item:       model.CatalogProduct{SKU: "A", ProductType: "heat_pump"},
			cand: model.MatchCandidate{TargetSKU: "A", Confidence: 0.6, Method: model.MethodSpecifications,
				SpecsMatched: []string{FieldTonnage}},
			want: 0.48,
		},
		{
			name:       "low spec match ratio",
			competitor: model.CompetitorProduct{SKU: "X"},
			item:       model.CatalogProduct{SKU: "A"},
			cand: model.MatchCandidate{TargetSKU: "A", Confidence: 0.5, Method: model.MethodSpecifications,
				SpecsMatched: []string{FieldTonnage}, SpecsMismatched: []string{FieldSEER, FieldAFUE}},
			want: 0.4,
		},
		{
			name:       "unreasonable price",
			competitor: model.CompetitorProduct{SKU: "X", Description: "heat pump", Price: model.Float(100000)},
			item:       model.CatalogProduct{SKU: "A", ProductType: "heat_pump", Tonnage: model.Float(3)},
			cand:       model.MatchCandidate{TargetSKU: "A", Confidence: 0.6, Method: model.MethodFuzzyModel},
			// type bonus 0.15/0.20*0.05 then *0.95
			want: (0.6 + 0.0375) * 0.95,
		},
		{
			name:       "all compatible",
			competitor: model.CompetitorProduct{SKU: "X", Company: "Carrier", Description: "heat pump", Price: model.Float(4000)},
			item:       model.CatalogProduct{SKU: "A", Brand: "Bryant", ProductType: "heat_pump", Tonnage: model.Float(3)},
			cand:       model.MatchCandidate{TargetSKU: "A", Confidence: 0.6, Method: model.MethodFuzzyModel},
			want:       0.65,
		},
	}

	s := NewScorer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Fuse(tt.competitor, []model.CatalogProduct{tt.item}, []model.MatchCandidate{tt.cand})
			require.Len(t, got, 1)
			assert.InDelta(t, tt.want, got[0].Confidence, 1e-9)
			assert.Equal(t, got[0].Confidence, got[0].Scores.Overall)
		})
	}
}

func TestScorer_ConfidenceAlwaysClamped(t *testing.T) {
	s := NewScorer(nil)
	catalog := []model.CatalogProduct{{SKU: "A"}, {SKU: "B"}}

	got := s.Fuse(model.CompetitorProduct{SKU: "X"}, catalog, []model.MatchCandidate{
		{TargetSKU: "A", Confidence: 1.7, Method: model.MethodExactSKU},
		{TargetSKU: "B", Confidence: -0.2, Method: model.MethodFuzzyModel},
	})
	require.Len(t, got, 2)
	for _, c := range got {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
	}
}

func TestScorer_EmptyInput(t *testing.T) {
	assert.Empty(t, NewScorer(nil).Fuse(model.CompetitorProduct{SKU: "X"}, nil, nil))
}
