package matching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-match/internal/model"
)

func writeHeuristics(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heuristics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultHeuristics_Valid(t *testing.T) {
	assert.NoError(t, DefaultHeuristics().Validate())
}

func TestLoadHeuristics_OverridesKeepDefaults(t *testing.T) {
	path := writeHeuristics(t, `
heuristics:
  scorer:
    bonus_scale: 0.08
  brand_families:
    - [goodman, amana]
`)

	h, err := LoadHeuristics(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.08, h.Scorer.BonusScale, 1e-9)
	assert.InDelta(t, 0.03, h.Scorer.CorroborationStep, 1e-9)
	assert.InDelta(t, 0.9, h.Specs.Ceiling, 1e-9)
	require.Len(t, h.BrandFamilies, 1)

	compatible, ok := h.BrandsCompatible("Trane", "American Standard")
	assert.True(t, ok)
	assert.False(t, compatible)

	compatible, ok = h.BrandsCompatible("Goodman", "AMANA")
	assert.True(t, ok)
	assert.True(t, compatible)
}

func TestLoadHeuristics_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed yaml", "heuristics: [", "parse heuristics"},
		{"ceiling above one", "heuristics:\n  specs:\n    ceiling: 2\n", "specs.ceiling must be in (0, 1]"},
		{"negative weight", "heuristics:\n  scorer:\n    brand_weight: -1\n", "scorer.brand_weight must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadHeuristics(writeHeuristics(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadHeuristics(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHeuristics_ValidateListsEveryProblem(t *testing.T) {
	h := DefaultHeuristics()
	h.Specs.Ceiling = 1.5
	h.Scorer.TypeWeight = -0.1
	h.PriceBands["coil"] = PriceBand{PerTonMin: 500, PerTonMax: 100}

	err := h.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specs.ceiling")
	assert.Contains(t, err.Error(), "scorer.type_weight")
	assert.Contains(t, err.Error(), "price_bands.coil")
}

func TestHeuristics_BrandsCompatible(t *testing.T) {
	h := DefaultHeuristics()
	tests := []struct {
		a, b       string
		compatible bool
		ok         bool
	}{
		{"Trane", "trane", true, true},
		{"Carrier", "Bryant", true, true},
		{"American-Standard", "TRANE", true, true},
		{"Goodman", "Lennox", false, true},
		{"Acme", "Acme Corp", false, true},
		{"", "Trane", false, false},
	}
	for _, tt := range tests {
		compatible, ok := h.BrandsCompatible(tt.a, tt.b)
		assert.Equal(t, tt.compatible, compatible, "%s vs %s", tt.a, tt.b)
		assert.Equal(t, tt.ok, ok, "%s vs %s", tt.a, tt.b)
	}
}

func TestHeuristics_DetectProductType(t *testing.T) {
	h := DefaultHeuristics()
	tests := []struct {
		text string
		want string
	}{
		{"Goodman 3 ton heat pump", "heat_pump"},
		{"96% AFUE gas furnace", "furnace"},
		{"14 SEER condensing unit", "air_conditioner"},
		{"Cased coil, 17.5 in", "coil"},
		{"Heat_Pump", "heat_pump"},
		{"shack supplies", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.DetectProductType(tt.text), tt.text)
	}
}

func TestHeuristics_TypesCompatible(t *testing.T) {
	h := DefaultHeuristics()

	compatible, ok := h.TypesCompatible("air_conditioner", "heat_pump")
	assert.True(t, ok)
	assert.True(t, compatible)

	compatible, ok = h.TypesCompatible("furnace", "coil")
	assert.True(t, ok)
	assert.False(t, compatible)

	_, ok = h.TypesCompatible("", "coil")
	assert.False(t, ok)

	assert.Equal(t, "heat_pump", h.CatalogType("Heat_Pump"))
	assert.Equal(t, "furnace", h.CatalogType("Gas Furnace"))
	assert.Empty(t, h.CatalogType(""))
}

func TestHeuristics_PriceReasonable(t *testing.T) {
	h := DefaultHeuristics()
	tests := []struct {
		name       string
		price      *float64
		typ        string
		tons       *float64
		reasonable bool
		ok         bool
	}{
		{"inside band", model.Float(4000), "heat_pump", model.Float(3), true, true},
		{"half of band floor", model.Float(1050), "heat_pump", model.Float(3), true, true},
		{"far above", model.Float(100000), "heat_pump", model.Float(3), false, true},
		{"unknown type", model.Float(4000), "boiler", model.Float(3), false, false},
		{"no tonnage", model.Float(4000), "heat_pump", nil, false, false},
		{"no price", nil, "heat_pump", model.Float(3), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasonable, ok := h.PriceReasonable(tt.price, tt.typ, tt.tons)
			assert.Equal(t, tt.reasonable, reasonable)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
