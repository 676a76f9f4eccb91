package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOptions() MatchingOptions {
	return MatchingOptions{
		Strategies:          []string{"exact"},
		ConfidenceThreshold: 0.5,
		MaxResults:          10,
		Tolerances:          DefaultTolerances(),
	}
}

func TestMatchingOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *MatchingOptions)
		wantErr string
	}{
		{"valid", func(*MatchingOptions) {}, ""},
		{"threshold below zero", func(o *MatchingOptions) { o.ConfidenceThreshold = -0.1 }, "ConfidenceThreshold"},
		{"threshold above one", func(o *MatchingOptions) { o.ConfidenceThreshold = 1.01 }, "ConfidenceThreshold"},
		{"max results zero", func(o *MatchingOptions) { o.MaxResults = 0 }, "MaxResults"},
		{"empty strategies", func(o *MatchingOptions) { o.Strategies = []string{} }, "Strategies"},
		{"blank strategy name", func(o *MatchingOptions) { o.Strategies = []string{""} }, "Strategies[0]"},
		{"negative tolerance", func(o *MatchingOptions) { o.Tolerances.SEER = -1 }, "SEER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOptions()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMatchingOptionsEnabled(t *testing.T) {
	o := validOptions()
	o.Strategies = []string{"Exact", "fuzzy"}
	assert.True(t, o.Enabled("exact"))
	assert.True(t, o.Enabled("FUZZY"))
	assert.False(t, o.Enabled("specifications"))
}

func TestTolerancesScale(t *testing.T) {
	got := DefaultTolerances().Scale(2)
	assert.Equal(t, Tolerances{Tonnage: 1, SEER: 4, SEER2: 4, AFUE: 4, HSPF: 1}, got)
}

func TestTolerancesWithDefaults(t *testing.T) {
	got := Tolerances{SEER: 1}.WithDefaults()
	d := DefaultTolerances()
	assert.Equal(t, Tolerances{Tonnage: d.Tonnage, SEER: 1, SEER2: d.SEER2, AFUE: d.AFUE, HSPF: d.HSPF}, got)

	assert.Equal(t, d, Tolerances{}.WithDefaults())
	assert.Equal(t, d, MatchingOptions{}.WithDefaults().Tolerances)
}
