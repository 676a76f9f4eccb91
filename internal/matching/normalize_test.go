package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"XR14-036", "XR14036"},
		{"xr14036", "XR14036"},
		{"  4TTR4036.A1 ", "4TTR4036A1"},
		{"gsx 14/0361", "GSX140361"},
		{"Ünit-7", "UNIT7"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCode(tt.in))
		})
	}
}

func TestNormalizeCode_IdempotentAndSeparatorInsensitive(t *testing.T) {
	inputs := []string{"XR14-036", "xr14 036", "LEN_036_16", "el16xc1-036", "r-410a"}
	for _, in := range inputs {
		once := NormalizeCode(in)
		assert.Equal(t, once, NormalizeCode(once), in)
	}
	assert.Equal(t, NormalizeCode("XR14-036"), NormalizeCode("xr14036"))
}

func TestNormalizeBrand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"American-Standard", "american standard"},
		{"  american   standard ", "american standard"},
		{"Day & Night", "day and night"},
		{"A.O. Smith", "ao smith"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeBrand(tt.in), tt.in)
	}
}

func TestSplitTokens(t *testing.T) {
	assert.Equal(t, []string{"TRN", "036", "14"}, splitTokens("trn-036 14"))
	assert.Empty(t, splitTokens(" - "))
}
