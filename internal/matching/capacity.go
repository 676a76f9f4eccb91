package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/product-match/internal/model"
)

// Capacity code confidence levels.
const (
	capacityTokenConfidence    = 0.60
	capacityEmbeddedConfidence = 0.50
)

// CapacityStrategy correlates nominal capacity codes embedded in model
// numbers ("036" for 36,000 BTU) with catalog tonnage.
type CapacityStrategy struct {
	h     *Heuristics
	codes []string
}

// NewCapacityStrategy creates a capacity code strategy.
func NewCapacityStrategy(h *Heuristics) *CapacityStrategy {
	codes := sortedKeys(h.CapacityCodes)
	// Longer codes first so "0360" style codes are not shadowed.
	sort.SliceStable(codes, func(i, j int) bool { return len(codes[i]) > len(codes[j]) })
	return &CapacityStrategy{h: h, codes: codes}
}

// Name implements Strategy.
func (s *CapacityStrategy) Name() string { return StrategyCapacity }

// Description implements Strategy.
func (s *CapacityStrategy) Description() string {
	return "capacity code in the model number correlated with catalog tonnage"
}

// ConfidenceRange implements Strategy.
func (s *CapacityStrategy) ConfidenceRange() model.Range {
	return model.Range{Min: capacityEmbeddedConfidence, Max: capacityTokenConfidence}
}

// CanHandle implements Strategy.
func (s *CapacityStrategy) CanHandle(p model.CompetitorProduct) bool {
	_, _, _, ok := s.capacity(p.SKU, p.Model)
	return ok
}

// capacity finds a capacity code in the codes. A separator-delimited token
// wins over a code embedded inside a longer token.
func (s *CapacityStrategy) capacity(codes ...string) (tons float64, code string, token bool, ok bool) {
	for _, c := range codes {
		for _, t := range splitTokens(c) {
			if v, found := s.h.CapacityCodes[t]; found {
				return v, t, true, true
			}
		}
	}
	for _, c := range codes {
		norm := NormalizeCode(c)
		for _, k := range s.codes {
			if strings.Contains(norm, k) {
				return s.h.CapacityCodes[k], k, false, true
			}
		}
	}
	return 0, "", false, false
}

// FindMatches implements Strategy.
func (s *CapacityStrategy) FindMatches(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions) ([]model.MatchCandidate, error) {
	tons, code, token, ok := s.capacity(p.SKU, p.Model)
	if !ok {
		return nil, nil
	}
	conf := capacityEmbeddedConfidence
	if token {
		conf = capacityTokenConfidence
	}

	var out []model.MatchCandidate
	for i := range catalog {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := &catalog[i]

		ours := item.Tonnage
		if ours == nil {
			if v, _, _, found := s.capacity(item.Model, item.SKU); found {
				ours = &v
			}
		}
		if ours == nil || math.Abs(*ours-tons) > opts.Tolerances.Tonnage {
			continue
		}
		out = append(out, model.MatchCandidate{
			TargetSKU:    item.SKU,
			Product:      item,
			Confidence:   conf,
			Method:       model.MethodFuzzyModel,
			Strategy:     s.Name(),
			Reasoning:    []string{fmt.Sprintf("capacity code %s implies %g tons; catalog %g tons", code, tons, *ours)},
			SpecsMatched: []string{FieldTonnage},
			Scores:       model.ScoreBreakdown{Specifications: 1, Overall: conf},
		})
	}
	return out, nil
}
