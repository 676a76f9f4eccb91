package matching

import (
	"context"
	"fmt"
	"math"

	"github.com/sells-group/product-match/internal/model"
)

// Price band confidence bounds.
const (
	priceBandMin = 0.30
	priceBandMax = 0.55
)

// Absolute sane price bounds for a competitor record.
const (
	MinPrice = 0.0
	MaxPrice = 1_000_000.0
)

// PriceReasonable reports whether price sits within the configured factors
// of the per-ton band for productType at tons. ok is false when the band or
// inputs are unknown.
func (h *Heuristics) PriceReasonable(price *float64, productType string, tons *float64) (reasonable, ok bool) {
	if price == nil || tons == nil || *tons <= 0 {
		return false, false
	}
	band, found := h.PriceBands[productType]
	if !found {
		return false, false
	}
	lo := band.PerTonMin * *tons * h.Scorer.PriceLowFactor
	hi := band.PerTonMax * *tons * h.Scorer.PriceHighFactor
	return *price >= lo && *price <= hi, true
}

// PriceBandStrategy places the competitor's price in the expected band of
// each catalog item with a compatible type and capacity.
type PriceBandStrategy struct {
	h *Heuristics
}

// NewPriceBandStrategy creates a price band strategy.
func NewPriceBandStrategy(h *Heuristics) *PriceBandStrategy {
	return &PriceBandStrategy{h: h}
}

// Name implements Strategy.
func (s *PriceBandStrategy) Name() string { return StrategyPriceBand }

// Description implements Strategy.
func (s *PriceBandStrategy) Description() string {
	return "competitor price within the per-ton band of comparable catalog items"
}

// ConfidenceRange implements Strategy.
func (s *PriceBandStrategy) ConfidenceRange() model.Range {
	return model.Range{Min: priceBandMin, Max: priceBandMax}
}

// CanHandle implements Strategy.
func (s *PriceBandStrategy) CanHandle(p model.CompetitorProduct) bool {
	return p.Price != nil && *p.Price > 0 && s.h.DetectProductType(p.Description) != ""
}

// FindMatches implements Strategy.
func (s *PriceBandStrategy) FindMatches(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions) ([]model.MatchCandidate, error) {
	if !s.CanHandle(p) {
		return nil, nil
	}
	theirType := s.h.DetectProductType(p.Description)
	theirTons := ExtractCompetitorSpecs(p).Tonnage

	var out []model.MatchCandidate
	for i := range catalog {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := &catalog[i]
		ourType := s.h.CatalogType(item.ProductType)
		if compatible, ok := s.h.TypesCompatible(theirType, ourType); !ok || !compatible {
			continue
		}
		if item.Tonnage == nil {
			continue
		}
		if theirTons != nil && math.Abs(*theirTons-*item.Tonnage) > opts.Tolerances.Tonnage {
			continue
		}
		band, found := s.h.PriceBands[ourType]
		if !found {
			continue
		}

		lo, hi := band.PerTonMin * *item.Tonnage, band.PerTonMax * *item.Tonnage
		if *p.Price < lo || *p.Price > hi {
			continue
		}
		// Centered prices score highest.
		mid, half := (lo+hi)/2, (hi-lo)/2
		closeness := 1.0
		if half > 0 {
			closeness = 1 - math.Abs(*p.Price-mid)/half
		}
		conf := priceBandMin + (priceBandMax-priceBandMin)*closeness
		out = append(out, model.MatchCandidate{
			TargetSKU:  item.SKU,
			Product:    item,
			Confidence: conf,
			Method:     model.MethodHybrid,
			Strategy:   s.Name(),
			Reasoning: []string{fmt.Sprintf("price %.2f inside %s band %.0f-%.0f for %g tons",
				*p.Price, ourType, lo, hi, *item.Tonnage)},
			Scores: model.ScoreBreakdown{Overall: conf},
		})
	}
	return out, nil
}
