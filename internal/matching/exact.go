package matching

import (
	"context"
	"fmt"

	"github.com/sells-group/product-match/internal/model"
)

// Confidence levels for identity matches.
const (
	ExactSKUConfidence        = 0.98
	ExactModelConfidence      = 0.90
	ExactModelLooseConfidence = 0.75
)

// ExactStrategy matches on normalized SKU or model identity.
type ExactStrategy struct {
	h *Heuristics
}

// NewExactStrategy creates an exact identity strategy.
func NewExactStrategy(h *Heuristics) *ExactStrategy {
	return &ExactStrategy{h: h}
}

// Name implements Strategy.
func (s *ExactStrategy) Name() string { return StrategyExact }

// Description implements Strategy.
func (s *ExactStrategy) Description() string {
	return "normalized SKU or model number identity"
}

// ConfidenceRange implements Strategy.
func (s *ExactStrategy) ConfidenceRange() model.Range {
	return model.Range{Min: ExactModelLooseConfidence, Max: ExactSKUConfidence}
}

// CanHandle implements Strategy.
func (s *ExactStrategy) CanHandle(p model.CompetitorProduct) bool {
	return NormalizeCode(p.SKU) != "" || NormalizeCode(p.Model) != ""
}

// FindMatches implements Strategy.
func (s *ExactStrategy) FindMatches(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, _ model.MatchingOptions) ([]model.MatchCandidate, error) {
	sku := NormalizeCode(p.SKU)
	mdl := NormalizeCode(p.Model)
	competitorType := s.h.DetectProductType(p.Description)

	var out []model.MatchCandidate
	for i := range catalog {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := &catalog[i]

		if sku != "" && sku == NormalizeCode(item.SKU) {
			out = append(out, model.MatchCandidate{
				TargetSKU:  item.SKU,
				Product:    item,
				Confidence: ExactSKUConfidence,
				Method:     model.MethodExactSKU,
				Strategy:   s.Name(),
				Reasoning:  []string{fmt.Sprintf("normalized sku %s matches exactly", sku)},
				Scores:     model.ScoreBreakdown{Exact: 1, Overall: ExactSKUConfidence},
			})
			continue
		}

		// The competitor model is compared against both catalog model and sku,
		// the competitor sku against the catalog model.
		code := modelIdentity(sku, mdl, item)
		if code == "" {
			continue
		}

		conf := ExactModelLooseConfidence
		reason := fmt.Sprintf("normalized model %s matches exactly", code)
		if compatible, ok := s.h.TypesCompatible(competitorType, s.h.CatalogType(item.ProductType)); ok && compatible {
			conf = ExactModelConfidence
			reason += fmt.Sprintf("; product type %s confirmed by description", competitorType)
		} else {
			reason += "; product type not confirmed"
		}
		out = append(out, model.MatchCandidate{
			TargetSKU:  item.SKU,
			Product:    item,
			Confidence: conf,
			Method:     model.MethodExactModel,
			Strategy:   s.Name(),
			Reasoning:  []string{reason},
			Scores:     model.ScoreBreakdown{Exact: 1, Model: 1, Overall: conf},
		})
	}
	return out, nil
}

// modelIdentity returns the competitor code that equals the item's model
// (or, for the competitor model, the item's sku), or "".
func modelIdentity(sku, mdl string, item *model.CatalogProduct) string {
	itemModel := NormalizeCode(item.Model)
	switch {
	case mdl != "" && (mdl == itemModel || mdl == NormalizeCode(item.SKU)):
		return mdl
	case sku != "" && sku == itemModel:
		return sku
	}
	return ""
}
