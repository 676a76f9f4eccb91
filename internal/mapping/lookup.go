package mapping

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
)

// Lookup adapts a Store to matching.MappingLookup. The SKU is tried first,
// then the model number.
type Lookup struct {
	store Store
}

// NewLookup creates a mapping lookup over s.
func NewLookup(s Store) *Lookup {
	return &Lookup{store: s}
}

var _ matching.MappingLookup = (*Lookup)(nil)

// LookupExistingMapping implements matching.MappingLookup.
func (l *Lookup) LookupExistingMapping(ctx context.Context, p model.CompetitorProduct) (*model.MatchCandidate, error) {
	company := matching.NormalizeBrand(p.Company)
	for _, code := range []string{p.SKU, p.Model} {
		key := matching.NormalizeCode(code)
		if key == "" {
			continue
		}
		m, err := l.store.Lookup(ctx, key, company)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		zap.L().Debug("mapping: hit",
			zap.String("competitor_sku", key),
			zap.String("target_sku", m.TargetSKU),
			zap.String("mapping_id", m.ID),
		)
		return toCandidate(m), nil
	}
	return nil, nil
}

func toCandidate(m *Mapping) *model.MatchCandidate {
	reason := fmt.Sprintf("confirmed mapping %s -> %s", m.CompetitorSKU, m.TargetSKU)
	if m.Source != "" {
		reason += " (" + m.Source + ")"
	}
	return &model.MatchCandidate{
		TargetSKU:  m.TargetSKU,
		Confidence: m.Confidence,
		Method:     model.MethodExistingMapping,
		Strategy:   matching.CollaboratorMappings,
		Reasoning:  []string{reason},
		Scores:     model.ScoreBreakdown{Overall: m.Confidence},
	}
}
