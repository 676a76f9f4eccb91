package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/product-match/internal/model"
)

// Brand translation confidence bounds.
const (
	brandTranslationMin = 0.60
	brandTranslationMax = 0.85
)

// BrandTranslationStrategy rewrites a competitor model series into the
// equivalent series of a sister brand and scores prefix agreement.
type BrandTranslationStrategy struct {
	h *Heuristics
}

// NewBrandTranslationStrategy creates a brand translation strategy.
func NewBrandTranslationStrategy(h *Heuristics) *BrandTranslationStrategy {
	return &BrandTranslationStrategy{h: h}
}

// Name implements Strategy.
func (s *BrandTranslationStrategy) Name() string { return StrategyBrandTranslation }

// Description implements Strategy.
func (s *BrandTranslationStrategy) Description() string {
	return "cross-brand model series translation between platform siblings"
}

// ConfidenceRange implements Strategy.
func (s *BrandTranslationStrategy) ConfidenceRange() model.Range {
	return model.Range{Min: brandTranslationMin, Max: brandTranslationMax}
}

// CanHandle implements Strategy.
func (s *BrandTranslationStrategy) CanHandle(p model.CompetitorProduct) bool {
	return len(s.translate(p)) > 0
}

// translation is a competitor code rewritten into a sibling series.
type translation struct {
	code    string
	series  string
	toBrand string
	rule    SeriesTranslation
}

// translate applies every rule in both directions to the competitor's model
// and SKU.
func (s *BrandTranslationStrategy) translate(p model.CompetitorProduct) []translation {
	brand := NormalizeBrand(p.Company)
	if brand == "" {
		return nil
	}

	var out []translation
	seen := make(map[string]bool)
	for _, code := range []string{NormalizeCode(p.Model), NormalizeCode(p.SKU)} {
		if code == "" {
			continue
		}
		for _, rule := range s.h.SeriesTranslations {
			pairs := [][4]string{
				{rule.FromBrand, rule.FromPrefix, rule.ToBrand, rule.ToPrefix},
				{rule.ToBrand, rule.ToPrefix, rule.FromBrand, rule.FromPrefix},
			}
			for _, pr := range pairs {
				from, to := NormalizeCode(pr[1]), NormalizeCode(pr[3])
				if NormalizeBrand(pr[0]) != brand || from == "" || !strings.HasPrefix(code, from) {
					continue
				}
				translated := to + strings.TrimPrefix(code, from)
				if seen[translated] {
					continue
				}
				seen[translated] = true
				out = append(out, translation{code: translated, series: to, toBrand: NormalizeBrand(pr[2]), rule: rule})
			}
		}
	}
	return out
}

// FindMatches implements Strategy.
func (s *BrandTranslationStrategy) FindMatches(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, _ model.MatchingOptions) ([]model.MatchCandidate, error) {
	translations := s.translate(p)
	if len(translations) == 0 {
		return nil, nil
	}

	var out []model.MatchCandidate
	for i := range catalog {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := &catalog[i]
		if b := NormalizeBrand(item.Brand); b != "" && !s.brandAccepted(b, translations) {
			continue
		}

		var (
			bestConf float64
			bestSim  float64
			bestT    translation
			bestCode string
		)
		for _, t := range translations {
			for _, ours := range []string{NormalizeCode(item.Model), NormalizeCode(item.SKU)} {
				if ours == "" || !strings.HasPrefix(ours, t.series) {
					continue
				}
				sim := float64(commonPrefix(t.code, ours)) / float64(max(len(t.code), len(ours)))
				conf := brandTranslationMin + (brandTranslationMax-brandTranslationMin)*sim
				if conf > bestConf {
					bestConf, bestSim, bestT, bestCode = conf, sim, t, ours
				}
			}
		}
		if bestConf == 0 {
			continue
		}
		out = append(out, model.MatchCandidate{
			TargetSKU:  item.SKU,
			Product:    item,
			Confidence: bestConf,
			Method:     model.MethodFuzzyModel,
			Strategy:   s.Name(),
			Reasoning: []string{fmt.Sprintf("%s series %s translates to %s %s; %s vs %s prefix similarity %.2f",
				bestT.rule.FromBrand, bestT.rule.FromPrefix, bestT.toBrand, bestT.series, bestT.code, bestCode, bestSim)},
			Scores: model.ScoreBreakdown{Model: bestSim, Overall: bestConf},
		})
	}
	return out, nil
}

func (s *BrandTranslationStrategy) brandAccepted(brand string, ts []translation) bool {
	for _, t := range ts {
		if t.toBrand == brand {
			return true
		}
	}
	return false
}
