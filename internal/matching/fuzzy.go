package matching

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"

	"github.com/sells-group/product-match/internal/model"
)

// modelShape matches letter-run + digit-run substrings such as "XR14" or
// "GSX140361".
var modelShape = regexp.MustCompile(`[A-Z]{2,4}[0-9]{2,6}`)

// Similarity algorithm names used in reasoning.
const (
	algoPrefix      = "prefix"
	algoSuffix      = "suffix"
	algoContains    = "contains"
	algoLevenshtein = "levenshtein"
)

// FuzzyModelStrategy scores partial overlap between model-shaped terms.
type FuzzyModelStrategy struct {
	h        *Heuristics
	prefixes map[string]bool
}

// NewFuzzyModelStrategy creates a fuzzy model strategy.
func NewFuzzyModelStrategy(h *Heuristics) *FuzzyModelStrategy {
	prefixes := make(map[string]bool, len(h.BrandPrefixes))
	for _, p := range h.BrandPrefixes {
		prefixes[NormalizeCode(p)] = true
	}
	return &FuzzyModelStrategy{h: h, prefixes: prefixes}
}

// Name implements Strategy.
func (s *FuzzyModelStrategy) Name() string { return StrategyFuzzy }

// Description implements Strategy.
func (s *FuzzyModelStrategy) Description() string {
	return "prefix, suffix, containment and edit-distance similarity of model terms"
}

// ConfidenceRange implements Strategy.
func (s *FuzzyModelStrategy) ConfidenceRange() model.Range {
	return model.Range{Min: 0, Max: s.h.Fuzzy.PrefixCeiling}
}

// CanHandle implements Strategy.
func (s *FuzzyModelStrategy) CanHandle(p model.CompetitorProduct) bool {
	return len(s.terms(p.SKU, p.Model)) > 0
}

// termMatch is the best-scoring comparison for one catalog item.
type termMatch struct {
	algo       string
	ours       string
	theirs     string
	similarity float64
	confidence float64
}

// FindMatches implements Strategy.
func (s *FuzzyModelStrategy) FindMatches(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, _ model.MatchingOptions) ([]model.MatchCandidate, error) {
	theirs := s.terms(p.SKU, p.Model)
	if len(theirs) == 0 {
		return nil, nil
	}
	sku := NormalizeCode(p.SKU)

	var out []model.MatchCandidate
	for i := range catalog {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := &catalog[i]

		// SKU identity is the exact strategy's job.
		if isIdentity(sku, item) {
			continue
		}

		best, ok := s.bestPair(theirs, s.terms(item.SKU, item.Model))
		if !ok {
			continue
		}
		out = append(out, model.MatchCandidate{
			TargetSKU:  item.SKU,
			Product:    item,
			Confidence: best.confidence,
			Method:     model.MethodFuzzyModel,
			Strategy:   s.Name(),
			Reasoning: []string{fmt.Sprintf("%s similarity %.2f between %s and %s",
				best.algo, best.similarity, best.theirs, best.ours)},
			Scores: model.ScoreBreakdown{Model: best.similarity, Overall: best.confidence},
		})
	}
	return out, nil
}

// isIdentity reports an exact sku identity. Model identities still get a
// fuzzy candidate so fusion ranks them above any near miss.
func isIdentity(sku string, item *model.CatalogProduct) bool {
	return sku != "" && sku == NormalizeCode(item.SKU)
}

// bestPair scores every term pair and keeps the highest confidence. Ties keep
// the first pair found.
func (s *FuzzyModelStrategy) bestPair(theirs, ours []string) (termMatch, bool) {
	var best termMatch
	found := false
	for _, a := range theirs {
		for _, b := range ours {
			m, ok := s.compare(a, b)
			if ok && (!found || m.confidence > best.confidence) {
				best, found = m, true
			}
		}
	}
	return best, found
}

// compare runs all four similarity measures and returns the best.
func (s *FuzzyModelStrategy) compare(theirs, ours string) (termMatch, bool) {
	cfg := s.h.Fuzzy
	maxLen := max(len(theirs), len(ours))
	if maxLen == 0 {
		return termMatch{}, false
	}

	var best termMatch
	found := false
	consider := func(algo string, sim, ceiling float64) {
		conf := model.Clamp01(sim * ceiling)
		if !found || conf > best.confidence {
			best = termMatch{algo: algo, ours: ours, theirs: theirs, similarity: sim, confidence: conf}
			found = true
		}
	}

	if n := commonPrefix(theirs, ours); n >= cfg.MinPrefixOverlap {
		consider(algoPrefix, float64(n)/float64(maxLen), cfg.PrefixCeiling)
	}
	if n := commonSuffix(theirs, ours); n >= cfg.MinSuffixOverlap {
		consider(algoSuffix, float64(n)/float64(maxLen), cfg.SuffixCeiling)
	}

	short, long := theirs, ours
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= cfg.MinContainsLength && strings.Contains(long, short) {
		consider(algoContains, float64(len(short))/float64(len(long)), cfg.ContainsCeiling)
	}

	if len(theirs) >= 3 && len(ours) >= 3 {
		d := levenshtein.ComputeDistance(theirs, ours)
		sim := 1 - float64(d)/float64(maxLen)
		if sim >= cfg.MinLevenshteinSim {
			consider(algoLevenshtein, sim, cfg.LevenshteinCeiling)
		}
	}
	return best, found
}

// terms extracts comparable model terms from identifier codes. Leading brand
// prefixes are stripped. Pure-digit tokens shorter than five characters are
// dropped since capacity codes like "036" are shared across brands.
func (s *FuzzyModelStrategy) terms(codes ...string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		if len(t) < 3 || seen[t] {
			return
		}
		if len(t) < 5 && !hasLetter(t) {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	for _, code := range codes {
		tokens := splitTokens(foldAccents(code))
		for len(tokens) > 1 && s.prefixes[tokens[0]] {
			tokens = tokens[1:]
		}
		if len(tokens) == 0 {
			continue
		}
		joined := strings.Join(tokens, "")
		add(joined)
		for _, t := range tokens {
			add(t)
		}
		for _, m := range modelShape.FindAllString(joined, -1) {
			add(m)
		}
	}
	return out
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func commonPrefix(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffix(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
