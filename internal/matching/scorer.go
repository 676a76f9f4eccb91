package matching

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
)

// Scorer fuses candidates that reference the same catalog item and
// calibrates the result with business rules.
type Scorer struct {
	h *Heuristics
}

// NewScorer creates a scorer. A nil h uses DefaultHeuristics.
func NewScorer(h *Heuristics) *Scorer {
	if h == nil {
		h = DefaultHeuristics()
	}
	return &Scorer{h: h}
}

// Heuristics returns the tables the scorer calibrates with.
func (s *Scorer) Heuristics() *Heuristics { return s.h }

// Fuse groups raw candidates by target SKU, merges each group into one
// candidate and returns them sorted by descending confidence. Ties keep
// catalog order.
func (s *Scorer) Fuse(p model.CompetitorProduct, catalog []model.CatalogProduct, candidates []model.MatchCandidate) []model.MatchCandidate {
	if len(candidates) == 0 {
		return nil
	}

	index := make(map[string]int, len(catalog))
	normIndex := make(map[string]int, len(catalog))
	for i := range catalog {
		if _, ok := index[catalog[i].SKU]; !ok {
			index[catalog[i].SKU] = i
		}
		if n := NormalizeCode(catalog[i].SKU); n != "" {
			if _, ok := normIndex[n]; !ok {
				normIndex[n] = i
			}
		}
	}

	groups := make(map[int][]model.MatchCandidate)
	for _, c := range candidates {
		idx, ok := index[c.TargetSKU]
		if !ok {
			idx, ok = normIndex[NormalizeCode(c.TargetSKU)]
		}
		if !ok {
			err := &FusionInconsistencyError{TargetSKU: c.TargetSKU, Strategy: c.Strategy}
			zap.L().Warn("matching: dropping candidate", zap.Error(err),
				zap.String("competitor_sku", p.SKU))
			continue
		}
		groups[idx] = append(groups[idx], c)
	}

	order := make([]int, 0, len(groups))
	for idx := range groups {
		order = append(order, idx)
	}
	sort.Ints(order)

	theirType := s.h.DetectProductType(p.Description)
	theirSpecs := ExtractCompetitorSpecs(p)

	out := make([]model.MatchCandidate, 0, len(order))
	for _, idx := range order {
		fused, methods := s.merge(&catalog[idx], groups[idx])
		s.calibrate(&fused, methods, p, theirType, theirSpecs)
		out = append(out, fused)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// merge folds one group into its primary candidate and applies the
// corroboration boost.
func (s *Scorer) merge(item *model.CatalogProduct, group []model.MatchCandidate) (model.MatchCandidate, []model.MatchMethod) {
	primary := 0
	best := group[0].Confidence
	for i := 1; i < len(group); i++ {
		c, p := group[i], group[primary]
		if c.Method.Priority() > p.Method.Priority() ||
			(c.Method.Priority() == p.Method.Priority() && c.Confidence > p.Confidence) {
			primary = i
		}
		best = max(best, c.Confidence)
	}

	fused := group[primary]
	fused.TargetSKU = item.SKU
	fused.Product = item
	fused.Confidence = model.Clamp01(best)
	fused.Reasoning = nil

	var (
		methods    []model.MatchMethod
		strategies []string
		reasons    = newOrderedSet()
		matched    = newOrderedSet()
		mismatched = newOrderedSet()
		missing    = newOrderedSet()
	)
	// Primary first so its reasoning leads.
	ordered := append([]model.MatchCandidate{group[primary]}, group[:primary]...)
	ordered = append(ordered, group[primary+1:]...)
	for _, c := range ordered {
		if !slices.Contains(methods, c.Method) {
			methods = append(methods, c.Method)
		}
		if c.Strategy != "" && !slices.Contains(strategies, c.Strategy) {
			strategies = append(strategies, c.Strategy)
		}
		reasons.add(c.Reasoning...)
		matched.add(c.SpecsMatched...)
		mismatched.add(c.SpecsMismatched...)
		missing.add(c.SpecsMissing...)

		fused.Scores.Exact = max(fused.Scores.Exact, c.Scores.Exact)
		fused.Scores.Model = max(fused.Scores.Model, c.Scores.Model)
		fused.Scores.Specifications = max(fused.Scores.Specifications, c.Scores.Specifications)
	}

	fused.Reasoning = reasons.items
	fused.SpecsMatched = matched.items
	// A field any strategy matched is not reported as mismatched or missing.
	fused.SpecsMismatched = mismatched.without(matched)
	fused.SpecsMissing = missing.without(matched, mismatched)
	fused.Strategy = strings.Join(strategies, "+")

	cfg := s.h.Scorer
	if n := len(group); n > 1 {
		boost := min(cfg.CorroborationMax, cfg.CorroborationStep*float64(n-1))
		boosted := max(fused.Confidence, min(fused.Confidence+boost, cfg.HeuristicCeiling))
		if boosted > fused.Confidence {
			fused.Reasoning = append(fused.Reasoning,
				fmt.Sprintf("corroborated by %d candidates (+%.2f)", n, boosted-fused.Confidence))
		}
		fused.Confidence = boosted
	}
	if len(methods) > 1 {
		fused.Method = model.MethodHybrid
	}
	return fused, methods
}

// calibrate applies business-compatibility bonuses and penalties.
func (s *Scorer) calibrate(c *model.MatchCandidate, methods []model.MatchMethod, p model.CompetitorProduct, theirType string, theirSpecs SpecSet) {
	cfg := s.h.Scorer
	item := c.Product

	ourType := s.h.CatalogType(item.ProductType)
	typeOK, typeKnown := s.h.TypesCompatible(theirType, ourType)
	brandOK, brandKnown := s.h.BrandsCompatible(p.Company, item.Brand)

	bandType := ourType
	if bandType == "" {
		bandType = theirType
	}
	tons := item.Tonnage
	if tons == nil {
		tons = theirSpecs.Tonnage
	}
	priceOK, priceKnown := s.h.PriceReasonable(p.Price, bandType, tons)

	var sum, weights float64
	if typeKnown {
		weights += cfg.TypeWeight
		if typeOK {
			sum += cfg.TypeWeight
		}
	}
	if brandKnown {
		weights += cfg.BrandWeight
		if brandOK {
			sum += cfg.BrandWeight
		}
	}
	if priceKnown {
		weights += cfg.PriceWeight
		if priceOK {
			sum += cfg.PriceWeight
		}
	}
	if weights > 0 && sum > 0 {
		bonus := sum / weights * cfg.BonusScale
		raised := max(c.Confidence, min(c.Confidence+bonus, cfg.HeuristicCeiling))
		if raised > c.Confidence {
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("business compatibility %.2f (+%.3f)", sum/weights, raised-c.Confidence))
		}
		c.Confidence = raised
	}

	compared := len(c.SpecsMatched) + len(c.SpecsMismatched)
	if typeKnown && !typeOK && compared > 0 {
		c.Confidence *= cfg.TypeMismatchPenalty
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("product type %s incompatible with %s", theirType, ourType))
	}
	if brandKnown && !brandOK && !hasIdentityOrSpecSignal(methods) {
		c.Confidence *= cfg.BrandMismatchPenalty
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("brand %s not in the %s family", p.Company, item.Brand))
	}
	if priceKnown && !priceOK {
		c.Confidence *= cfg.PricePenalty
		c.Reasoning = append(c.Reasoning, fmt.Sprintf("price %.2f outside expected %s band", *p.Price, bandType))
	}
	if compared > 0 {
		ratio := float64(len(c.SpecsMatched)) / float64(compared)
		if ratio < cfg.SpecRatioCutoff {
			c.Confidence *= cfg.SpecRatioFloor + (1-cfg.SpecRatioFloor)*ratio
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("only %d of %d compared specs matched", len(c.SpecsMatched), compared))
		}
	}

	c.Confidence = model.Clamp01(c.Confidence)
	c.Scores.Overall = c.Confidence
}

func hasIdentityOrSpecSignal(methods []model.MatchMethod) bool {
	for _, m := range methods {
		if m.IsExact() || m == model.MethodSpecifications {
			return true
		}
	}
	return false
}

// orderedSet keeps first-seen order and drops duplicates and blanks.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet { return &orderedSet{seen: make(map[string]bool)} }

func (o *orderedSet) add(vals ...string) {
	for _, v := range vals {
		if v == "" || o.seen[v] {
			continue
		}
		o.seen[v] = true
		o.items = append(o.items, v)
	}
}

func (o *orderedSet) without(others ...*orderedSet) []string {
	var out []string
	for _, v := range o.items {
		skip := false
		for _, other := range others {
			if other.seen[v] {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, v)
		}
	}
	return out
}
