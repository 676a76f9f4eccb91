package matching

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/product-match/internal/model"
)

// BTUPerTon converts cooling capacity to nominal tons.
const BTUPerTon = 12000.0

// Spec field names, used in reasoning and spec lists.
const (
	FieldTonnage     = "tonnage"
	FieldSEER        = "seer"
	FieldSEER2       = "seer2"
	FieldAFUE        = "afue"
	FieldHSPF        = "hspf"
	FieldRefrigerant = "refrigerant"
	FieldStage       = "stage"
)

// Stage values.
const (
	StageSingle   = "single"
	StageTwo      = "two"
	StageVariable = "variable"
)

// SpecSet is the comparable specification set of one product.
type SpecSet struct {
	Tonnage     *float64
	SEER        *float64
	SEER2       *float64
	AFUE        *float64
	HSPF        *float64
	Refrigerant string
	Stage       string
}

// Empty reports whether no field is set.
func (s SpecSet) Empty() bool {
	return s.Tonnage == nil && s.SEER == nil && s.SEER2 == nil && s.AFUE == nil &&
		s.HSPF == nil && s.Refrigerant == "" && s.Stage == ""
}

// bounds are plausibility limits for values pulled from free text.
type bounds struct{ lo, hi float64 }

func (b bounds) contains(v float64) bool { return v >= b.lo && v <= b.hi }

var (
	tonnageBounds = bounds{1, 5}
	seerBounds    = bounds{13, 30}
	seer2Bounds   = bounds{11, 28}
	afueBounds    = bounds{80, 98}
	hspfBounds    = bounds{7, 15}
)

var (
	reNumber      = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	reBTU         = regexp.MustCompile(`\b([0-9]{1,3}(?:,[0-9]{3})+|[0-9]{4,6})\s*BTU`)
	reKBTU        = regexp.MustCompile(`\b([0-9]{2}(?:\.[0-9])?)\s*K\s*BTU`)
	reTon         = regexp.MustCompile(`\b([0-9](?:\.[0-9]{1,2})?)\s*-?\s*TONS?\b`)
	reSEERBefore  = regexp.MustCompile(`\b([0-9]{2}(?:\.[0-9])?)\s*SEER\b`)
	reSEERAfter   = regexp.MustCompile(`\bSEER\s*:?\s*([0-9]{2}(?:\.[0-9])?)\b`)
	reSEER2Before = regexp.MustCompile(`\b([0-9]{2}(?:\.[0-9])?)\s*SEER2\b`)
	reSEER2After  = regexp.MustCompile(`\bSEER2\s*:?\s*([0-9]{2}(?:\.[0-9])?)\b`)
	reAFUEBefore  = regexp.MustCompile(`\b([0-9]{2}(?:\.[0-9])?)\s*%?\s*AFUE\b`)
	reAFUEAfter   = regexp.MustCompile(`\bAFUE\s*:?\s*([0-9]{2}(?:\.[0-9])?)`)
	reHSPFBefore  = regexp.MustCompile(`\b([0-9]{1,2}(?:\.[0-9])?)\s*HSPF\b`)
	reHSPFAfter   = regexp.MustCompile(`\bHSPF\s*:?\s*([0-9]{1,2}(?:\.[0-9])?)`)
	reRefrigerant = regexp.MustCompile(`\bR-?(410A|32|454B|22|407C|466A)\b`)
	reStageTwo    = regexp.MustCompile(`\b(TWO|2)[\s-]?STAGE\b`)
	reStageSingle = regexp.MustCompile(`\b(SINGLE|ONE|1)[\s-]?STAGE\b`)
	reStageVar    = regexp.MustCompile(`\b(VARIABLE|MODULATING|INVERTER)\b`)
)

// ExtractCompetitorSpecs builds the spec set of a competitor record. Values
// from the explicit specifications map win; fields it lacks are extracted
// from the description, SKU and model.
func ExtractCompetitorSpecs(p model.CompetitorProduct) SpecSet {
	s := specsFromMap(p.Specifications)
	text := specsFromText(normalizeText(p.Description, p.Model, p.SKU))

	if s.Tonnage == nil {
		s.Tonnage = text.Tonnage
	}
	if s.SEER == nil {
		s.SEER = text.SEER
	}
	if s.SEER2 == nil {
		s.SEER2 = text.SEER2
	}
	if s.AFUE == nil {
		s.AFUE = text.AFUE
	}
	if s.HSPF == nil {
		s.HSPF = text.HSPF
	}
	if s.Refrigerant == "" {
		s.Refrigerant = text.Refrigerant
	}
	if s.Stage == "" {
		s.Stage = text.Stage
	}
	return s
}

// CatalogSpecs builds the spec set of a catalog item from its structured
// fields.
func CatalogSpecs(item *model.CatalogProduct) SpecSet {
	return SpecSet{
		Tonnage:     item.Tonnage,
		SEER:        item.SEER,
		SEER2:       item.SEER2,
		AFUE:        item.AFUE,
		HSPF:        item.HSPF,
		Refrigerant: normalizeRefrigerant(item.Refrigerant),
		Stage:       normalizeStage(item.Stage),
	}
}

func specsFromMap(m map[string]string) SpecSet {
	var s SpecSet
	for k, v := range m {
		key := strings.ToLower(strings.TrimSpace(k))
		switch key {
		case "tonnage", "tons", "ton", "capacity_tons":
			if f, ok := parseNumber(v); ok {
				s.Tonnage = &f
			}
		case "btu", "btuh", "capacity_btu", "cooling_btu":
			if f, ok := parseNumber(v); ok && s.Tonnage == nil {
				t := f / BTUPerTon
				s.Tonnage = &t
			}
		case "seer":
			if f, ok := parseNumber(v); ok {
				s.SEER = &f
			}
		case "seer2":
			if f, ok := parseNumber(v); ok {
				s.SEER2 = &f
			}
		case "afue":
			if f, ok := parseNumber(v); ok {
				s.AFUE = &f
			}
		case "hspf", "hspf2":
			if f, ok := parseNumber(v); ok && s.HSPF == nil {
				s.HSPF = &f
			}
		case "refrigerant":
			s.Refrigerant = normalizeRefrigerant(v)
		case "stage", "stages", "staging":
			s.Stage = normalizeStage(v)
		}
	}
	return s
}

// specsFromText regex-extracts fields from upper-cased free text, keeping
// only plausible values.
func specsFromText(text string) SpecSet {
	var s SpecSet
	if text == "" {
		return s
	}

	if v, ok := firstFloat(text, tonnageBounds, reTon); ok {
		s.Tonnage = &v
	} else if m := reBTU.FindStringSubmatch(text); m != nil {
		if f, ok := parseNumber(m[1]); ok && tonnageBounds.contains(f/BTUPerTon) {
			t := f / BTUPerTon
			s.Tonnage = &t
		}
	} else if m := reKBTU.FindStringSubmatch(text); m != nil {
		if f, ok := parseNumber(m[1]); ok && tonnageBounds.contains(f*1000/BTUPerTon) {
			t := f * 1000 / BTUPerTon
			s.Tonnage = &t
		}
	}

	if v, ok := firstFloat(text, seerBounds, reSEERBefore, reSEERAfter); ok {
		s.SEER = &v
	}
	if v, ok := firstFloat(text, seer2Bounds, reSEER2Before, reSEER2After); ok {
		s.SEER2 = &v
	}
	if v, ok := firstFloat(text, afueBounds, reAFUEBefore, reAFUEAfter); ok {
		s.AFUE = &v
	}
	if v, ok := firstFloat(text, hspfBounds, reHSPFBefore, reHSPFAfter); ok {
		s.HSPF = &v
	}
	if m := reRefrigerant.FindStringSubmatch(text); m != nil {
		s.Refrigerant = "R" + m[1]
	}
	s.Stage = stageFromText(text)
	return s
}

func firstFloat(text string, b bounds, patterns ...*regexp.Regexp) (float64, bool) {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if f, ok := parseNumber(m[1]); ok && b.contains(f) {
				return f, true
			}
		}
	}
	return 0, false
}

// parseNumber reads the first number in v, ignoring thousands separators.
func parseNumber(v string) (float64, bool) {
	m := reNumber.FindString(strings.ReplaceAll(v, ",", ""))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func normalizeRefrigerant(v string) string {
	code := NormalizeCode(v)
	if code == "" {
		return ""
	}
	if !strings.HasPrefix(code, "R") {
		code = "R" + code
	}
	return code
}

func normalizeStage(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	switch strings.ToLower(v) {
	case "1", "single", "one":
		return StageSingle
	case "2", "two", "dual":
		return StageTwo
	case "variable", "modulating", "inverter":
		return StageVariable
	}
	return stageFromText(strings.ToUpper(v))
}

func stageFromText(text string) string {
	switch {
	case reStageVar.MatchString(text):
		return StageVariable
	case reStageTwo.MatchString(text):
		return StageTwo
	case reStageSingle.MatchString(text):
		return StageSingle
	}
	return ""
}

// FieldConfidence scores one numeric comparison. Within tolerance the score
// falls linearly from 1.0 to 0.5; beyond it decays exponentially from 0.5
// toward 0, so the curve is continuous and non-increasing in diff.
func FieldConfidence(diff, tol float64) (confidence float64, matched bool) {
	diff = math.Abs(diff)
	if tol <= 0 {
		if diff == 0 {
			return 1, true
		}
		return 0.5 * math.Exp(-diff), false
	}
	if diff <= tol {
		return 1 - 0.5*diff/tol, true
	}
	return 0.5 * math.Exp(-(diff-tol)/tol), false
}

// SpecComparison is the outcome of comparing two spec sets.
type SpecComparison struct {
	Score      float64
	Compared   int
	Matched    []string
	Mismatched []string
	Missing    []string
	Reasoning  []string
}

// CompareSpecs compares every field present on both sides and returns the
// weighted average score over those fields only.
func CompareSpecs(theirs, ours SpecSet, tol model.Tolerances, cfg SpecConfig) SpecComparison {
	var (
		c            SpecComparison
		sum, weights float64
	)

	numeric := func(field string, a, b *float64, window, weight float64) {
		switch {
		case a == nil && b == nil:
			return
		case a == nil || b == nil:
			c.Missing = append(c.Missing, field)
			return
		}
		conf, ok := FieldConfidence(*a-*b, window)
		c.Compared++
		sum += weight * conf
		weights += weight
		if ok {
			c.Matched = append(c.Matched, field)
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("%s %g vs %g within ±%g", field, *a, *b, window))
		} else {
			c.Mismatched = append(c.Mismatched, field)
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("%s %g vs %g outside ±%g", field, *a, *b, window))
		}
	}
	categorical := func(field, a, b string, weight float64) {
		switch {
		case a == "" && b == "":
			return
		case a == "" || b == "":
			c.Missing = append(c.Missing, field)
			return
		}
		c.Compared++
		weights += weight
		if a == b {
			sum += weight
			c.Matched = append(c.Matched, field)
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("%s %s matches", field, a))
		} else {
			c.Mismatched = append(c.Mismatched, field)
			c.Reasoning = append(c.Reasoning, fmt.Sprintf("%s %s vs %s", field, a, b))
		}
	}

	numeric(FieldTonnage, theirs.Tonnage, ours.Tonnage, tol.Tonnage, cfg.TonnageWeight)
	numeric(FieldSEER, theirs.SEER, ours.SEER, tol.SEER, cfg.SEERWeight)
	numeric(FieldSEER2, theirs.SEER2, ours.SEER2, tol.SEER2, cfg.SEER2Weight)
	numeric(FieldAFUE, theirs.AFUE, ours.AFUE, tol.AFUE, cfg.AFUEWeight)
	numeric(FieldHSPF, theirs.HSPF, ours.HSPF, tol.HSPF, cfg.HSPFWeight)
	categorical(FieldRefrigerant, theirs.Refrigerant, ours.Refrigerant, cfg.RefrigerantWeight)
	categorical(FieldStage, theirs.Stage, ours.Stage, cfg.StageWeight)

	if weights > 0 {
		c.Score = sum / weights
	}
	return c
}

// SpecificationStrategy compares numeric and categorical specifications.
type SpecificationStrategy struct {
	h *Heuristics
}

// NewSpecificationStrategy creates a specification strategy.
func NewSpecificationStrategy(h *Heuristics) *SpecificationStrategy {
	return &SpecificationStrategy{h: h}
}

// Name implements Strategy.
func (s *SpecificationStrategy) Name() string { return StrategySpecifications }

// Description implements Strategy.
func (s *SpecificationStrategy) Description() string {
	return "weighted tolerance comparison of tonnage, efficiency, refrigerant and staging"
}

// ConfidenceRange implements Strategy.
func (s *SpecificationStrategy) ConfidenceRange() model.Range {
	return model.Range{Min: 0, Max: s.h.Specs.Ceiling}
}

// CanHandle implements Strategy.
func (s *SpecificationStrategy) CanHandle(p model.CompetitorProduct) bool {
	return !ExtractCompetitorSpecs(p).Empty()
}

// FindMatches implements Strategy.
func (s *SpecificationStrategy) FindMatches(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions) ([]model.MatchCandidate, error) {
	theirs := ExtractCompetitorSpecs(p)
	if theirs.Empty() {
		return nil, nil
	}

	var out []model.MatchCandidate
	for i := range catalog {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := &catalog[i]

		cmp := CompareSpecs(theirs, CatalogSpecs(item), opts.Tolerances, s.h.Specs)
		if cmp.Compared == 0 {
			continue
		}
		if opts.StrictMode && len(cmp.Mismatched) > 0 {
			continue
		}

		conf := model.Clamp01(cmp.Score * s.h.Specs.Ceiling)
		out = append(out, model.MatchCandidate{
			TargetSKU:       item.SKU,
			Product:         item,
			Confidence:      conf,
			Method:          model.MethodSpecifications,
			Strategy:        s.Name(),
			Reasoning:       cmp.Reasoning,
			SpecsMatched:    cmp.Matched,
			SpecsMismatched: cmp.Mismatched,
			SpecsMissing:    cmp.Missing,
			Scores:          model.ScoreBreakdown{Specifications: cmp.Score, Overall: conf},
		})
	}
	return out, nil
}
