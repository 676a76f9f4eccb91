package model

import "math"

// MatchMethod identifies which signal produced a candidate.
type MatchMethod string

const (
	MethodExactSKU        MatchMethod = "exact_sku"
	MethodExactModel      MatchMethod = "exact_model"
	MethodFuzzyModel      MatchMethod = "fuzzy_model"
	MethodSpecifications  MatchMethod = "specifications"
	MethodHybrid          MatchMethod = "hybrid"
	MethodExistingMapping MatchMethod = "existing_mapping"
	MethodAIEnhanced      MatchMethod = "ai_enhanced"
)

// methodPriority ranks methods when fusion picks a primary candidate.
var methodPriority = map[MatchMethod]int{
	MethodExactSKU:        10,
	MethodExactModel:      9,
	MethodExistingMapping: 8,
	MethodSpecifications:  7,
	MethodFuzzyModel:      6,
	MethodHybrid:          5,
	MethodAIEnhanced:      4,
}

// Priority returns the fusion priority of the method. Unknown methods rank last.
func (m MatchMethod) Priority() int {
	return methodPriority[m]
}

// IsExact reports whether the method is an exact identity signal.
func (m MatchMethod) IsExact() bool {
	return m == MethodExactSKU || m == MethodExactModel
}

// Valid reports whether m is a known method.
func (m MatchMethod) Valid() bool {
	_, ok := methodPriority[m]
	return ok
}

// Range is a closed confidence interval a strategy declares for itself.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// ScoreBreakdown carries per-axis scores for a candidate.
type ScoreBreakdown struct {
	Exact          float64 `json:"exact"`
	Model          float64 `json:"model"`
	Specifications float64 `json:"specifications"`
	Overall        float64 `json:"overall"`
}

// MatchCandidate is a proposed equivalence between a competitor record and
// one catalog product.
type MatchCandidate struct {
	TargetSKU       string          `json:"target_sku" csv:"target_sku"`
	Product         *CatalogProduct `json:"product,omitempty" csv:"-"`
	Confidence      float64         `json:"confidence" csv:"confidence"`
	Method          MatchMethod     `json:"method" csv:"method"`
	Strategy        string          `json:"strategy,omitempty" csv:"strategy,omitempty"`
	Reasoning       []string        `json:"reasoning,omitempty" csv:"-"`
	SpecsMatched    []string        `json:"specs_matched,omitempty" csv:"-"`
	SpecsMismatched []string        `json:"specs_mismatched,omitempty" csv:"-"`
	SpecsMissing    []string        `json:"specs_missing,omitempty" csv:"-"`
	Scores          ScoreBreakdown  `json:"scores" csv:"-"`
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ConfidenceLabel is the categorical confidence of a response.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
	ConfidenceNone   ConfidenceLabel = "none"
)

// LabelFor maps a confidence to its label using fixed cutoffs.
func LabelFor(confidence float64) ConfidenceLabel {
	switch {
	case confidence >= 0.85:
		return ConfidenceHigh
	case confidence >= 0.65:
		return ConfidenceMedium
	case confidence >= 0.45:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// MatchState tracks where a request is in the matching pipeline.
type MatchState string

const (
	StateNotStarted           MatchState = "not_started"
	StateExistingMappingCheck MatchState = "existing_mapping_check"
	StateStrategyExecution    MatchState = "strategy_execution"
	StateFusion               MatchState = "fusion"
	StateFiltering            MatchState = "filtering"
	StateComplete             MatchState = "complete"
	StateFailed               MatchState = "failed"
)

// MatchingResponse is the outcome of matching one competitor record.
type MatchingResponse struct {
	RequestID       string            `json:"request_id"`
	Competitor      CompetitorProduct `json:"competitor"`
	Matches         []MatchCandidate  `json:"matches"`
	TotalCandidates int               `json:"total_candidates"`
	StrategiesUsed  []string          `json:"strategies_used"`
	Confidence      ConfidenceLabel   `json:"confidence"`
	State           MatchState        `json:"state"`
	ShortCircuited  bool              `json:"short_circuited,omitempty"`
	Enhanced        bool              `json:"enhanced,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
	Error           string            `json:"error,omitempty"`

	// Evidence holds the raw strategy candidates so the response can be
	// re-fused later with research candidates.
	Evidence []MatchCandidate `json:"evidence,omitempty"`
}

// Best returns the top match, or nil when there are none.
func (r *MatchingResponse) Best() *MatchCandidate {
	if r == nil || len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}
