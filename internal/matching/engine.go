package matching

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/model"
	"github.com/sells-group/product-match/internal/resilience"
)

// Collaborator names used in logs, guards and metrics.
const (
	CollaboratorMappings = "existing_mapping"
	CollaboratorResearch = "research"
)

// MappingLookup returns a previously confirmed match for a competitor
// record, or nil when none is known.
type MappingLookup interface {
	LookupExistingMapping(ctx context.Context, p model.CompetitorProduct) (*model.MatchCandidate, error)
}

// ResearchEnhancer proposes extra candidates for records the engine could
// not resolve confidently.
type ResearchEnhancer interface {
	EnhanceWithResearch(ctx context.Context, p model.CompetitorProduct, uncertain []model.MatchCandidate) ([]model.MatchCandidate, error)
}

// Observer receives engine events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveMatch(resp *model.MatchingResponse, elapsed time.Duration)
	ObserveStrategy(strategy string, candidates int, err error)
	ObserveCollaborator(name string, elapsed time.Duration, err error)
}

// Engine runs strategies, fuses their candidates and keeps statistics.
type Engine struct {
	registry *Registry
	scorer   *Scorer
	stats    *Stats

	mappings      MappingLookup
	mappingGuard  *resilience.Guard
	enhancer      ResearchEnhancer
	researchGuard *resilience.Guard
	observer      Observer

	batchConcurrency int
	now              func() time.Time
}

// NewEngine creates an engine. A nil registry registers the built-in
// strategies; a nil scorer uses default heuristics.
func NewEngine(registry *Registry, scorer *Scorer) *Engine {
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	if registry == nil {
		registry = NewDefaultRegistry(scorer.Heuristics())
	}
	return &Engine{
		registry:         registry,
		scorer:           scorer,
		stats:            NewStats(),
		batchConcurrency: 8,
		now:              time.Now,
	}
}

// WithMappingLookup sets the existing-mapping collaborator and its guard.
func (e *Engine) WithMappingLookup(l MappingLookup, g *resilience.Guard) *Engine {
	e.mappings = l
	e.mappingGuard = g
	return e
}

// WithEnhancer sets the research collaborator and its guard.
func (e *Engine) WithEnhancer(r ResearchEnhancer, g *resilience.Guard) *Engine {
	e.enhancer = r
	e.researchGuard = g
	return e
}

// WithObserver sets an observer for match, strategy and collaborator events.
func (e *Engine) WithObserver(o Observer) *Engine {
	e.observer = o
	return e
}

// WithBatchConcurrency caps concurrent items in MatchBatch.
func (e *Engine) WithBatchConcurrency(n int) *Engine {
	if n > 0 {
		e.batchConcurrency = n
	}
	return e
}

// WithNow overrides the clock used for latency measurement.
func (e *Engine) WithNow(fn func() time.Time) *Engine {
	e.now = fn
	return e
}

// Register adds a strategy to the engine's registry.
func (e *Engine) Register(s Strategy) { e.registry.Register(s) }

// Strategies returns the registered strategy names in execution order.
func (e *Engine) Strategies() []string { return e.registry.List() }

// Strategy returns a registered strategy by name, or nil.
func (e *Engine) Strategy(name string) Strategy { return e.registry.Get(name) }

// Stats returns a snapshot of the running statistics.
func (e *Engine) Stats() StatsSnapshot { return e.stats.Snapshot() }

// ResetStats clears the running statistics.
func (e *Engine) ResetStats() { e.stats.Reset() }

// Match resolves one competitor record against catalog. Invalid options or
// input return a failed response together with the error; strategy and
// collaborator failures never fail the request.
func (e *Engine) Match(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions) (*model.MatchingResponse, error) {
	start := e.now()
	resp := &model.MatchingResponse{
		RequestID:      uuid.NewString(),
		Competitor:     p,
		Matches:        []model.MatchCandidate{},
		StrategiesUsed: []string{},
		Confidence:     model.ConfidenceNone,
		State:          model.StateNotStarted,
	}
	log := zap.L().With(zap.String("request_id", resp.RequestID), zap.String("competitor_sku", p.SKU))

	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return e.fail(resp, start, &OptionsError{Err: err})
	}
	enabled, unknown := e.registry.Enabled(opts)
	if len(unknown) > 0 {
		return e.fail(resp, start, &OptionsError{
			Err: eris.Errorf("matching: unknown strategies: %s", strings.Join(unknown, ", ")),
		})
	}
	if err := validateInput(p); err != nil {
		return e.fail(resp, start, err)
	}

	resp.State = model.StateExistingMappingCheck
	if hit := e.lookupMapping(ctx, p, catalog, log); hit != nil {
		resp.ShortCircuited = true
		resp.Matches = []model.MatchCandidate{*hit}
		resp.Evidence = []model.MatchCandidate{*hit}
		resp.TotalCandidates = 1
		resp.Confidence = model.LabelFor(hit.Confidence)
		resp.State = model.StateComplete
		log.Debug("matching: existing mapping short-circuit", zap.String("target_sku", hit.TargetSKU))
		e.finish(resp, start)
		return resp, nil
	}

	resp.State = model.StateStrategyExecution
	var raw []model.MatchCandidate
	for _, s := range enabled {
		if err := ctx.Err(); err != nil {
			return e.fail(resp, start, eris.Wrap(err, "matching: match canceled"))
		}
		if !s.CanHandle(p) {
			continue
		}
		cands, err := e.runStrategy(ctx, s, p, catalog, opts)
		if e.observer != nil {
			e.observer.ObserveStrategy(s.Name(), len(cands), err)
		}
		if err != nil {
			serr := &StrategyError{Strategy: s.Name(), SKU: p.SKU, Err: err}
			log.Warn("matching: strategy failed", zap.String("strategy", s.Name()), zap.Error(serr))
			e.stats.recordStrategyFailure(s.Name())
			continue
		}
		resp.StrategiesUsed = append(resp.StrategiesUsed, s.Name())
		raw = append(raw, e.sanitize(s, cands, log)...)
	}
	resp.Evidence = raw

	resp.State = model.StateFusion
	fused := e.scorer.Fuse(p, catalog, raw)
	resp.TotalCandidates = len(fused)

	resp.State = model.StateFiltering
	resp.Matches = filterMatches(fused, opts)
	resp.Confidence = labelOf(resp.Matches)

	resp.State = model.StateComplete
	e.finish(resp, start)
	return resp, nil
}

// NeedsResearch reports whether resp is complete but lacks a high-confidence
// match.
func NeedsResearch(resp *model.MatchingResponse) bool {
	if resp == nil || resp.State != model.StateComplete || resp.ShortCircuited {
		return false
	}
	return resp.Confidence != model.ConfidenceHigh
}

// researchShortlist re-fuses resp's evidence without the threshold filter, so
// candidates that fell below the threshold reach research. The list is capped
// at opts.MaxResults.
func (e *Engine) researchShortlist(resp *model.MatchingResponse, catalog []model.CatalogProduct, opts model.MatchingOptions) []model.MatchCandidate {
	fused := e.scorer.Fuse(resp.Competitor, catalog, resp.Evidence)
	if len(fused) > opts.MaxResults {
		fused = fused[:opts.MaxResults]
	}
	return fused
}

// Enhance asks the research collaborator for more candidates and re-fuses
// them with resp's evidence. On collaborator failure resp is returned
// unchanged.
func (e *Engine) Enhance(ctx context.Context, resp *model.MatchingResponse, catalog []model.CatalogProduct, opts model.MatchingOptions) (*model.MatchingResponse, error) {
	if resp == nil {
		return nil, eris.New("matching: enhance nil response")
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return resp, &OptionsError{Err: err}
	}
	if e.enhancer == nil || resp.State != model.StateComplete {
		return resp, nil
	}

	shortlist := e.researchShortlist(resp, catalog, opts)
	if len(shortlist) == 0 {
		return resp, nil
	}

	log := zap.L().With(zap.String("request_id", resp.RequestID), zap.String("competitor_sku", resp.Competitor.SKU))
	start := e.now()
	research, err := resilience.Call(ctx, e.researchGuard, func(ctx context.Context) ([]model.MatchCandidate, error) {
		return e.enhancer.EnhanceWithResearch(ctx, resp.Competitor, shortlist)
	})
	if e.observer != nil {
		e.observer.ObserveCollaborator(CollaboratorResearch, e.now().Sub(start), err)
	}
	if err != nil {
		log.Warn("matching: research unavailable, keeping original matches", zap.Error(err))
		return resp, nil
	}
	if len(research) == 0 {
		return resp, nil
	}

	for i := range research {
		if !research[i].Method.Valid() {
			research[i].Method = model.MethodAIEnhanced
		}
		if research[i].Strategy == "" {
			research[i].Strategy = CollaboratorResearch
		}
		research[i].Confidence = model.Clamp01(research[i].Confidence)
	}

	out := *resp
	out.Evidence = append(append([]model.MatchCandidate(nil), resp.Evidence...), research...)
	out.StrategiesUsed = append(append([]string(nil), resp.StrategiesUsed...), CollaboratorResearch)
	fused := e.scorer.Fuse(out.Competitor, catalog, out.Evidence)
	out.TotalCandidates = len(fused)
	out.Matches = filterMatches(fused, opts)
	out.Confidence = labelOf(out.Matches)
	out.Enhanced = true
	out.DurationMs += e.now().Sub(start).Milliseconds()
	return &out, nil
}

// runStrategy executes one strategy, converting a panic into an error.
func (e *Engine) runStrategy(ctx context.Context, s Strategy, p model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions) (cands []model.MatchCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			cands = nil
			err = eris.Errorf("panic: %v", r)
		}
	}()
	return s.FindMatches(ctx, p, catalog, opts)
}

// sanitize enforces the strategy's declared range and the [0,1] bound.
func (e *Engine) sanitize(s Strategy, cands []model.MatchCandidate, log *zap.Logger) []model.MatchCandidate {
	rng := s.ConfidenceRange()
	out := cands[:0:0]
	for _, c := range cands {
		if math.IsNaN(c.Confidence) {
			log.Warn("matching: dropping NaN confidence", zap.String("strategy", s.Name()), zap.String("target_sku", c.TargetSKU))
			continue
		}
		if c.Confidence > rng.Max {
			log.Warn("matching: confidence above declared range",
				zap.String("strategy", s.Name()),
				zap.String("target_sku", c.TargetSKU),
				zap.Float64("confidence", c.Confidence),
				zap.Float64("max", rng.Max),
			)
			c.Confidence = rng.Max
		}
		c.Confidence = model.Clamp01(c.Confidence)
		if c.Strategy == "" {
			c.Strategy = s.Name()
		}
		out = append(out, c)
	}
	return out
}

// lookupMapping consults the mapping collaborator. Errors, timeouts and
// targets missing from the catalog all mean "no mapping".
func (e *Engine) lookupMapping(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, log *zap.Logger) *model.MatchCandidate {
	if e.mappings == nil {
		return nil
	}
	start := e.now()
	hit, err := resilience.Call(ctx, e.mappingGuard, func(ctx context.Context) (*model.MatchCandidate, error) {
		return e.mappings.LookupExistingMapping(ctx, p)
	})
	if e.observer != nil {
		e.observer.ObserveCollaborator(CollaboratorMappings, e.now().Sub(start), err)
	}
	if err != nil {
		log.Warn("matching: existing mapping lookup failed, continuing", zap.Error(err))
		return nil
	}
	if hit == nil {
		return nil
	}

	idx := catalogIndex(catalog, hit.TargetSKU)
	if idx < 0 {
		log.Warn("matching: ignoring existing mapping",
			zap.Error(&FusionInconsistencyError{TargetSKU: hit.TargetSKU, Strategy: CollaboratorMappings}))
		return nil
	}

	c := *hit
	c.TargetSKU = catalog[idx].SKU
	c.Product = &catalog[idx]
	c.Method = model.MethodExistingMapping
	c.Confidence = model.Clamp01(c.Confidence)
	c.Scores.Overall = c.Confidence
	if c.Strategy == "" {
		c.Strategy = CollaboratorMappings
	}
	if len(c.Reasoning) == 0 {
		c.Reasoning = []string{"previously confirmed mapping"}
	}
	return &c
}

func (e *Engine) fail(resp *model.MatchingResponse, start time.Time, err error) (*model.MatchingResponse, error) {
	resp.State = model.StateFailed
	resp.Error = err.Error()
	resp.Matches = []model.MatchCandidate{}
	resp.Confidence = model.ConfidenceNone
	e.finish(resp, start)
	return resp, err
}

func (e *Engine) finish(resp *model.MatchingResponse, start time.Time) {
	elapsed := e.now().Sub(start)
	resp.DurationMs = elapsed.Milliseconds()
	e.stats.record(resp, elapsed)
	if e.observer != nil {
		e.observer.ObserveMatch(resp, elapsed)
	}
}

func validateInput(p model.CompetitorProduct) error {
	if !p.HasIdentifier() {
		return &InputValidationError{SKU: p.SKU, Reason: ErrNoIdentifier}
	}
	if p.Price != nil {
		v := *p.Price
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= MinPrice || v > MaxPrice {
			return &InputValidationError{SKU: p.SKU, Reason: ErrPriceOutOfBounds}
		}
	}
	return nil
}

func filterMatches(fused []model.MatchCandidate, opts model.MatchingOptions) []model.MatchCandidate {
	out := make([]model.MatchCandidate, 0, len(fused))
	for _, c := range fused {
		if c.Confidence < opts.ConfidenceThreshold {
			continue
		}
		out = append(out, c)
		if len(out) == opts.MaxResults {
			break
		}
	}
	return out
}

func labelOf(matches []model.MatchCandidate) model.ConfidenceLabel {
	if len(matches) == 0 {
		return model.ConfidenceNone
	}
	return model.LabelFor(matches[0].Confidence)
}

func catalogIndex(catalog []model.CatalogProduct, sku string) int {
	for i := range catalog {
		if catalog[i].SKU == sku {
			return i
		}
	}
	norm := NormalizeCode(sku)
	if norm == "" {
		return -1
	}
	for i := range catalog {
		if NormalizeCode(catalog[i].SKU) == norm {
			return i
		}
	}
	return -1
}
