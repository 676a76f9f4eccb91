// Package matching resolves competitor product records against our catalog
// using independent comparison strategies and confidence fusion.
package matching

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sells-group/product-match/internal/model"
)

// Strategy names.
const (
	StrategyExact            = "exact"
	StrategyFuzzy            = "fuzzy"
	StrategySpecifications   = "specifications"
	StrategyBrandTranslation = "brand_translation"
	StrategyCapacity         = "capacity"
	StrategyPriceBand        = "price_band"
)

// DefaultStrategies are enabled when options do not name any.
var DefaultStrategies = []string{StrategyExact, StrategyFuzzy, StrategySpecifications}

// Strategy produces match candidates from one comparison signal.
// Implementations must not mutate their inputs and must be safe for
// concurrent use.
type Strategy interface {
	// Name returns the registry key for the strategy.
	Name() string
	// Description is a one-line human summary.
	Description() string
	// ConfidenceRange is the declared [min,max] of emitted confidences.
	ConfidenceRange() model.Range
	// CanHandle is a cheap applicability test on field availability.
	CanHandle(p model.CompetitorProduct) bool
	// FindMatches returns candidates for the competitor against catalog.
	FindMatches(ctx context.Context, p model.CompetitorProduct, catalog []model.CatalogProduct, opts model.MatchingOptions) ([]model.MatchCandidate, error)
}

// Registry maps strategy names to implementations and remembers
// registration order, which is also execution order.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	order      []string
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds or replaces a strategy. Names are case-insensitive.
func (r *Registry) Register(s Strategy) {
	key := strings.ToLower(s.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[key]; !exists {
		r.order = append(r.order, key)
	}
	r.strategies[key] = s
}

// Get returns a strategy by name, or nil if not found.
func (r *Registry) Get(name string) Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategies[strings.ToLower(name)]
}

// List returns registered names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Enabled returns the registered strategies named in opts, in registration
// order. Unknown names are returned separately.
func (r *Registry) Enabled(opts model.MatchingOptions) (enabled []Strategy, unknown []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range r.order {
		if opts.Enabled(key) {
			enabled = append(enabled, r.strategies[key])
		}
	}
	for _, name := range opts.Strategies {
		if _, ok := r.strategies[strings.ToLower(name)]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return enabled, unknown
}

// NewDefaultRegistry registers every built-in strategy configured with h.
func NewDefaultRegistry(h *Heuristics) *Registry {
	if h == nil {
		h = DefaultHeuristics()
	}
	r := NewRegistry()
	r.Register(NewExactStrategy(h))
	r.Register(NewFuzzyModelStrategy(h))
	r.Register(NewSpecificationStrategy(h))
	r.Register(NewBrandTranslationStrategy(h))
	r.Register(NewCapacityStrategy(h))
	r.Register(NewPriceBandStrategy(h))
	return r
}
