package matching

import (
	"maps"
	"sync"
	"time"

	"github.com/sells-group/product-match/internal/model"
)

// StatsSnapshot is a point-in-time copy of engine statistics.
type StatsSnapshot struct {
	TotalRequests    int64                       `json:"total_requests"`
	CompletedMatches int64                       `json:"completed_requests"`
	FailedRequests   int64                       `json:"failed_requests"`
	ShortCircuits    int64                       `json:"short_circuits"`
	WithMatches      int64                       `json:"with_matches"`
	AvgLatencyMs     float64                     `json:"avg_latency_ms"`
	AvgConfidence    float64                     `json:"avg_confidence"`
	MethodUsage      map[model.MatchMethod]int64 `json:"method_usage"`
	StrategyFailures map[string]int64            `json:"strategy_failures"`
	Since            time.Time                   `json:"since"`
}

// Stats accumulates running statistics for one engine. All updates go
// through a single mutex.
type Stats struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// NewStats creates an empty accumulator.
func NewStats() *Stats {
	st := &Stats{}
	st.reset()
	return st
}

func (st *Stats) reset() {
	st.s = StatsSnapshot{
		MethodUsage:      make(map[model.MatchMethod]int64),
		StrategyFailures: make(map[string]int64),
		Since:            time.Now().UTC(),
	}
}

// Reset clears all counters and averages.
func (st *Stats) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reset()
}

// Snapshot returns a copy that is safe to read without locking.
func (st *Stats) Snapshot() StatsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.s
	out.MethodUsage = maps.Clone(st.s.MethodUsage)
	out.StrategyFailures = maps.Clone(st.s.StrategyFailures)
	return out
}

// record folds one finished request into the running averages:
// avg += (x - avg) / n. Latency averages over every request, confidence
// over completed ones using the top match (0 when there is none).
func (st *Stats) record(resp *model.MatchingResponse, elapsed time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.TotalRequests++
	ms := float64(elapsed) / float64(time.Millisecond)
	st.s.AvgLatencyMs += (ms - st.s.AvgLatencyMs) / float64(st.s.TotalRequests)

	if resp.State != model.StateComplete {
		st.s.FailedRequests++
		return
	}
	st.s.CompletedMatches++
	if resp.ShortCircuited {
		st.s.ShortCircuits++
	}

	var top float64
	if best := resp.Best(); best != nil {
		top = best.Confidence
		st.s.WithMatches++
	}
	st.s.AvgConfidence += (top - st.s.AvgConfidence) / float64(st.s.CompletedMatches)

	for _, m := range resp.Matches {
		st.s.MethodUsage[m.Method]++
	}
}

func (st *Stats) recordStrategyFailure(name string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.StrategyFailures[name]++
}
