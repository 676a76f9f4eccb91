// Package metrics exposes engine events as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
)

const namespace = "product_match"

// Recorder implements matching.Observer over its own Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	topConfidence prometheus.Histogram
	methods       *prometheus.CounterVec
	strategyRuns  *prometheus.CounterVec
	candidates    *prometheus.HistogramVec
	collaborators *prometheus.CounterVec
	collabLatency *prometheus.HistogramVec
}

var _ matching.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder with a fresh registry that also carries the
// Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Match requests by final state and confidence label.",
		}, []string{"state", "confidence"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Match request latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"state"}),
		topConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "top_match_confidence",
			Help:      "Confidence of the best match per completed request.",
			Buckets:   []float64{.45, .55, .65, .75, .85, .9, .95, 1},
		}),
		methods: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "top_match_method_total",
			Help:      "Method of the best match per completed request.",
		}, []string{"method"}),
		strategyRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_runs_total",
			Help:      "Strategy executions by outcome.",
		}, []string{"strategy", "outcome"}),
		candidates: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_candidates",
			Help:      "Candidates returned per strategy run.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}, []string{"strategy"}),
		collaborators: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_calls_total",
			Help:      "Collaborator calls by outcome.",
		}, []string{"collaborator", "outcome"}),
		collabLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_duration_seconds",
			Help:      "Collaborator call latency.",
		}, []string{"collaborator"}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveMatch implements matching.Observer.
func (r *Recorder) ObserveMatch(resp *model.MatchingResponse, elapsed time.Duration) {
	if resp == nil {
		return
	}
	state := string(resp.State)
	r.requests.WithLabelValues(state, string(resp.Confidence)).Inc()
	r.latency.WithLabelValues(state).Observe(elapsed.Seconds())
	if best := resp.Best(); best != nil && resp.State == model.StateComplete {
		r.topConfidence.Observe(best.Confidence)
		r.methods.WithLabelValues(string(best.Method)).Inc()
	}
}

// ObserveStrategy implements matching.Observer.
func (r *Recorder) ObserveStrategy(strategy string, candidates int, err error) {
	r.strategyRuns.WithLabelValues(strategy, outcome(err)).Inc()
	if err == nil {
		r.candidates.WithLabelValues(strategy).Observe(float64(candidates))
	}
}

// ObserveCollaborator implements matching.Observer.
func (r *Recorder) ObserveCollaborator(name string, elapsed time.Duration, err error) {
	r.collaborators.WithLabelValues(name, outcome(err)).Inc()
	r.collabLatency.WithLabelValues(name).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
