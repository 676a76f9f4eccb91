package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
)

func TestRecorder_ObserveMatch(t *testing.T) {
	r := NewRecorder()

	r.ObserveMatch(&model.MatchingResponse{
		State:      model.StateComplete,
		Confidence: model.ConfidenceHigh,
		Matches:    []model.MatchCandidate{{TargetSKU: "A", Confidence: 0.98, Method: model.MethodExactSKU}},
	}, 5*time.Millisecond)
	r.ObserveMatch(&model.MatchingResponse{State: model.StateFailed, Confidence: model.ConfidenceNone}, time.Millisecond)
	r.ObserveMatch(nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("complete", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("failed", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.methods.WithLabelValues("exact_sku")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.topConfidence))
}

func TestRecorder_StrategiesAndCollaborators(t *testing.T) {
	r := NewRecorder()

	r.ObserveStrategy("exact", 1, nil)
	r.ObserveStrategy("fuzzy", 0, errors.New("boom"))
	r.ObserveCollaborator(matching.CollaboratorMappings, time.Millisecond, nil)
	r.ObserveCollaborator(matching.CollaboratorResearch, time.Second, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.strategyRuns.WithLabelValues("exact", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.strategyRuns.WithLabelValues("fuzzy", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.collaborators.WithLabelValues("existing_mapping", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.collaborators.WithLabelValues("research", "error")))
}

func TestRecorder_EngineAndHandler(t *testing.T) {
	r := NewRecorder()
	e := matching.NewEngine(nil, nil).WithObserver(r)
	catalog := []model.CatalogProduct{{SKU: "LEN-036-16", Model: "EL16XC1036", Brand: "Lennox"}}

	_, err := e.Match(context.Background(), model.CompetitorProduct{SKU: "LEN-036-16"}, catalog, matching.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("complete", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.strategyRuns.WithLabelValues("exact", "ok")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "product_match_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
