package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/metrics"
)

func TestObserveRequest(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest("GET", "/v1/recommendations", 200, 0.01)
	m.ObserveRequest("GET", "/v1/recommendations", 200, 0.02)
	m.ObserveRequest("GET", "", 404, 0.001)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "/v1/recommendations", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "unmatched", "404")))
}

func TestObserveRun(t *testing.T) {
	m := metrics.New()
	m.ObserveRun("schedule", 3, 2, nil)
	m.ObserveRun("schedule", 0, 0, errors.New("store down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRuns.WithLabelValues("schedule", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRuns.WithLabelValues("schedule", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RecommendationsGenerated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecommendationsPurged))
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.ObserveRun("manual", 1, 0, nil)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "decision_cogitator_recommendations_generated_total 1")
}

func TestNew_Independent(t *testing.T) {
	a, b := metrics.New(), metrics.New()
	a.ObserveRun("manual", 5, 0, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecommendationsGenerated))
}
