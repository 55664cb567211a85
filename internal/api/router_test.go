package api_test

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/MereWhiplash/decision-cogitator/internal/api"
	"github.com/MereWhiplash/decision-cogitator/internal/apitypes/apitypestest"
	"github.com/MereWhiplash/decision-cogitator/internal/metrics"
)

func TestRouter_Metrics(t *testing.T) {
	m := metrics.New()
	h := api.NewRouter(api.NewHandlers(apitypestest.New()), api.RouterConfig{Logger: zerolog.Nop(), Metrics: m})

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/v1/recommendations?limit=2", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/v1/recommendations", nil).Code)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "/v1/recommendations", "200")))

	rr := do(t, h, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "decision_cogitator_http_requests_total")
}

func TestRouter_NoMetricsRoute(t *testing.T) {
	_, _, h := setupTestServer()
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/metrics", nil).Code)
}
