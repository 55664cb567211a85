package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/api"
	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/apitypes/apitypestest"
	"github.com/MereWhiplash/decision-cogitator/internal/client"
	"github.com/MereWhiplash/decision-cogitator/internal/gitinfo"
	"github.com/MereWhiplash/decision-cogitator/internal/recognizer"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

func newClient(t *testing.T, info *gitinfo.Info) (*client.Client, *apitypestest.Backend) {
	t.Helper()
	backend := apitypestest.New()
	server := httptest.NewServer(api.NewRouter(api.NewHandlers(backend), api.RouterConfig{Logger: zerolog.Nop()}))
	t.Cleanup(server.Close)
	return client.New(server.URL+"/", info), backend
}

func TestClient_Specifications(t *testing.T) {
	ctx := context.Background()
	c, backend := newClient(t, &gitinfo.Info{AuthorName: "Alice", AuthorEmail: "alice@example.com", Repo: "acme/api"})

	spec, err := c.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecPRD, "PRD 7/payments", "Payments", "Body", ""))
	require.NoError(t, err)
	assert.Equal(t, 1, spec.Version)
	assert.Equal(t, "Alice <alice@example.com>", spec.Author)
	assert.Equal(t, "acme/api", spec.Metadata[types.MetaRepo])

	got, err := c.GetSpecification(ctx, apitypes.SpecQuery{SpecType: types.SpecPRD, Identifier: "PRD 7/payments"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, spec.ID, got.ID)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err = c.GetSpecification(ctx, apitypes.SpecQuery{SpecType: types.SpecPRD, Identifier: "PRD 7/payments", At: &at})
	require.NoError(t, err)
	require.NotNil(t, backend.LastSpecQuery.At)
	assert.True(t, at.Equal(*backend.LastSpecQuery.At))

	missing, err := c.GetSpecification(ctx, apitypes.SpecQuery{SpecType: types.SpecPRD, Identifier: "nope"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	history, err := c.SpecificationHistory(ctx, types.SpecPRD, "PRD 7/payments")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	recent, err := c.RecentSpecifications(ctx, types.SpecListOpts{SpecType: types.SpecPRD, Limit: 3})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, spec.ID, recent[0].ID)
	assert.Equal(t, types.SpecListOpts{SpecType: types.SpecPRD, Limit: 3}, backend.LastSpecList)

	recent, err = c.RecentSpecifications(ctx, types.SpecListOpts{SpecType: types.SpecADR})
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestClient_ValidationErrorsSurviveTheWire(t *testing.T) {
	c, _ := newClient(t, nil)

	_, err := c.RecordDecision(context.Background(), types.Decision{SpecID: "ADR-1", DecisionPoint: "dp", SelectedOption: "x", Confidence: 3})
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "confidence", vErr.Field)
}

func TestClient_PatternsAndDecisions(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, nil)

	p := types.NewArchitecturalPattern("Observer Pattern", types.PatternApplication, types.PatternDefinition{Summary: "Event notification"})
	stored, err := c.StorePattern(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.ID)

	matches, err := c.SearchPatterns(ctx, types.SimilarityQuery{Text: "event"})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	used, err := c.RecordPatternUsage(ctx, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, used.UsageFrequency)

	unknown, err := c.RecordPatternUsage(ctx, "missing", false)
	require.NoError(t, err)
	assert.Nil(t, unknown)

	_, err = c.RecordDecision(ctx, types.Decision{SpecID: "ADR-2", DecisionPoint: "events", SelectedOption: "observer", Confidence: 0.8})
	require.NoError(t, err)
	stats, err := c.AnalyzeDecisions(ctx, 30)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "events", stats[0].DecisionPoint)
}

func TestClient_Recommendations(t *testing.T) {
	ctx := context.Background()
	c, backend := newClient(t, nil)
	rec := types.NewPatternRecommendation("Observer Pattern", "events", 0.5, "ADR", "why", 30, nil)
	backend.Recommendations[rec.ID] = rec

	res, err := c.GenerateRecommendations(ctx, apitypes.GenerateRequest{LookbackDays: 7, DryRun: true, MinConfidence: recognizer.Threshold(0)})
	require.NoError(t, err)
	assert.Len(t, res.Generated, 1)
	assert.Equal(t, apitypes.GenerateRequest{LookbackDays: 7, DryRun: true, MinConfidence: recognizer.Threshold(0)}, backend.LastGenerate)

	recs, err := c.ListRecommendations(ctx, types.RecommendationListOpts{Limit: 2, IncludeExpired: true})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, types.RecommendationListOpts{Limit: 2, IncludeExpired: true}, backend.LastList)

	updated, err := c.RecordFeedback(ctx, rec.ID, types.FeedbackAccept, "")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.InDelta(t, 0.6, updated.Confidence, 1e-9)

	gone, err := c.RecordFeedback(ctx, "missing", types.FeedbackAccept, "")
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, c.Health(ctx))
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := client.New(server.URL, nil).ListRecommendations(context.Background(), types.RecommendationListOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
