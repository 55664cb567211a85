package tools_test

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/apitypes/apitypestest"
	"github.com/MereWhiplash/decision-cogitator/internal/mcptypes"
	"github.com/MereWhiplash/decision-cogitator/internal/recognizer"
	"github.com/MereWhiplash/decision-cogitator/internal/tools"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestStoreSpec(t *testing.T) {
	backend := apitypestest.New()
	h := tools.NewHandler(backend)
	ctx := context.Background()

	res, out, err := h.StoreSpec(ctx, nil, mcptypes.StoreSpecInput{SpecType: "adr", Identifier: "ADR-7", Title: "Queue", Content: "Use NATS"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.NotNil(t, out.Specification)
	assert.Equal(t, types.SpecADR, out.Specification.SpecType)
	assert.Contains(t, text(t, res), "ADR ADR-7 version 1")

	res, _, err = h.StoreSpec(ctx, nil, mcptypes.StoreSpecInput{SpecType: "ADR"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = h.StoreSpec(ctx, nil, mcptypes.StoreSpecInput{SpecType: "RFC", Identifier: "X", Title: "T", Content: "C"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid spec type")
}

func TestGetSpec(t *testing.T) {
	backend := apitypestest.New()
	h := tools.NewHandler(backend)
	ctx := context.Background()

	res, _, err := h.GetSpec(ctx, nil, mcptypes.GetSpecInput{SpecType: "TS", Identifier: "TS-1"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "No matching specification found.", text(t, res))

	_, _, err = h.StoreSpec(ctx, nil, mcptypes.StoreSpecInput{SpecType: "TS", Identifier: "TS-1", Title: "T", Content: "C"})
	require.NoError(t, err)

	_, out, err := h.GetSpec(ctx, nil, mcptypes.GetSpecInput{SpecType: "TS", Identifier: "TS-1", At: "2026-01-02T03:04:05Z"})
	require.NoError(t, err)
	require.NotNil(t, out.Specification)
	require.NotNil(t, backend.LastSpecQuery.At)
	assert.Equal(t, 2026, backend.LastSpecQuery.At.Year())

	res, _, err = h.GetSpec(ctx, nil, mcptypes.GetSpecInput{SpecType: "TS", Identifier: "TS-1", At: "yesterday"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListSpecs(t *testing.T) {
	backend := apitypestest.New()
	h := tools.NewHandler(backend)
	ctx := context.Background()

	res, out, err := h.ListSpecs(ctx, nil, mcptypes.ListSpecsInput{})
	require.NoError(t, err)
	assert.Equal(t, "No specifications found.", text(t, res))
	assert.Empty(t, out.Specifications)

	for _, id := range []string{"ADR-1", "ADR-2"} {
		_, _, err = h.StoreSpec(ctx, nil, mcptypes.StoreSpecInput{SpecType: "ADR", Identifier: id, Title: "T", Content: "C"})
		require.NoError(t, err)
	}
	_, _, err = h.StoreSpec(ctx, nil, mcptypes.StoreSpecInput{SpecType: "SDS", Identifier: "SDS-1", Title: "T", Content: "C"})
	require.NoError(t, err)

	res, out, err = h.ListSpecs(ctx, nil, mcptypes.ListSpecsInput{SpecType: "adr", Limit: 1})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, out.Specifications, 1)
	assert.Equal(t, types.SpecADR, out.Specifications[0].SpecType)
	assert.Equal(t, types.SpecListOpts{SpecType: types.SpecADR, Limit: 1}, backend.LastSpecList)

	res, _, err = h.ListSpecs(ctx, nil, mcptypes.ListSpecsInput{SpecType: "RFC"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStoreAndSearchPatterns(t *testing.T) {
	backend := apitypestest.New()
	h := tools.NewHandler(backend)
	ctx := context.Background()

	_, out, err := h.StorePattern(ctx, nil, mcptypes.StorePatternInput{
		Name:          "Repository Pattern",
		PatternType:   "Domain",
		Summary:       "Data access abstraction",
		SuccessRate:   0.8,
		DecisionPoint: "data_access",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Pattern)
	assert.Equal(t, "data_access", out.Pattern.CanonicalDecisionPoint())

	_, found, err := h.SearchPatterns(ctx, nil, mcptypes.SearchPatternsInput{Query: "data access"})
	require.NoError(t, err)
	require.Len(t, found.Matches, 1)
	assert.Equal(t, apitypes.DefaultMinSimilarity, backend.LastSimilar.MinSimilarity)

	res, _, err := h.SearchPatterns(ctx, nil, mcptypes.SearchPatternsInput{Query: "  "})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, _, err = h.StorePattern(ctx, nil, mcptypes.StorePatternInput{Name: "X", PatternType: "Galaxy"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRecordDecisionAndAnalyze(t *testing.T) {
	backend := apitypestest.New()
	h := tools.NewHandler(backend)
	ctx := context.Background()

	res, _, err := h.AnalyzeDecisions(ctx, nil, mcptypes.AnalyzeInput{})
	require.NoError(t, err)
	assert.Equal(t, "No decisions recorded in the window.", text(t, res))

	_, out, err := h.RecordDecision(ctx, nil, mcptypes.RecordDecisionInput{SpecID: "ADR-1", DecisionPoint: "queue", SelectedOption: "nats", Confidence: 0.9})
	require.NoError(t, err)
	require.NotNil(t, out.Decision)

	res, _, err = h.RecordDecision(ctx, nil, mcptypes.RecordDecisionInput{SpecID: "ADR-1", DecisionPoint: "queue", SelectedOption: "nats", Confidence: 1.5})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, stats, err := h.AnalyzeDecisions(ctx, nil, mcptypes.AnalyzeInput{LookbackDays: 10})
	require.NoError(t, err)
	require.Len(t, stats.Stats, 1)
	assert.Equal(t, 1, stats.Stats[0].TotalDecisions)
}

func TestGenerateAndFeedback(t *testing.T) {
	backend := apitypestest.New()
	rec := types.NewPatternRecommendation("Repository Pattern", "data_access", 0.6, "ADR", "why", 30, nil)
	backend.Recommendations[rec.ID] = rec
	h := tools.NewHandler(backend)
	ctx := context.Background()

	res, out, err := h.GenerateRecommendations(ctx, nil, mcptypes.GenerateInput{LookbackDays: 30, DryRun: true, MinConfidence: recognizer.Threshold(0)})
	require.NoError(t, err)
	assert.Len(t, out.Generated, 1)
	assert.Contains(t, text(t, res), "Generated 1 recommendations")
	assert.True(t, backend.LastGenerate.DryRun)
	assert.Equal(t, 30, backend.LastGenerate.LookbackDays)
	require.NotNil(t, backend.LastGenerate.MinConfidence)
	assert.Zero(t, *backend.LastGenerate.MinConfidence)

	_, listed, err := h.ListRecommendations(ctx, nil, mcptypes.ListRecommendationsInput{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, listed.Recommendations, 1)
	assert.Equal(t, 3, backend.LastList.Limit)

	res, fb, err := h.Feedback(ctx, nil, mcptypes.FeedbackInput{ID: rec.ID, Action: "ACCEPT"})
	require.NoError(t, err)
	require.NotNil(t, fb.Recommendation)
	assert.InDelta(t, 0.7, fb.Recommendation.Confidence, 1e-9)
	assert.Contains(t, text(t, res), "accepted")

	res, fb, err = h.Feedback(ctx, nil, mcptypes.FeedbackInput{ID: "missing", Action: "dismiss"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Nil(t, fb.Recommendation)

	res, _, err = h.Feedback(ctx, nil, mcptypes.FeedbackInput{ID: rec.ID, Action: "maybe"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestBackendErrorsBecomeToolErrors(t *testing.T) {
	backend := apitypestest.New()
	backend.Err = errors.New("store offline")
	h := tools.NewHandler(backend)

	res, _, err := h.ListRecommendations(context.Background(), nil, mcptypes.ListRecommendationsInput{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "store offline")
}

func TestRegister_ListsTools(t *testing.T) {
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "0.0.1"}, nil)
	tools.Register(server, apitypestest.New())

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"dc_store_spec", "dc_get_spec", "dc_list_specs", "dc_store_pattern", "dc_search_patterns",
		"dc_record_decision", "dc_analyze_decisions", "dc_generate_recommendations",
		"dc_list_recommendations", "dc_feedback",
	}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "dc_list_recommendations",
		Arguments: map[string]any{"limit": 5},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
