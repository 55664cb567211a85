//go:build cgo

package recognizer_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/recognizer"
	"github.com/MereWhiplash/decision-cogitator/internal/storage"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

func newStore(t *testing.T) storage.Repository {
	t.Helper()
	store, err := storage.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "recognizer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedHexagonal(t *testing.T, store storage.Repository) {
	t.Helper()
	ctx := context.Background()

	p := types.NewArchitecturalPattern("Hexagonal Architecture", types.PatternApplication, types.PatternDefinition{
		Summary: "Ports and adapters for service orchestration.",
	})
	p.ContextSimilarity = 0.92
	p.SuccessRate = 0.87
	p.UsageFrequency = 8
	p.Metadata[types.MetaCanonicalDecisionPoint] = "integration_strategy"
	_, err := store.StoreArchitecturalPattern(ctx, p)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := store.RecordDecision(ctx, types.Decision{
			SpecID:         fmt.Sprintf("ADR-AI-GUIDANCE-%d", i),
			DecisionPoint:  "integration_strategy",
			SelectedOption: "hexagonal",
			Context:        "service orchestration",
			Confidence:     0.93,
		})
		require.NoError(t, err)
	}
}

func TestRecognizer_HexagonalScenario(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedHexagonal(t, store)

	r := recognizer.New(store, recognizer.Options{})
	res, err := r.GenerateRecommendations(ctx, 45, false)
	require.NoError(t, err)
	require.NotEmpty(t, res.Recommendations)

	rec := res.Recommendations[0]
	assert.Equal(t, "Hexagonal Architecture", rec.PatternName)
	assert.GreaterOrEqual(t, rec.Confidence, 0.55)
	assert.Contains(t, rec.Rationale, "Ports and adapters")
	assert.GreaterOrEqual(t, rec.TotalDecisions(), 3)
	assert.Equal(t, "ADR", rec.Provenance)

	existing, err := r.HydrateExisting(ctx, 10)
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, rec.ID, existing[0].ID)
	assert.GreaterOrEqual(t, existing[0].TotalDecisions(), 3)

	updated, err := r.RecordFeedback(ctx, rec.ID, types.FeedbackDismiss, "not for this service")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Less(t, updated.Confidence, rec.Confidence)
}

func TestRecognizer_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seedHexagonal(t, store)

	res, err := recognizer.New(store, recognizer.Options{}).GenerateRecommendations(ctx, 45, true)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)

	existing, err := store.GetPatternRecommendations(ctx, types.RecommendationListOpts{})
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestRecognizer_RetentionPurge(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	stale := types.NewPatternRecommendation("Legacy Pattern", "legacy", 0.7, "ADR", "old", 1, nil)
	stale.CreatedAt = time.Now().UTC().AddDate(0, 0, -60)
	stale.ExpiresAt = stale.CreatedAt.AddDate(0, 0, 1)
	_, err := store.StorePatternRecommendation(ctx, stale)
	require.NoError(t, err)

	res, err := recognizer.New(store, recognizer.Options{RetentionDays: 30}).GenerateRecommendations(ctx, 45, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RetentionDeleted)
	assert.Empty(t, res.Recommendations)

	all, err := store.GetPatternRecommendations(ctx, types.RecommendationListOpts{IncludeExpired: true})
	require.NoError(t, err)
	assert.Empty(t, all)
}
