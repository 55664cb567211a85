package recognizer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/embedder"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// mockStore serves canned stats and patterns and records writes
type mockStore struct {
	mu            sync.Mutex
	stats         []types.DecisionStat
	patterns      []types.ArchitecturalPattern
	stored        []types.PatternRecommendation
	purged        []int
	purgeN        int
	err           error
	storeErr      error
	canonicalOnly bool
	feedback      *types.PatternRecommendation
}

func (m *mockStore) ListPatterns(ctx context.Context, lookbackDays int) ([]types.ArchitecturalPattern, error) {
	return m.patterns, m.err
}

func (m *mockStore) GetSimilarPatterns(ctx context.Context, q types.SimilarityQuery) ([]types.PatternMatch, error) {
	if m.err != nil || m.canonicalOnly {
		return nil, m.err
	}
	lex := embedder.NewLexical()
	query := lex.Vector(q.Text)
	var out []types.PatternMatch
	for _, p := range m.patterns {
		sim := embedder.Cosine(query, lex.Vector(p.SearchText()))
		if sim >= q.MinSimilarity {
			out = append(out, types.PatternMatch{ArchitecturalPattern: p, Similarity: sim})
		}
	}
	return out, nil
}

func (m *mockStore) AnalyzeDecisionPatterns(ctx context.Context, lookbackDays int) ([]types.DecisionStat, error) {
	return m.stats, m.err
}

func (m *mockStore) StorePatternRecommendation(ctx context.Context, rec types.PatternRecommendation) (*types.PatternRecommendation, error) {
	if m.storeErr != nil {
		return nil, m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stored {
		if m.stored[i].ID == rec.ID {
			m.stored[i] = rec
			return &rec, nil
		}
	}
	m.stored = append(m.stored, rec)
	return &rec, nil
}

func (m *mockStore) GetPatternRecommendations(ctx context.Context, opts types.RecommendationListOpts) ([]types.PatternRecommendation, error) {
	return m.stored, m.err
}

func (m *mockStore) RecordRecommendationFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error) {
	return m.feedback, m.err
}

func (m *mockStore) PurgeExpiredRecommendations(ctx context.Context, retentionDays int) (int, error) {
	m.purged = append(m.purged, retentionDays)
	return m.purgeN, m.err
}

func pattern(name, summary, canonical string, success, ctxSim float64, usage int) types.ArchitecturalPattern {
	p := types.NewArchitecturalPattern(name, types.PatternApplication, types.PatternDefinition{Summary: summary})
	p.SuccessRate = success
	p.ContextSimilarity = ctxSim
	p.UsageFrequency = usage
	if canonical != "" {
		p.Metadata[types.MetaCanonicalDecisionPoint] = canonical
	}
	return p
}

func stat(point, option string, total int, mean float64) types.DecisionStat {
	return types.DecisionStat{
		DecisionPoint:  point,
		Provenance:     "ADR",
		TotalDecisions: total,
		SelectedCount:  total,
		DominantOption: option,
		DominantCount:  total,
		MeanConfidence: mean,
		TopContexts:    []string{"payments", "billing"},
		LastDecidedAt:  time.Now(),
	}
}

func TestNew_Defaults(t *testing.T) {
	r := New(&mockStore{}, Options{})
	opts := r.Options()
	assert.Equal(t, 90, opts.RetentionDays)
	require.NotNil(t, opts.MinimumConfidence)
	assert.Equal(t, 0.55, *opts.MinimumConfidence)
	assert.Equal(t, 5, opts.MaxRecommendations)
	assert.Equal(t, DefaultWeights, opts.Weights)

	r = New(&mockStore{}, Options{MinimumConfidence: Threshold(3)})
	assert.Equal(t, 1.0, *r.Options().MinimumConfidence)

	r = New(&mockStore{}, Options{MinimumConfidence: Threshold(0)})
	assert.Zero(t, *r.Options().MinimumConfidence)
}

func TestGenerateRecommendations_Scores(t *testing.T) {
	store := &mockStore{
		stats: []types.DecisionStat{stat("integration_strategy", "hexagonal", 3, 0.93)},
		patterns: []types.ArchitecturalPattern{
			pattern("Hexagonal Architecture", "Ports and adapters for service orchestration.", "integration_strategy", 0.87, 0.92, 8),
		},
		purgeN: 2,
	}
	r := New(store, Options{RetentionDays: 30})

	res, err := r.GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.True(t, res.Regenerated)
	assert.Equal(t, 2, res.RetentionDeleted)
	assert.Equal(t, []int{30}, store.purged)

	rec := res.Recommendations[0]
	assert.Equal(t, "Hexagonal Architecture", rec.PatternName)
	assert.Equal(t, "integration_strategy", rec.DecisionPoint)
	assert.Equal(t, "ADR", rec.Provenance)
	assert.InDelta(t, 0.5*0.93+0.3*0.87+0.2*0.92, rec.Confidence, 1e-9)
	assert.Contains(t, rec.Rationale, "Ports and adapters for service orchestration.")
	assert.Contains(t, rec.Rationale, "3/3")
	assert.Contains(t, rec.Rationale, "payments; billing")
	assert.Equal(t, 3, rec.TotalDecisions())
	assert.Equal(t, 30, rec.Metadata["ttl_days"])
	assert.Equal(t, []string{"application", "integration-strategy"}, rec.Metadata["tags"])
	assert.WithinDuration(t, rec.CreatedAt.AddDate(0, 0, 30), rec.ExpiresAt, time.Second)
	require.Len(t, store.stored, 1)
}

func TestGenerateRecommendations_DryRun(t *testing.T) {
	store := &mockStore{
		stats:    []types.DecisionStat{stat("integration_strategy", "hexagonal", 3, 0.93)},
		patterns: []types.ArchitecturalPattern{pattern("Hexagonal Architecture", "Ports and adapters", "integration_strategy", 0.87, 0.92, 8)},
		purgeN:   4,
	}
	res, err := New(store, Options{}).GenerateRecommendations(context.Background(), 45, true)
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 1)
	assert.False(t, res.Regenerated)
	assert.Zero(t, res.RetentionDeleted)
	assert.Empty(t, store.stored)
	assert.Empty(t, store.purged)
}

func TestGenerateRecommendations_BelowMinimum(t *testing.T) {
	store := &mockStore{
		stats:    []types.DecisionStat{stat("integration_strategy", "hexagonal", 3, 0.2)},
		patterns: []types.ArchitecturalPattern{pattern("Hexagonal Architecture", "Ports and adapters", "integration_strategy", 0.1, 0.1, 1)},
	}
	res, err := New(store, Options{}).GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
	assert.Empty(t, store.stored)
}

func TestGenerateRecommendations_ZeroMinimumKeepsLowConfidence(t *testing.T) {
	store := &mockStore{
		stats:    []types.DecisionStat{stat("integration_strategy", "hexagonal", 3, 0.2)},
		patterns: []types.ArchitecturalPattern{pattern("Hexagonal Architecture", "Ports and adapters", "integration_strategy", 0.1, 0.1, 1)},
	}
	res, err := New(store, Options{MinimumConfidence: Threshold(0)}).GenerateRecommendations(context.Background(), 45, true)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.InDelta(t, 0.5*0.2+0.3*0.1+0.2*0.1, res.Recommendations[0].Confidence, 1e-9)
}

func TestGenerateRecommendations_NoEligiblePattern(t *testing.T) {
	// Zero context similarity disqualifies a pattern even when it is tagged.
	store := &mockStore{
		stats:    []types.DecisionStat{stat("integration_strategy", "hexagonal", 3, 0.95)},
		patterns: []types.ArchitecturalPattern{pattern("Hexagonal Architecture", "Ports and adapters", "integration_strategy", 0.9, 0, 3)},
	}
	res, err := New(store, Options{}).GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
}

func TestGenerateRecommendations_OrderAndTruncate(t *testing.T) {
	store := &mockStore{
		stats: []types.DecisionStat{
			stat("caching", "redis", 2, 0.7),
			stat("persistence", "repository", 4, 0.95),
			stat("messaging", "observer", 3, 0.95),
		},
		patterns: []types.ArchitecturalPattern{
			pattern("Cache Aside", "Read through cache", "caching", 0.8, 0.8, 2),
			pattern("Repository Pattern", "Data access abstraction", "persistence", 0.9, 0.9, 5),
			pattern("Observer Pattern", "Event notification", "messaging", 0.9, 0.9, 5),
		},
		canonicalOnly: true,
	}
	res, err := New(store, Options{MaxRecommendations: 2}).GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 2)
	// Equal confidence falls back to decision point order.
	assert.Equal(t, "messaging", res.Recommendations[0].DecisionPoint)
	assert.Equal(t, "persistence", res.Recommendations[1].DecisionPoint)
	assert.GreaterOrEqual(t, res.Recommendations[0].Confidence, res.Recommendations[1].Confidence)
}

func TestGenerateRecommendations_LexicalCandidate(t *testing.T) {
	// No canonical tag: the pattern is found through its shared words.
	store := &mockStore{
		stats:    []types.DecisionStat{stat("data_access", "repository", 3, 0.9)},
		patterns: []types.ArchitecturalPattern{pattern("Repository Pattern", "Data access abstraction", "", 0.8, 0.7, 2)},
	}
	res, err := New(store, Options{}).GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "Repository Pattern", res.Recommendations[0].PatternName)
	assert.Greater(t, res.Recommendations[0].Metadata["query_similarity"], 0.1)
}

func TestGenerateRecommendations_NonPositiveLookback(t *testing.T) {
	store := &mockStore{stats: []types.DecisionStat{stat("x", "y", 3, 0.9)}}
	res, err := New(store, Options{}).GenerateRecommendations(context.Background(), 0, false)
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
}

func TestGenerateRecommendations_StoreErrorsPropagate(t *testing.T) {
	boom := &types.StorageFault{Op: "purge expired recommendations", Err: errors.New("disk full")}
	_, err := New(&mockStore{err: boom}, Options{}).GenerateRecommendations(context.Background(), 45, false)
	assert.Same(t, boom, err)

	store := &mockStore{
		stats:    []types.DecisionStat{stat("integration_strategy", "hexagonal", 3, 0.93)},
		patterns: []types.ArchitecturalPattern{pattern("Hexagonal Architecture", "Ports and adapters", "integration_strategy", 0.87, 0.92, 8)},
		storeErr: boom,
	}
	_, err = New(store, Options{}).GenerateRecommendations(context.Background(), 45, false)
	assert.Same(t, boom, err)
}

func TestGenerateRecommendations_RefreshesInPlace(t *testing.T) {
	store := &mockStore{
		stats:    []types.DecisionStat{stat("integration_strategy", "hexagonal", 3, 0.93)},
		patterns: []types.ArchitecturalPattern{pattern("Hexagonal Architecture", "Ports and adapters", "integration_strategy", 0.87, 0.92, 8)},
	}
	r := New(store, Options{})

	first, err := r.GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	require.Len(t, first.Recommendations, 1)

	second, err := r.GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	require.Len(t, second.Recommendations, 1)
	assert.Equal(t, first.Recommendations[0].ID, second.Recommendations[0].ID)
	assert.Len(t, store.stored, 1)
}

func TestGenerateRecommendations_KeepsFeedbackConfidence(t *testing.T) {
	reviewed := types.NewPatternRecommendation("Hexagonal Architecture", "integration_strategy", 0.75, "ADR", "old", 90, map[string]any{
		types.MetaLastFeedback:       "dismiss",
		types.MetaLastFeedbackReason: "not for this team",
		types.MetaLastFeedbackAt:     "2026-10-01T00:00:00Z",
	})
	store := &mockStore{
		stats:    []types.DecisionStat{stat("integration_strategy", "hexagonal", 3, 0.93)},
		patterns: []types.ArchitecturalPattern{pattern("Hexagonal Architecture", "Ports and adapters", "integration_strategy", 0.87, 0.92, 8)},
		stored:   []types.PatternRecommendation{reviewed},
	}

	res, err := New(store, Options{}).GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	rec := res.Recommendations[0]
	assert.Equal(t, reviewed.ID, rec.ID)
	assert.InDelta(t, 0.75, rec.Confidence, 1e-9)
	assert.Equal(t, "dismiss", rec.Metadata[types.MetaLastFeedback])
	assert.Equal(t, "not for this team", rec.Metadata[types.MetaLastFeedbackReason])
	assert.Contains(t, rec.Rationale, "Estimated confidence: 75.00%.")
	require.Len(t, store.stored, 1)

	// A dismissal that pushed confidence under the minimum keeps it out.
	store.stored[0].Confidence = 0.4
	res, err = New(store, Options{}).GenerateRecommendations(context.Background(), 45, false)
	require.NoError(t, err)
	assert.Empty(t, res.Recommendations)
	assert.InDelta(t, 0.4, store.stored[0].Confidence, 1e-9)
}

func TestRecordFeedback_PassThrough(t *testing.T) {
	r := New(&mockStore{}, Options{})
	rec, err := r.RecordFeedback(context.Background(), "missing", types.FeedbackAccept, "")
	require.NoError(t, err)
	assert.Nil(t, rec)

	want := types.NewPatternRecommendation("P", "dp", 0.7, "ADR", "why", 30, nil)
	r = New(&mockStore{feedback: &want}, Options{})
	rec, err = r.RecordFeedback(context.Background(), want.ID, types.FeedbackAccept, "good")
	require.NoError(t, err)
	assert.Equal(t, want.ID, rec.ID)
}

func TestBest_TieBreak(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	a := pattern("Beta", "", "", 0.9, 0.5, 3)
	a.LastUsed = &older
	b := pattern("Alpha", "", "", 0.9, 0.5, 3)
	b.LastUsed = &newer
	c := pattern("Gamma", "", "", 0.9, 0.5, 7)
	d := pattern("Delta", "", "", 0.95, 0.5, 1)

	lexical := func(ps ...types.ArchitecturalPattern) []candidate {
		out := make([]candidate, 0, len(ps))
		for _, p := range ps {
			out = append(out, candidate{PatternMatch: types.PatternMatch{ArchitecturalPattern: p, Similarity: 0.4}})
		}
		return out
	}

	got := best(lexical(a, b))
	assert.Equal(t, "Alpha", got.PatternName)
	got = best(lexical(a, c))
	assert.Equal(t, "Gamma", got.PatternName)
	got = best(lexical(c, d))
	assert.Equal(t, "Delta", got.PatternName)
	assert.Nil(t, best(nil))
}

func TestBest_SimilarityTierFirst(t *testing.T) {
	chosen := pattern("Hexagonal Architecture", "Ports and adapters", "", 0.87, 0.9, 3)
	neighbour := pattern("Layered Architecture", "Stacked layers", "", 0.95, 0.9, 9)

	got := best([]candidate{
		{PatternMatch: types.PatternMatch{ArchitecturalPattern: neighbour, Similarity: 0.177}},
		{PatternMatch: types.PatternMatch{ArchitecturalPattern: chosen, Similarity: 0.408}},
	})
	require.NotNil(t, got)
	assert.Equal(t, "Hexagonal Architecture", got.PatternName)

	// Within the tier, success rate decides.
	got = best([]candidate{
		{PatternMatch: types.PatternMatch{ArchitecturalPattern: neighbour, Similarity: 0.39}},
		{PatternMatch: types.PatternMatch{ArchitecturalPattern: chosen, Similarity: 0.408}},
	})
	assert.Equal(t, "Layered Architecture", got.PatternName)

	// A canonical tag outranks any lexical similarity.
	got = best([]candidate{
		{PatternMatch: types.PatternMatch{ArchitecturalPattern: chosen, Similarity: 0.9}},
		{PatternMatch: types.PatternMatch{ArchitecturalPattern: neighbour}, canonical: true},
	})
	assert.Equal(t, "Layered Architecture", got.PatternName)
}

func TestGenerateRecommendations_PrefersChosenPattern(t *testing.T) {
	store := &mockStore{
		stats: []types.DecisionStat{stat("integration_strategy", "Hexagonal Architecture", 3, 0.93)},
		patterns: []types.ArchitecturalPattern{
			pattern("Hexagonal Architecture", "Ports and adapters for service orchestration.", "", 0.87, 0.92, 8),
			pattern("Layered Architecture", "Presentation, business and data layers stacked in order.", "", 0.95, 0.9, 8),
		},
	}
	res, err := New(store, Options{}).GenerateRecommendations(context.Background(), 45, true)
	require.NoError(t, err)
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "Hexagonal Architecture", res.Recommendations[0].PatternName)
	assert.Contains(t, res.Recommendations[0].Rationale, "the team chose Hexagonal Architecture 3 times")
}

func TestQuery(t *testing.T) {
	q := Query(types.DecisionStat{DecisionPoint: "integration_strategy", DominantOption: "hexagonal"})
	assert.Equal(t, "hexagonal integration strategy", q)
	assert.Equal(t, "x y", Query(types.DecisionStat{DecisionPoint: "x-y"}))
}
