// internal/storage/storagetest/suite.go
// Package storagetest is a conformance suite every storage.Repository
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/storage"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// Factory returns an empty repository. The suite closes it.
type Factory func(t *testing.T) storage.Repository

// Run executes the suite, calling newRepo once per subtest
func Run(t *testing.T, newRepo Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo storage.Repository)
	}{
		{"SpecificationVersioning", testSpecificationVersioning},
		{"SpecificationAt", testSpecificationAt},
		{"RecentSpecifications", testRecentSpecifications},
		{"ConcurrentSpecifications", testConcurrentSpecifications},
		{"ConcurrentVersions", testConcurrentVersions},
		{"DecisionWindow", testDecisionWindow},
		{"DecisionProvenance", testDecisionProvenance},
		{"SimilarPatterns", testSimilarPatterns},
		{"SimilarPatternsDegenerate", testSimilarPatternsDegenerate},
		{"PatternUpsertAndUsage", testPatternUpsertAndUsage},
		{"InvalidInputs", testInvalidInputs},
		{"RecommendationListing", testRecommendationListing},
		{"RetentionPurge", testRetentionPurge},
		{"Feedback", testFeedback},
		{"CancelledContext", testCancelledContext},
		{"CloseIdempotent", testCloseIdempotent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newRepo(t)
			t.Cleanup(func() { repo.Close() })
			tc.fn(t, repo)
		})
	}
}

// CatalogPatterns returns the four reference patterns used by similarity tests
func CatalogPatterns() []types.ArchitecturalPattern {
	mk := func(name string, pt types.PatternType, summary string) types.ArchitecturalPattern {
		p := types.NewArchitecturalPattern(name, pt, types.PatternDefinition{Summary: summary})
		p.ContextSimilarity = 0.5
		p.SuccessRate = 0.8
		return p
	}
	return []types.ArchitecturalPattern{
		mk("MVC Pattern", types.PatternInterface, "Model View Controller architecture pattern"),
		mk("Repository Pattern", types.PatternDomain, "Data access abstraction pattern"),
		mk("Factory Pattern", types.PatternApplication, "Object creation pattern"),
		mk("Observer Pattern", types.PatternApplication, "Event notification pattern"),
	}
}

func requireValidation(t *testing.T, err error) {
	t.Helper()
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func testSpecificationVersioning(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	first, err := repo.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecADR, "ADR-001", "Ports", "v1 body", "arch"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, types.ContentHash("v1 body"), first.Hash)

	second, err := repo.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecADR, "ADR-001", "Ports", "v2 body", "arch"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	assert.NotEqual(t, first.ID, second.ID)

	jump := types.NewSpecificationRecord(types.SpecADR, "ADR-001", "Ports", "v7 body", "arch")
	jump.Version = 7
	stored, err := repo.StoreSpecification(ctx, jump)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Version)

	latest, err := repo.GetLatestSpecification(ctx, types.SpecADR, "ADR-001")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 7, latest.Version)
	assert.Equal(t, "v7 body", latest.Content)

	history, err := repo.GetSpecificationHistory(ctx, types.SpecADR, "ADR-001")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int{1, 2, 7}, []int{history[0].Version, history[1].Version, history[2].Version})

	missing, err := repo.GetLatestSpecification(ctx, types.SpecADR, "ADR-404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	unknownType, err := repo.GetLatestSpecification(ctx, types.SpecType("NON_EXISTENT"), "ADR-001")
	require.NoError(t, err)
	assert.Nil(t, unknownType)
}

func testSpecificationAt(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	now := time.Now().UTC()

	v1 := types.NewSpecificationRecord(types.SpecSDS, "SDS-9", "Store", "first", "")
	v1.CreatedAt = now.Add(-2 * time.Hour)
	_, err := repo.StoreSpecification(ctx, v1)
	require.NoError(t, err)

	v2 := types.NewSpecificationRecord(types.SpecSDS, "SDS-9", "Store", "second", "")
	v2.CreatedAt = now.Add(-1 * time.Hour)
	_, err = repo.StoreSpecification(ctx, v2)
	require.NoError(t, err)

	at, err := repo.GetSpecificationAt(ctx, types.SpecSDS, "SDS-9", now.Add(-90*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, 1, at.Version)
	assert.Equal(t, "first", at.Content)

	at, err = repo.GetSpecificationAt(ctx, types.SpecSDS, "SDS-9", now)
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, 2, at.Version)

	before, err := repo.GetSpecificationAt(ctx, types.SpecSDS, "SDS-9", now.Add(-3*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, before)
}

func testRecentSpecifications(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	now := time.Now().UTC()

	for i, st := range []types.SpecType{types.SpecADR, types.SpecPRD, types.SpecADR} {
		rec := types.NewSpecificationRecord(st, fmt.Sprintf("%s-%d", st, i), "Title", "Body", "")
		rec.CreatedAt = now.Add(time.Duration(i-3) * time.Minute)
		_, err := repo.StoreSpecification(ctx, rec)
		require.NoError(t, err)
	}

	all, err := repo.GetRecentSpecifications(ctx, types.SpecListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ADR-2", all[0].Identifier)

	adrs, err := repo.GetRecentSpecifications(ctx, types.SpecListOpts{SpecType: types.SpecADR, Limit: 1})
	require.NoError(t, err)
	require.Len(t, adrs, 1)
	assert.Equal(t, "ADR-2", adrs[0].Identifier)
}

func testConcurrentSpecifications(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := types.NewSpecificationRecord(types.SpecADR, fmt.Sprintf("ADR-CONCURRENT-%03d", i), "Concurrent", fmt.Sprintf("body %d", i), "")
			_, errs[i] = repo.StoreSpecification(ctx, rec)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}
	for i := 0; i < 10; i++ {
		got, err := repo.GetLatestSpecification(ctx, types.SpecADR, fmt.Sprintf("ADR-CONCURRENT-%03d", i))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, fmt.Sprintf("body %d", i), got.Content)
	}
}

func testConcurrentVersions(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	const writers = 5

	var wg sync.WaitGroup
	versions := make([]int, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := repo.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecTS, "TS-SHARED", "Shared", fmt.Sprintf("rev %d", i), ""))
			errs[i] = err
			if rec != nil {
				versions[i] = rec.Version
			}
		}(i)
	}
	wg.Wait()

	seen := map[int]bool{}
	for i := range versions {
		require.NoError(t, errs[i])
		assert.False(t, seen[versions[i]], "duplicate version %d", versions[i])
		seen[versions[i]] = true
	}
	for v := 1; v <= writers; v++ {
		assert.True(t, seen[v], "missing version %d", v)
	}
}

func testDecisionWindow(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_, err := repo.RecordDecision(ctx, types.Decision{
			SpecID:         fmt.Sprintf("ADR-AI-GUIDANCE-%d", i),
			DecisionPoint:  "integration_strategy",
			SelectedOption: "hexagonal",
			Context:        "Align orchestration through ports and adapters",
			Confidence:     0.93,
		})
		require.NoError(t, err)
	}
	_, err := repo.RecordDecision(ctx, types.Decision{
		SpecID:         "ADR-OLD-1",
		DecisionPoint:  "legacy_point",
		SelectedOption: "monolith",
		Confidence:     0.9,
		CreatedAt:      now.AddDate(0, 0, -40),
	})
	require.NoError(t, err)

	stats, err := repo.AnalyzeDecisionPatterns(ctx, 30)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	st := stats[0]
	assert.Equal(t, "integration_strategy", st.DecisionPoint)
	assert.Equal(t, 3, st.TotalDecisions)
	assert.Equal(t, 3, st.SelectedCount)
	assert.Equal(t, "hexagonal", st.DominantOption)
	assert.Equal(t, "ADR", st.Provenance)
	assert.InDelta(t, 0.93, st.MeanConfidence, 1e-9)
	assert.Equal(t, []string{"Align orchestration through ports and adapters"}, st.TopContexts)

	wide, err := repo.AnalyzeDecisionPatterns(ctx, 60)
	require.NoError(t, err)
	assert.Len(t, wide, 2)

	for _, days := range []int{0, -5} {
		none, err := repo.AnalyzeDecisionPatterns(ctx, days)
		require.NoError(t, err)
		assert.Empty(t, none)
	}
}

func testDecisionProvenance(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	_, err := repo.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecPRD, "CHECKOUT", "Checkout", "Body", ""))
	require.NoError(t, err)

	for _, specID := range []string{"CHECKOUT-7", "CHECKOUT-8"} {
		_, err := repo.RecordDecision(ctx, types.Decision{
			SpecID: specID, DecisionPoint: "payment_flow", SelectedOption: "saga", Confidence: 0.6,
		})
		require.NoError(t, err)
	}
	_, err = repo.RecordDecision(ctx, types.Decision{
		SpecID: "misc", DecisionPoint: "naming", SelectedOption: "kebab", Confidence: 0.4,
	})
	require.NoError(t, err)

	stats, err := repo.AnalyzeDecisionPatterns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "payment_flow", stats[0].DecisionPoint)
	assert.Equal(t, "PRD", stats[0].Provenance)
	assert.Equal(t, 0, stats[0].SelectedCount)
	assert.Equal(t, "unknown", stats[1].Provenance)
}

func testSimilarPatterns(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	for _, p := range CatalogPatterns() {
		_, err := repo.StoreArchitecturalPattern(ctx, p)
		require.NoError(t, err)
	}

	matches, err := repo.GetSimilarPatterns(ctx, types.SimilarityQuery{Text: "data access", MinSimilarity: 0.1, LookbackDays: 30})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Repository Pattern", matches[0].PatternName)
	assert.GreaterOrEqual(t, matches[0].Similarity, 0.1)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}

	matches, err = repo.GetSimilarPatterns(ctx, types.SimilarityQuery{Text: "object creation", MinSimilarity: 0.1, LookbackDays: 30})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "Factory Pattern", matches[0].PatternName)

	all, err := repo.GetSimilarPatterns(ctx, types.SimilarityQuery{Text: "", MinSimilarity: 0, LookbackDays: 30})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for _, m := range all {
		assert.Equal(t, 0.0, m.Similarity)
	}
	assert.Equal(t, "Factory Pattern", all[0].PatternName)

	listed, err := repo.ListPatterns(ctx, 30)
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func testSimilarPatternsDegenerate(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	for _, p := range CatalogPatterns() {
		_, err := repo.StoreArchitecturalPattern(ctx, p)
		require.NoError(t, err)
	}

	queries := []types.SimilarityQuery{
		{Text: "data access", MinSimilarity: 0.1, LookbackDays: 0},
		{Text: "data access", MinSimilarity: 0.1, LookbackDays: -3},
		{Text: "data access", MinSimilarity: 2, LookbackDays: 30},
		{Text: "zzqx unrelated", MinSimilarity: 0.99, LookbackDays: 30},
	}
	for _, q := range queries {
		matches, err := repo.GetSimilarPatterns(ctx, q)
		require.NoError(t, err, "%+v", q)
		assert.Empty(t, matches, "%+v", q)
	}

	matches, err := repo.GetSimilarPatterns(ctx, types.SimilarityQuery{Text: "data access", MinSimilarity: math.NaN(), LookbackDays: 30})
	require.NoError(t, err)
	assert.Len(t, matches, 4)

	old := types.NewArchitecturalPattern("Stale Gateway", types.PatternInfrastructure, types.PatternDefinition{Summary: "data access gateway"})
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -60)
	_, err = repo.StoreArchitecturalPattern(ctx, old)
	require.NoError(t, err)

	matches, err = repo.GetSimilarPatterns(ctx, types.SimilarityQuery{Text: "data access", MinSimilarity: 0.1, LookbackDays: 30})
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "Stale Gateway", m.PatternName)
	}

	none, err := repo.ListPatterns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testPatternUpsertAndUsage(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	p := types.NewArchitecturalPattern("CQRS", types.PatternApplication, types.PatternDefinition{Summary: "Split reads from writes"})
	p.Metadata[types.MetaCanonicalDecisionPoint] = "query_strategy"
	stored, err := repo.StoreArchitecturalPattern(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, stored.ID)
	assert.Equal(t, "query_strategy", stored.CanonicalDecisionPoint())

	p.Definition.Summary = "Command query responsibility segregation"
	p.SuccessRate = 0.75
	_, err = repo.StoreArchitecturalPattern(ctx, p)
	require.NoError(t, err)

	listed, err := repo.ListPatterns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Command query responsibility segregation", listed[0].Definition.Summary)
	assert.Equal(t, 0.75, listed[0].SuccessRate)

	used, err := repo.RecordPatternUsage(ctx, p.ID, true)
	require.NoError(t, err)
	require.NotNil(t, used)
	assert.Equal(t, 1, used.UsageFrequency)
	assert.Equal(t, 1.0, used.SuccessRate)
	require.NotNil(t, used.LastUsed)

	matches, err := repo.GetSimilarPatterns(ctx, types.SimilarityQuery{Text: "query segregation", MinSimilarity: 0.1, LookbackDays: 1})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].UsageFrequency)

	missing, err := repo.RecordPatternUsage(ctx, "no-such-pattern", true)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testInvalidInputs(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	badPattern := types.NewArchitecturalPattern("Broken", types.PatternDomain, types.PatternDefinition{})
	badPattern.SuccessRate = 1.5
	_, err := repo.StoreArchitecturalPattern(ctx, badPattern)
	requireValidation(t, err)

	_, err = repo.RecordDecision(ctx, types.Decision{SpecID: "ADR-1", DecisionPoint: "p", SelectedOption: "x", Confidence: 2})
	requireValidation(t, err)

	_, err = repo.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecADR, "ADR-1", "", "body", ""))
	requireValidation(t, err)

	_, err = repo.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecType("RFC"), "RFC-1", "t", "body", ""))
	requireValidation(t, err)

	rec := types.NewPatternRecommendation("", "p", 0.5, "ADR", "r", 1, nil)
	_, err = repo.StorePatternRecommendation(ctx, rec)
	requireValidation(t, err)

	listed, err := repo.ListPatterns(ctx, 30)
	require.NoError(t, err)
	assert.Empty(t, listed)
	stats, err := repo.AnalyzeDecisionPatterns(ctx, 30)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func testRecommendationListing(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	for i, conf := range []float64{0.6, 0.9, 0.75} {
		rec := types.NewPatternRecommendation(fmt.Sprintf("Pattern %d", i), "point", conf, "ADR", "because", 30, nil)
		_, err := repo.StorePatternRecommendation(ctx, rec)
		require.NoError(t, err)
	}
	expired := types.NewPatternRecommendation("Expired", "point", 0.99, "ADR", "old", 1, nil)
	expired.CreatedAt = time.Now().UTC().AddDate(0, 0, -5)
	expired.ExpiresAt = time.Now().UTC().AddDate(0, 0, -1)
	_, err := repo.StorePatternRecommendation(ctx, expired)
	require.NoError(t, err)

	recs, err := repo.GetPatternRecommendations(ctx, types.RecommendationListOpts{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []float64{0.9, 0.75, 0.6}, []float64{recs[0].Confidence, recs[1].Confidence, recs[2].Confidence})

	top, err := repo.GetPatternRecommendations(ctx, types.RecommendationListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Pattern 1", top[0].PatternName)

	withExpired, err := repo.GetPatternRecommendations(ctx, types.RecommendationListOpts{IncludeExpired: true})
	require.NoError(t, err)
	require.Len(t, withExpired, 4)
	assert.Equal(t, "Expired", withExpired[0].PatternName)
}

func testRetentionPurge(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	now := time.Now().UTC()

	stale := types.NewPatternRecommendation("CQRS", "query_strategy", 0.7, "ADR", "old", 1, map[string]any{types.MetaTotalDecisions: 3})
	stale.CreatedAt = now.AddDate(0, 0, -120)
	stale.ExpiresAt = now.AddDate(0, 0, -90)
	_, err := repo.StorePatternRecommendation(ctx, stale)
	require.NoError(t, err)

	recent := types.NewPatternRecommendation("Saga", "payment_flow", 0.7, "PRD", "recently expired", 1, nil)
	recent.CreatedAt = now.AddDate(0, 0, -10)
	recent.ExpiresAt = now.AddDate(0, 0, -5)
	_, err = repo.StorePatternRecommendation(ctx, recent)
	require.NoError(t, err)

	fresh := types.NewPatternRecommendation("Hexagonal Architecture", "integration_strategy", 0.9, "ADR", "fresh", 30, nil)
	_, err = repo.StorePatternRecommendation(ctx, fresh)
	require.NoError(t, err)

	deleted, err := repo.PurgeExpiredRecommendations(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := repo.GetPatternRecommendations(ctx, types.RecommendationListOpts{IncludeExpired: true})
	require.NoError(t, err)
	names := make([]string, 0, len(remaining))
	for _, r := range remaining {
		names = append(names, r.PatternName)
	}
	assert.ElementsMatch(t, []string{"Saga", "Hexagonal Architecture"}, names)

	deleted, err = repo.PurgeExpiredRecommendations(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, err = repo.PurgeExpiredRecommendations(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func testFeedback(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	rec := types.NewPatternRecommendation("Hexagonal Architecture", "integration_strategy", 0.6, "ADR", "why", 30, map[string]any{types.MetaTotalDecisions: 3})
	_, err := repo.StorePatternRecommendation(ctx, rec)
	require.NoError(t, err)

	accepted, err := repo.RecordRecommendationFeedback(ctx, rec.ID, types.FeedbackAccept, "matches our direction")
	require.NoError(t, err)
	require.NotNil(t, accepted)
	assert.InDelta(t, 0.7, accepted.Confidence, 1e-9)
	assert.Equal(t, "accept", accepted.Metadata[types.MetaLastFeedback])
	assert.Equal(t, "matches our direction", accepted.Metadata[types.MetaLastFeedbackReason])
	assert.NotEmpty(t, accepted.Metadata[types.MetaLastFeedbackAt])
	assert.Equal(t, 3, accepted.TotalDecisions())

	dismissed, err := repo.RecordRecommendationFeedback(ctx, rec.ID, types.FeedbackDismiss, "")
	require.NoError(t, err)
	require.NotNil(t, dismissed)
	assert.InDelta(t, 0.55, dismissed.Confidence, 1e-9)
	assert.Less(t, dismissed.Confidence, accepted.Confidence)

	listed, err := repo.GetPatternRecommendations(ctx, types.RecommendationListOpts{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.InDelta(t, 0.55, listed[0].Confidence, 1e-9)
	assert.Equal(t, "dismiss", listed[0].Metadata[types.MetaLastFeedback])
	assert.Equal(t, 3, listed[0].TotalDecisions())

	_, err = repo.RecordRecommendationFeedback(ctx, rec.ID, types.FeedbackAction("snooze"), "")
	requireValidation(t, err)

	missing, err := repo.RecordRecommendationFeedback(ctx, "no-such-recommendation", types.FeedbackAccept, "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testCancelledContext(t *testing.T, repo storage.Repository) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecADR, "ADR-CANCEL", "Cancelled", "body", ""))
	require.Error(t, err)

	got, err := repo.GetLatestSpecification(context.Background(), types.SpecADR, "ADR-CANCEL")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testCloseIdempotent(t *testing.T, repo storage.Repository) {
	assert.NoError(t, repo.Close())
	assert.NoError(t, repo.Close())
}
