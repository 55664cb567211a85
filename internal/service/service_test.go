//go:build cgo

package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/recognizer"
	"github.com/MereWhiplash/decision-cogitator/internal/service"
	"github.com/MereWhiplash/decision-cogitator/internal/storage"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

func newService(t *testing.T, opts service.Options) *service.Service {
	t.Helper()
	store, err := storage.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	svc := service.New(store, opts)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestService_Defaults(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, service.Options{DefaultAuthor: "Alice <alice@example.com>", Repo: "acme/payments"})

	spec, err := svc.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecADR, "ADR-1", "Use chi", "Routing", ""))
	require.NoError(t, err)
	assert.Equal(t, "Alice <alice@example.com>", spec.Author)
	assert.Equal(t, "acme/payments", spec.Metadata[types.MetaRepo])

	rec := types.NewSpecificationRecord(types.SpecADR, "ADR-1", "Use chi", "Routing v2", "")
	rec.Metadata[types.MetaRepo] = "acme/other"
	spec, err = svc.StoreSpecification(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "acme/other", spec.Metadata[types.MetaRepo])

	d, err := svc.RecordDecision(ctx, types.Decision{SpecID: "ADR-1", DecisionPoint: "routing", SelectedOption: "chi", Confidence: 0.8, Author: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", d.Author)
}

func TestService_GetSpecification(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, service.Options{})

	first, err := svc.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecTS, "TS-1", "Title", "v1", ""))
	require.NoError(t, err)
	between := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)
	_, err = svc.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecTS, "TS-1", "Title", "v2", ""))
	require.NoError(t, err)

	latest, err := svc.GetSpecification(ctx, apitypes.SpecQuery{SpecType: types.SpecTS, Identifier: "TS-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	v1, err := svc.GetSpecification(ctx, apitypes.SpecQuery{SpecType: types.SpecTS, Identifier: "TS-1", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, first.ID, v1.ID)

	at, err := svc.GetSpecification(ctx, apitypes.SpecQuery{SpecType: types.SpecTS, Identifier: "TS-1", At: &between})
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.Equal(t, 1, at.Version)

	missing, err := svc.GetSpecification(ctx, apitypes.SpecQuery{SpecType: types.SpecTS, Identifier: "TS-1", Version: 9})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestService_RecentSpecifications(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, service.Options{})

	for _, id := range []string{"ADR-1", "ADR-2", "ADR-3"} {
		_, err := svc.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecADR, id, "Title", "Body", ""))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := svc.StoreSpecification(ctx, types.NewSpecificationRecord(types.SpecPRD, "PRD-1", "Title", "Body", ""))
	require.NoError(t, err)

	recent, err := svc.RecentSpecifications(ctx, types.SpecListOpts{SpecType: types.SpecADR, Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ADR-3", recent[0].Identifier)
	assert.Equal(t, "ADR-2", recent[1].Identifier)

	all, err := svc.RecentSpecifications(ctx, types.SpecListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestService_GenerateAndFeedback(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, service.Options{})

	p := types.NewArchitecturalPattern("Repository Pattern", types.PatternDomain, types.PatternDefinition{Summary: "Data access abstraction"})
	p.ContextSimilarity = 0.8
	p.SuccessRate = 0.9
	p.Metadata[types.MetaCanonicalDecisionPoint] = "data_access"
	_, err := svc.StorePattern(ctx, p)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.RecordDecision(ctx, types.Decision{
			SpecID:         fmt.Sprintf("SDS-STORE-%d", i),
			DecisionPoint:  "data_access",
			SelectedOption: "repository",
			Confidence:     0.9,
		})
		require.NoError(t, err)
	}

	stats, err := svc.AnalyzeDecisions(ctx, 30)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "SDS", stats[0].Provenance)

	dry, err := svc.GenerateRecommendations(ctx, apitypes.GenerateRequest{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, dry.Generated, 1)
	assert.False(t, dry.Regenerated)

	res, err := svc.GenerateRecommendations(ctx, apitypes.GenerateRequest{RetentionDays: 14})
	require.NoError(t, err)
	require.Len(t, res.Generated, 1)
	rec := res.Generated[0]
	assert.WithinDuration(t, rec.CreatedAt.AddDate(0, 0, 14), rec.ExpiresAt, time.Second)

	listed, err := svc.ListRecommendations(ctx, types.RecommendationListOpts{})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	updated, err := svc.RecordFeedback(ctx, rec.ID, types.FeedbackAccept, "fits")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.InDelta(t, types.AdjustConfidence(rec.Confidence, types.FeedbackAccept), updated.Confidence, 1e-9)

	again, err := svc.GenerateRecommendations(ctx, apitypes.GenerateRequest{RetentionDays: 14})
	require.NoError(t, err)
	require.Len(t, again.Generated, 1)
	assert.Equal(t, rec.ID, again.Generated[0].ID)
	assert.InDelta(t, updated.Confidence, again.Generated[0].Confidence, 1e-9)
	assert.Equal(t, "accept", again.Generated[0].Metadata[types.MetaLastFeedback])
	listed, err = svc.ListRecommendations(ctx, types.RecommendationListOpts{})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	unknown, err := svc.RecordFeedback(ctx, "no-such-id", types.FeedbackDismiss, "")
	require.NoError(t, err)
	assert.Nil(t, unknown)

	require.NoError(t, svc.Ping(ctx))
}

func TestService_RecognizerOverrides(t *testing.T) {
	svc := newService(t, service.Options{})
	opts := svc.Recognizer(apitypes.GenerateRequest{RetentionDays: 7, MinConfidence: recognizer.Threshold(0.8), MaxRecommendations: 2}).Options()
	assert.Equal(t, 7, opts.RetentionDays)
	assert.Equal(t, 0.8, *opts.MinimumConfidence)
	assert.Equal(t, 2, opts.MaxRecommendations)
}
