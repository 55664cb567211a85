package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/apitypes/apitypestest"
	"github.com/MereWhiplash/decision-cogitator/internal/metrics"
	"github.com/MereWhiplash/decision-cogitator/internal/scheduler"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

func TestNew_InvalidSpec(t *testing.T) {
	_, err := scheduler.New("every tuesday", apitypestest.New(), scheduler.Options{})
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestRunOnce(t *testing.T) {
	backend := apitypestest.New()
	rec := types.NewPatternRecommendation("Repository Pattern", "data_access", 0.7, "ADR", "Repository Pattern: data access.", 30, nil)
	backend.Recommendations[rec.ID] = rec

	m := metrics.New()
	s, err := scheduler.New("@daily", backend, scheduler.Options{
		Request: apitypes.GenerateRequest{LookbackDays: 30, RetentionDays: 14},
		Metrics: m,
	})
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 30, backend.LastGenerate.LookbackDays)
	assert.Equal(t, 14, backend.LastGenerate.RetentionDays)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRuns.WithLabelValues(scheduler.Trigger, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecommendationsGenerated))

	backend.Err = errors.New("store down")
	assert.ErrorIs(t, s.RunOnce(context.Background()), backend.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRuns.WithLabelValues(scheduler.Trigger, "error")))
}

func TestStartStop(t *testing.T) {
	s, err := scheduler.New("0 3 * * *", apitypestest.New(), scheduler.Options{})
	require.NoError(t, err)

	s.Start()
	next := s.Next()
	assert.False(t, next.IsZero())
	assert.Equal(t, 3, next.Hour())
	assert.True(t, next.After(time.Now()))
	s.Stop()
}
