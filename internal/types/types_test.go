package types_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

func TestSpecType_Validate(t *testing.T) {
	for _, st := range []types.SpecType{types.SpecADR, types.SpecPRD, types.SpecSDS, types.SpecTS} {
		assert.NoError(t, st.Validate(), st)
	}

	err := types.SpecType("RFC").Validate()
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "spec_type", vErr.Field)
}

func TestParseSpecType(t *testing.T) {
	st, ok := types.ParseSpecType(" adr ")
	assert.True(t, ok)
	assert.Equal(t, types.SpecADR, st)

	_, ok = types.ParseSpecType("NON_EXISTENT")
	assert.False(t, ok)
}

func TestNewSpecificationRecord(t *testing.T) {
	rec := types.NewSpecificationRecord(types.SpecADR, "ADR-001", "Use ports", "Adopt hexagonal", "arch")

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, types.ContentHash("Adopt hexagonal"), rec.Hash)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
	assert.NoError(t, rec.Validate())
}

func TestSpecificationRecord_Validate(t *testing.T) {
	base := types.NewSpecificationRecord(types.SpecTS, "TS-1", "Title", "Body", "")

	tests := []struct {
		name  string
		edit  func(r *types.SpecificationRecord)
		field string
	}{
		{"missing identifier", func(r *types.SpecificationRecord) { r.Identifier = " " }, "identifier"},
		{"missing title", func(r *types.SpecificationRecord) { r.Title = "" }, "title"},
		{"missing content", func(r *types.SpecificationRecord) { r.Content = "" }, "content"},
		{"bad type", func(r *types.SpecificationRecord) { r.SpecType = "X" }, "spec_type"},
		{"negative version", func(r *types.SpecificationRecord) { r.Version = -1 }, "version"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := base
			tc.edit(&rec)
			var vErr *types.ValidationError
			require.ErrorAs(t, rec.Validate(), &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestArchitecturalPattern_Validate(t *testing.T) {
	p := types.NewArchitecturalPattern("Repository Pattern", types.PatternDomain, types.PatternDefinition{Summary: "Data access abstraction"})
	require.NoError(t, p.Validate())

	bad := p
	bad.SuccessRate = 1.5
	assert.Error(t, bad.Validate())

	bad = p
	bad.ContextSimilarity = -0.1
	assert.Error(t, bad.Validate())

	bad = p
	bad.UsageFrequency = -1
	assert.Error(t, bad.Validate())

	bad = p
	bad.PatternName = "---"
	assert.Error(t, bad.Validate())
}

func TestArchitecturalPattern_RecordUse(t *testing.T) {
	p := types.NewArchitecturalPattern("CQRS", types.PatternApplication, types.PatternDefinition{})
	at := time.Now()

	p.RecordUse(true, at)
	p.RecordUse(true, at)
	p.RecordUse(false, at)

	assert.Equal(t, 3, p.UsageFrequency)
	assert.InDelta(t, 2.0/3.0, p.SuccessRate, 1e-9)
	require.NotNil(t, p.LastUsed)
	assert.True(t, p.LastUsed.Equal(at))
	assert.True(t, p.ActiveAt().Equal(at))
}

func TestArchitecturalPattern_Description(t *testing.T) {
	p := types.NewArchitecturalPattern("Hexagonal Architecture", types.PatternApplication, types.PatternDefinition{})
	assert.Equal(t, "Hexagonal Architecture", p.Description())

	p.Definition.Structure = "Core surrounded by adapters"
	assert.Equal(t, "Core surrounded by adapters", p.Description())

	p.Definition.Summary = "Ports and adapters"
	assert.Equal(t, "Ports and adapters", p.Description())
	assert.Contains(t, p.SearchText(), "Hexagonal Architecture Ports and adapters")
}

func TestNewPatternRecommendation_TTL(t *testing.T) {
	rec := types.NewPatternRecommendation("CQRS", "query_strategy", 1.4, "ADR", "why", 7, nil)

	assert.Equal(t, 1.0, rec.Confidence)
	assert.True(t, rec.CreatedAt.AddDate(0, 0, 7).Equal(rec.ExpiresAt))
	assert.NotNil(t, rec.Metadata)
	assert.False(t, rec.Expired(rec.CreatedAt))
	assert.True(t, rec.Expired(rec.ExpiresAt))

	def := types.NewPatternRecommendation("CQRS", "query_strategy", 0.5, "ADR", "why", 0, nil)
	assert.True(t, def.CreatedAt.AddDate(0, 0, types.DefaultRetentionDays).Equal(def.ExpiresAt))
}

func TestPatternRecommendation_TotalDecisions(t *testing.T) {
	rec := types.NewPatternRecommendation("CQRS", "query_strategy", 0.5, "ADR", "why", 1, map[string]any{types.MetaTotalDecisions: 4})
	assert.Equal(t, 4, rec.TotalDecisions())

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded types.PatternRecommendation
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 4, decoded.TotalDecisions())

	decoded.Metadata[types.MetaTotalDecisions] = int32(5)
	assert.Equal(t, 5, decoded.TotalDecisions())
}

func TestAdjustConfidence_Monotonic(t *testing.T) {
	for i := 0; i <= 100; i++ {
		old := float64(i) / 100
		accepted := types.AdjustConfidence(old, types.FeedbackAccept)
		dismissed := types.AdjustConfidence(old, types.FeedbackDismiss)

		assert.GreaterOrEqual(t, accepted, old)
		assert.LessOrEqual(t, dismissed, old)
		assert.LessOrEqual(t, accepted, 1.0)
		assert.GreaterOrEqual(t, dismissed, 0.0)
		if old < 1 {
			assert.Greater(t, accepted, old, "accept must raise %v", old)
		}
		if old > 0 {
			assert.Less(t, dismissed, old, "dismiss must lower %v", old)
		}
	}
}

func TestFeedbackAction_Validate(t *testing.T) {
	assert.NoError(t, types.FeedbackAccept.Validate())
	assert.NoError(t, types.FeedbackDismiss.Validate())
	assert.Error(t, types.FeedbackAction("snooze").Validate())
}

func TestFault(t *testing.T) {
	assert.Nil(t, types.Fault("op", nil))

	base := errors.New("disk full")
	err := types.Fault("insert", base)
	var fault *types.StorageFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "insert", fault.Op)
	assert.ErrorIs(t, err, base)

	vErr := &types.ValidationError{Field: "x", Reason: "y"}
	assert.Same(t, vErr, types.Fault("insert", vErr))
	assert.Same(t, err, types.Fault("outer", err))
	assert.ErrorIs(t, types.Fault("outer", fmt.Errorf("scan: %w", base)), base)
}
