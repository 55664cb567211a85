// internal/types/recommendation.go
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata keys written by stores and the recognizer
const (
	MetaTotalDecisions     = "total_decisions"
	MetaLastFeedback       = "last_feedback"
	MetaLastFeedbackReason = "last_feedback_reason"
	MetaLastFeedbackAt     = "last_feedback_at"
)

// PatternRecommendation is a generated, time-limited pattern suggestion
type PatternRecommendation struct {
	ID            string         `json:"id"`
	PatternName   string         `json:"pattern_name"`
	DecisionPoint string         `json:"decision_point"`
	Confidence    float64        `json:"confidence"`
	Provenance    string         `json:"provenance"`
	Rationale     string         `json:"rationale"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

// NewPatternRecommendation builds a recommendation expiring ttlDays after creation.
// A non-positive ttlDays falls back to DefaultRetentionDays.
func NewPatternRecommendation(patternName, decisionPoint string, confidence float64, provenance, rationale string, ttlDays int, metadata map[string]any) PatternRecommendation {
	if ttlDays <= 0 {
		ttlDays = DefaultRetentionDays
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := time.Now().UTC()
	return PatternRecommendation{
		ID:            uuid.NewString(),
		PatternName:   patternName,
		DecisionPoint: decisionPoint,
		Confidence:    Clamp01(confidence),
		Provenance:    provenance,
		Rationale:     rationale,
		Metadata:      metadata,
		CreatedAt:     now,
		ExpiresAt:     now.AddDate(0, 0, ttlDays),
	}
}

// Validate checks the fields a store requires before persisting the recommendation
func (r PatternRecommendation) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return &ValidationError{Field: "id", Reason: "id is required"}
	}
	if strings.TrimSpace(r.PatternName) == "" {
		return &ValidationError{Field: "pattern_name", Reason: "pattern_name is required"}
	}
	if strings.TrimSpace(r.DecisionPoint) == "" {
		return &ValidationError{Field: "decision_point", Reason: "decision_point is required"}
	}
	if err := checkUnit("confidence", r.Confidence); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() || r.ExpiresAt.IsZero() {
		return &ValidationError{Field: "expires_at", Reason: "created_at and expires_at are required"}
	}
	if r.ExpiresAt.Before(r.CreatedAt) {
		return &ValidationError{Field: "expires_at", Reason: "expires_at must not precede created_at"}
	}
	return nil
}

// Expired reports whether the recommendation is past its expiry at now
func (r PatternRecommendation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// WithConfidence returns a copy with a clamped confidence and a fresh metadata map
func (r PatternRecommendation) WithConfidence(c float64) PatternRecommendation {
	out := r
	out.Confidence = Clamp01(c)
	out.Metadata = make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// TotalDecisions reads metadata["total_decisions"] whatever numeric type the
// backing store decoded it as
func (r PatternRecommendation) TotalDecisions() int {
	n, _ := MetadataInt(r.Metadata, MetaTotalDecisions)
	return n
}

// MetadataInt extracts an integer from a decoded metadata map
func MetadataInt(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// FeedbackAction is a reviewer's verdict on a recommendation
type FeedbackAction string

const (
	FeedbackAccept  FeedbackAction = "accept"
	FeedbackDismiss FeedbackAction = "dismiss"
)

// Feedback confidence steps. Dismissal weighs more than acceptance.
const (
	AcceptStep  = 0.10
	DismissStep = 0.15
)

// Valid returns true if the action is accept or dismiss
func (a FeedbackAction) Valid() bool {
	return a == FeedbackAccept || a == FeedbackDismiss
}

// Validate returns an error if the action is unknown
func (a FeedbackAction) Validate() error {
	if !a.Valid() {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("invalid action %q: must be accept or dismiss", a)}
	}
	return nil
}

// AdjustConfidence returns the confidence after applying action to old.
// Accept never lowers and dismiss never raises; both stay within [0,1].
func AdjustConfidence(old float64, action FeedbackAction) float64 {
	switch action {
	case FeedbackAccept:
		return Clamp01(old + AcceptStep)
	case FeedbackDismiss:
		return Clamp01(old - DismissStep)
	}
	return Clamp01(old)
}
