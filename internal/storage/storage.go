// internal/storage/storage.go
// Package storage persists specifications, decisions, patterns and
// recommendations. Every backend implements Repository with identical
// semantics; storagetest holds the shared conformance suite.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/MereWhiplash/decision-cogitator/internal/embedder"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// Option configures a backend
type Option func(*backendOptions)

type backendOptions struct {
	embedder embedder.Embedder
}

// WithEmbedder replaces the lexical embedder used for pattern vectors. Its
// vectors must fit the backend's vector column.
func WithEmbedder(e embedder.Embedder) Option {
	return func(o *backendOptions) {
		if e != nil {
			o.embedder = e
		}
	}
}

func applyOptions(opts []Option) backendOptions {
	o := backendOptions{embedder: embedder.NewLexical()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DefaultListLimit caps recommendation and specification listings when no limit is given
const DefaultListLimit = 10

// Repository defines the interface for temporal persistence
type Repository interface {
	// StoreSpecification appends a new version. The stored version is the larger
	// of the requested version and one past the current maximum.
	StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (*types.SpecificationRecord, error)
	GetLatestSpecification(ctx context.Context, specType types.SpecType, identifier string) (*types.SpecificationRecord, error)
	GetSpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) ([]types.SpecificationRecord, error)
	GetSpecificationAt(ctx context.Context, specType types.SpecType, identifier string, at time.Time) (*types.SpecificationRecord, error)
	GetRecentSpecifications(ctx context.Context, opts types.SpecListOpts) ([]types.SpecificationRecord, error)

	StoreArchitecturalPattern(ctx context.Context, p types.ArchitecturalPattern) (*types.ArchitecturalPattern, error)
	RecordPatternUsage(ctx context.Context, id string, success bool) (*types.ArchitecturalPattern, error)
	ListPatterns(ctx context.Context, lookbackDays int) ([]types.ArchitecturalPattern, error)
	GetSimilarPatterns(ctx context.Context, q types.SimilarityQuery) ([]types.PatternMatch, error)

	RecordDecision(ctx context.Context, d types.Decision) (*types.Decision, error)
	AnalyzeDecisionPatterns(ctx context.Context, lookbackDays int) ([]types.DecisionStat, error)

	StorePatternRecommendation(ctx context.Context, rec types.PatternRecommendation) (*types.PatternRecommendation, error)
	GetPatternRecommendations(ctx context.Context, opts types.RecommendationListOpts) ([]types.PatternRecommendation, error)
	RecordRecommendationFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error)
	PurgeExpiredRecommendations(ctx context.Context, retentionDays int) (int, error)

	Close() error
}

func windowStart(now time.Time, lookbackDays int) time.Time {
	return now.AddDate(0, 0, -lookbackDays)
}

// purgeCutoff is the expiry instant before which a recommendation is purged
func purgeCutoff(now time.Time, retentionDays int) time.Time {
	if retentionDays <= 0 {
		return now
	}
	return now.AddDate(0, 0, -retentionDays)
}

func listLimit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}

// sortMatches orders by similarity desc, usage desc, name asc
func sortMatches(matches []types.PatternMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.UsageFrequency != b.UsageFrequency {
			return a.UsageFrequency > b.UsageFrequency
		}
		return a.PatternName < b.PatternName
	})
}

// sortRecommendations orders by confidence desc, created desc, id asc
func sortRecommendations(recs []types.PatternRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// feedbackMetadata returns a copy of meta stamped with the latest feedback
func feedbackMetadata(meta map[string]any, action types.FeedbackAction, reason string, at time.Time) map[string]any {
	out := make(map[string]any, len(meta)+3)
	for k, v := range meta {
		out[k] = v
	}
	out[types.MetaLastFeedback] = string(action)
	if reason != "" {
		out[types.MetaLastFeedbackReason] = reason
	} else {
		out[types.MetaLastFeedbackReason] = nil
	}
	out[types.MetaLastFeedbackAt] = at.UTC().Format(time.RFC3339Nano)
	return out
}

func marshalJSON(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal json: %w", err)
	}
	return string(b), nil
}

func unmarshalMap(raw string) (map[string]any, error) {
	m := map[string]any{}
	if raw == "" || raw == "null" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return m, nil
}

func emptyIfNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
