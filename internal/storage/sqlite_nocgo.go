//go:build !cgo

// internal/storage/sqlite_nocgo.go
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// SQLite is a stub for non-CGO builds
type SQLite struct{}

var errNoCGO = fmt.Errorf("SQLite storage requires CGO (build with CGO_ENABLED=1)")

// NewSQLite returns an error in non-CGO builds
func NewSQLite(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	return nil, errNoCGO
}

func (s *SQLite) StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (*types.SpecificationRecord, error) {
	return nil, errNoCGO
}

func (s *SQLite) GetLatestSpecification(ctx context.Context, specType types.SpecType, identifier string) (*types.SpecificationRecord, error) {
	return nil, errNoCGO
}

func (s *SQLite) GetSpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) ([]types.SpecificationRecord, error) {
	return nil, errNoCGO
}

func (s *SQLite) GetSpecificationAt(ctx context.Context, specType types.SpecType, identifier string, at time.Time) (*types.SpecificationRecord, error) {
	return nil, errNoCGO
}

func (s *SQLite) GetRecentSpecifications(ctx context.Context, opts types.SpecListOpts) ([]types.SpecificationRecord, error) {
	return nil, errNoCGO
}

func (s *SQLite) StoreArchitecturalPattern(ctx context.Context, p types.ArchitecturalPattern) (*types.ArchitecturalPattern, error) {
	return nil, errNoCGO
}

func (s *SQLite) RecordPatternUsage(ctx context.Context, id string, success bool) (*types.ArchitecturalPattern, error) {
	return nil, errNoCGO
}

func (s *SQLite) ListPatterns(ctx context.Context, lookbackDays int) ([]types.ArchitecturalPattern, error) {
	return nil, errNoCGO
}

func (s *SQLite) GetSimilarPatterns(ctx context.Context, q types.SimilarityQuery) ([]types.PatternMatch, error) {
	return nil, errNoCGO
}

func (s *SQLite) RecordDecision(ctx context.Context, d types.Decision) (*types.Decision, error) {
	return nil, errNoCGO
}

func (s *SQLite) AnalyzeDecisionPatterns(ctx context.Context, lookbackDays int) ([]types.DecisionStat, error) {
	return nil, errNoCGO
}

func (s *SQLite) StorePatternRecommendation(ctx context.Context, rec types.PatternRecommendation) (*types.PatternRecommendation, error) {
	return nil, errNoCGO
}

func (s *SQLite) GetPatternRecommendations(ctx context.Context, opts types.RecommendationListOpts) ([]types.PatternRecommendation, error) {
	return nil, errNoCGO
}

func (s *SQLite) RecordRecommendationFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error) {
	return nil, errNoCGO
}

func (s *SQLite) PurgeExpiredRecommendations(ctx context.Context, retentionDays int) (int, error) {
	return 0, errNoCGO
}

func (s *SQLite) Close() error {
	return nil
}
