// internal/apitypes/types.go
// Package apitypes holds the request and response types shared by the HTTP
// API, its client and the MCP tools. It has no CGO dependencies.
package apitypes

import (
	"context"
	"time"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// DefaultMinSimilarity is the pattern search floor used when a request sets none
const DefaultMinSimilarity = 0.1

// Git identity headers sent by the client and read by the API
const (
	HeaderAuthorName  = "X-DC-Author-Name"
	HeaderAuthorEmail = "X-DC-Author-Email"
	HeaderRepo        = "X-DC-Repo"
)

// Backend is the set of operations every surface exposes. The service
// implements it in process and the client implements it over HTTP.
type Backend interface {
	StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (*types.SpecificationRecord, error)
	GetSpecification(ctx context.Context, q SpecQuery) (*types.SpecificationRecord, error)
	SpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) ([]types.SpecificationRecord, error)
	RecentSpecifications(ctx context.Context, opts types.SpecListOpts) ([]types.SpecificationRecord, error)

	StorePattern(ctx context.Context, p types.ArchitecturalPattern) (*types.ArchitecturalPattern, error)
	SearchPatterns(ctx context.Context, q types.SimilarityQuery) ([]types.PatternMatch, error)
	RecordPatternUsage(ctx context.Context, id string, success bool) (*types.ArchitecturalPattern, error)

	RecordDecision(ctx context.Context, d types.Decision) (*types.Decision, error)
	AnalyzeDecisions(ctx context.Context, lookbackDays int) ([]types.DecisionStat, error)

	GenerateRecommendations(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	ListRecommendations(ctx context.Context, opts types.RecommendationListOpts) ([]types.PatternRecommendation, error)
	RecordFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error)
}

// SpecQuery selects one specification version. Version wins over At; with
// neither set the latest version is returned.
type SpecQuery struct {
	SpecType   types.SpecType
	Identifier string
	Version    int
	At         *time.Time
}

// StoreSpecRequest is the body of POST /v1/specifications
type StoreSpecRequest struct {
	SpecType   string         `json:"spec_type"`
	Identifier string         `json:"identifier"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Author     string         `json:"author,omitempty"`
	Version    int            `json:"version,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SpecResponse wraps a single specification
type SpecResponse struct {
	Specification *types.SpecificationRecord `json:"specification"`
}

// SpecListResponse lists the newest specification versions, newest first
type SpecListResponse struct {
	Specifications []types.SpecificationRecord `json:"specifications"`
}

// SpecHistoryResponse lists every version of a specification, oldest first
type SpecHistoryResponse struct {
	Specifications []types.SpecificationRecord `json:"specifications"`
}

// StorePatternRequest is the body of POST /v1/patterns
type StorePatternRequest struct {
	ID                string                  `json:"id,omitempty"`
	PatternName       string                  `json:"pattern_name"`
	PatternType       string                  `json:"pattern_type"`
	Definition        types.PatternDefinition `json:"pattern_definition"`
	ContextSimilarity float64                 `json:"context_similarity"`
	UsageFrequency    int                     `json:"usage_frequency,omitempty"`
	SuccessRate       float64                 `json:"success_rate"`
	Examples          []string                `json:"examples,omitempty"`
	DecisionPoint     string                  `json:"decision_point,omitempty"`
	Metadata          map[string]any          `json:"metadata,omitempty"`
}

// Pattern converts the request into a domain pattern
func (r StorePatternRequest) Pattern() types.ArchitecturalPattern {
	p := types.NewArchitecturalPattern(r.PatternName, types.PatternType(r.PatternType), r.Definition)
	if r.ID != "" {
		p.ID = r.ID
	}
	p.ContextSimilarity = r.ContextSimilarity
	p.UsageFrequency = r.UsageFrequency
	p.SuccessRate = r.SuccessRate
	p.Examples = r.Examples
	for k, v := range r.Metadata {
		p.Metadata[k] = v
	}
	if r.DecisionPoint != "" {
		p.Metadata[types.MetaCanonicalDecisionPoint] = r.DecisionPoint
	}
	return p
}

// PatternResponse wraps a single pattern
type PatternResponse struct {
	Pattern *types.ArchitecturalPattern `json:"pattern"`
}

// SearchPatternsRequest is the body of POST /v1/patterns/search
type SearchPatternsRequest struct {
	Query         string  `json:"query"`
	MinSimilarity float64 `json:"min_similarity,omitempty"`
	LookbackDays  int     `json:"lookback_days,omitempty"`
}

// SearchPatternsResponse lists matches, best first
type SearchPatternsResponse struct {
	Matches []types.PatternMatch `json:"matches"`
}

// PatternUsageRequest is the body of POST /v1/patterns/{id}/usage
type PatternUsageRequest struct {
	Success bool `json:"success"`
}

// DecisionRequest is the body of POST /v1/decisions
type DecisionRequest struct {
	SpecID         string  `json:"spec_id"`
	DecisionPoint  string  `json:"decision_point"`
	SelectedOption string  `json:"selected_option"`
	Context        string  `json:"context,omitempty"`
	Author         string  `json:"author,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// DecisionResponse wraps a recorded decision
type DecisionResponse struct {
	Decision *types.Decision `json:"decision"`
}

// AnalysisResponse lists per decision point statistics
type AnalysisResponse struct {
	Stats []types.DecisionStat `json:"stats"`
}

// GenerateRequest is the body of POST /v1/recommendations/generate. Zero
// values fall back to the server's configured defaults, except MinConfidence
// where only an absent value does.
type GenerateRequest struct {
	LookbackDays       int      `json:"lookback_days"`
	DryRun             bool     `json:"dry_run,omitempty"`
	RetentionDays      int      `json:"retention_days,omitempty"`
	MinConfidence      *float64 `json:"min_confidence,omitempty"`
	MaxRecommendations int      `json:"max_recommendations,omitempty"`
}

// GenerateResponse reports one generation run
type GenerateResponse struct {
	Generated        []types.PatternRecommendation `json:"generated"`
	RetentionDeleted int                           `json:"retention_deleted"`
	Regenerated      bool                          `json:"regenerated"`
}

// RecommendationsResponse lists stored recommendations
type RecommendationsResponse struct {
	Recommendations []types.PatternRecommendation `json:"recommendations"`
}

// FeedbackRequest is the body of POST /v1/recommendations/{id}/feedback
type FeedbackRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// FeedbackResponse carries the updated recommendation, or null for an unknown id
type FeedbackResponse struct {
	Recommendation *types.PatternRecommendation `json:"recommendation"`
}

// ErrorResponse is returned for every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
