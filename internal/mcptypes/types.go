// internal/mcptypes/types.go
// Package mcptypes contains shared MCP tool input/output types.
// These are used by both the direct MCP server and the API-backed shim.
package mcptypes

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// StoreSpecInput defines the input schema for dc_store_spec
type StoreSpecInput struct {
	SpecType   string `json:"spec_type" jsonschema:"Specification type: ADR, PRD, SDS, or TS"`
	Identifier string `json:"identifier" jsonschema:"Stable identifier, e.g. ADR-012"`
	Title      string `json:"title" jsonschema:"Document title"`
	Content    string `json:"content" jsonschema:"Full document body"`
	Version    int    `json:"version,omitempty" jsonschema:"Requested version; the store never goes backwards"`
}

// SpecOutput defines the output schema for tools returning one specification
type SpecOutput struct {
	Specification *types.SpecificationRecord `json:"specification"`
}

// GetSpecInput defines the input schema for dc_get_spec
type GetSpecInput struct {
	SpecType   string `json:"spec_type" jsonschema:"Specification type: ADR, PRD, SDS, or TS"`
	Identifier string `json:"identifier" jsonschema:"Specification identifier"`
	Version    int    `json:"version,omitempty" jsonschema:"Exact version (default: latest)"`
	At         string `json:"at,omitempty" jsonschema:"RFC3339 instant; returns the version current at that time"`
}

// ListSpecsInput defines the input schema for dc_list_specs
type ListSpecsInput struct {
	SpecType string `json:"spec_type,omitempty" jsonschema:"Only this type: ADR, PRD, SDS, or TS"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default: 10)"`
}

// ListSpecsOutput defines the output schema for dc_list_specs
type ListSpecsOutput struct {
	Specifications []types.SpecificationRecord `json:"specifications"`
}

// StorePatternInput defines the input schema for dc_store_pattern
type StorePatternInput struct {
	Name              string   `json:"pattern_name" jsonschema:"Pattern name, e.g. Repository Pattern"`
	PatternType       string   `json:"pattern_type" jsonschema:"Layer: Domain, Application, Infrastructure, or Interface"`
	Summary           string   `json:"summary,omitempty" jsonschema:"One line definition"`
	Structure         string   `json:"structure,omitempty" jsonschema:"How the pattern is put together"`
	Benefits          []string `json:"benefits,omitempty" jsonschema:"Benefits of the pattern"`
	ContextSimilarity float64  `json:"context_similarity,omitempty" jsonschema:"Prior fit to this codebase, 0 to 1"`
	SuccessRate       float64  `json:"success_rate,omitempty" jsonschema:"Observed success rate, 0 to 1"`
	DecisionPoint     string   `json:"decision_point,omitempty" jsonschema:"Decision point this pattern answers"`
}

// PatternOutput defines the output schema for dc_store_pattern
type PatternOutput struct {
	Pattern *types.ArchitecturalPattern `json:"pattern"`
}

// SearchPatternsInput defines the input schema for dc_search_patterns
type SearchPatternsInput struct {
	Query         string  `json:"query" jsonschema:"Text to match against pattern names and definitions"`
	MinSimilarity float64 `json:"min_similarity,omitempty" jsonschema:"Minimum similarity 0 to 1 (default: 0.1)"`
	LookbackDays  int     `json:"lookback_days,omitempty" jsonschema:"Only patterns active in this many days (default: 45)"`
}

// SearchPatternsOutput defines the output schema for dc_search_patterns
type SearchPatternsOutput struct {
	Matches []types.PatternMatch `json:"matches"`
}

// RecordDecisionInput defines the input schema for dc_record_decision
type RecordDecisionInput struct {
	SpecID         string  `json:"spec_id" jsonschema:"Specification the decision belongs to, e.g. ADR-012"`
	DecisionPoint  string  `json:"decision_point" jsonschema:"What was decided, e.g. integration_strategy"`
	SelectedOption string  `json:"selected_option" jsonschema:"The option chosen"`
	Context        string  `json:"context,omitempty" jsonschema:"Where or why the decision applies"`
	Confidence     float64 `json:"confidence" jsonschema:"Confidence in the decision, 0 to 1"`
}

// DecisionOutput defines the output schema for dc_record_decision
type DecisionOutput struct {
	Decision *types.Decision `json:"decision"`
}

// AnalyzeInput defines the input schema for dc_analyze_decisions
type AnalyzeInput struct {
	LookbackDays int `json:"lookback_days,omitempty" jsonschema:"Decision window in days (default: 45)"`
}

// AnalyzeOutput defines the output schema for dc_analyze_decisions
type AnalyzeOutput struct {
	Stats []types.DecisionStat `json:"stats"`
}

// GenerateInput defines the input schema for dc_generate_recommendations
type GenerateInput struct {
	LookbackDays  int      `json:"lookback_days,omitempty" jsonschema:"Decision window in days (default: 45)"`
	DryRun        bool     `json:"dry_run,omitempty" jsonschema:"Compute without storing or purging"`
	MinConfidence *float64 `json:"min_confidence,omitempty" jsonschema:"Minimum confidence, 0 keeps every candidate (default: 0.55)"`
}

// GenerateOutput defines the output schema for dc_generate_recommendations
type GenerateOutput struct {
	Generated        []types.PatternRecommendation `json:"generated"`
	RetentionDeleted int                           `json:"retention_deleted"`
}

// ListRecommendationsInput defines the input schema for dc_list_recommendations
type ListRecommendationsInput struct {
	Limit          int  `json:"limit,omitempty" jsonschema:"Maximum number of results (default: 10)"`
	IncludeExpired bool `json:"include_expired,omitempty" jsonschema:"Include expired recommendations"`
}

// ListRecommendationsOutput defines the output schema for dc_list_recommendations
type ListRecommendationsOutput struct {
	Recommendations []types.PatternRecommendation `json:"recommendations"`
}

// FeedbackInput defines the input schema for dc_feedback
type FeedbackInput struct {
	ID     string `json:"id" jsonschema:"Recommendation ID"`
	Action string `json:"action" jsonschema:"accept or dismiss"`
	Reason string `json:"reason,omitempty" jsonschema:"Why"`
}

// FeedbackOutput defines the output schema for dc_feedback
type FeedbackOutput struct {
	Recommendation *types.PatternRecommendation `json:"recommendation"`
}

// TextResult creates a successful MCP result with text content
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// ErrorResult creates an error MCP result
func ErrorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// Tool definitions (shared between server and shim)
var (
	StoreSpecTool = &mcp.Tool{
		Name:        "dc_store_spec",
		Description: "Store a new version of a specification (ADR, PRD, SDS, TS)",
	}

	GetSpecTool = &mcp.Tool{
		Name:        "dc_get_spec",
		Description: "Get the latest, a specific, or a point-in-time version of a specification",
	}

	ListSpecsTool = &mcp.Tool{
		Name:        "dc_list_specs",
		Description: "List the most recently stored specification versions",
	}

	StorePatternTool = &mcp.Tool{
		Name:        "dc_store_pattern",
		Description: "Store or replace an architectural pattern",
	}

	SearchPatternsTool = &mcp.Tool{
		Name:        "dc_search_patterns",
		Description: "Find architectural patterns sharing words with a query",
	}

	RecordDecisionTool = &mcp.Tool{
		Name:        "dc_record_decision",
		Description: "Record an architectural decision made in a specification",
	}

	AnalyzeDecisionsTool = &mcp.Tool{
		Name:        "dc_analyze_decisions",
		Description: "Summarize recent decisions per decision point",
	}

	GenerateRecommendationsTool = &mcp.Tool{
		Name:        "dc_generate_recommendations",
		Description: "Mine recent decisions into ranked pattern recommendations",
	}

	ListRecommendationsTool = &mcp.Tool{
		Name:        "dc_list_recommendations",
		Description: "List stored pattern recommendations, best first",
	}

	FeedbackTool = &mcp.Tool{
		Name:        "dc_feedback",
		Description: "Accept or dismiss a recommendation",
	}
)
