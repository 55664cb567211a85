// internal/tools/tools.go
// Package tools exposes the decision store as MCP tools. The same handlers
// serve the local server and the API-backed shim; only the Backend differs.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/mcptypes"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// Handler holds dependencies for tool handlers
type Handler struct {
	backend apitypes.Backend
}

// NewHandler creates a tool handler over backend
func NewHandler(backend apitypes.Backend) *Handler {
	return &Handler{backend: backend}
}

// Register adds all DC tools to the MCP server
func Register(server *mcp.Server, backend apitypes.Backend) {
	h := NewHandler(backend)

	mcp.AddTool(server, mcptypes.StoreSpecTool, h.StoreSpec)
	mcp.AddTool(server, mcptypes.GetSpecTool, h.GetSpec)
	mcp.AddTool(server, mcptypes.ListSpecsTool, h.ListSpecs)
	mcp.AddTool(server, mcptypes.StorePatternTool, h.StorePattern)
	mcp.AddTool(server, mcptypes.SearchPatternsTool, h.SearchPatterns)
	mcp.AddTool(server, mcptypes.RecordDecisionTool, h.RecordDecision)
	mcp.AddTool(server, mcptypes.AnalyzeDecisionsTool, h.AnalyzeDecisions)
	mcp.AddTool(server, mcptypes.GenerateRecommendationsTool, h.GenerateRecommendations)
	mcp.AddTool(server, mcptypes.ListRecommendationsTool, h.ListRecommendations)
	mcp.AddTool(server, mcptypes.FeedbackTool, h.Feedback)
}

func jsonResult(prefix string, v any) *mcp.CallToolResult {
	result, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to format response: %v", err))
	}
	if prefix != "" {
		return mcptypes.TextResult(prefix + "\n" + string(result))
	}
	return mcptypes.TextResult(string(result))
}

func (h *Handler) StoreSpec(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.StoreSpecInput) (*mcp.CallToolResult, mcptypes.SpecOutput, error) {
	if input.SpecType == "" || input.Identifier == "" || input.Title == "" || input.Content == "" {
		return mcptypes.ErrorResult("spec_type, identifier, title, and content are required"), mcptypes.SpecOutput{}, nil
	}
	specType, _ := types.ParseSpecType(input.SpecType)

	rec := types.NewSpecificationRecord(specType, input.Identifier, input.Title, input.Content, "")
	if input.Version > 0 {
		rec.Version = input.Version
	}
	spec, err := h.backend.StoreSpecification(ctx, rec)
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to store specification: %v", err)), mcptypes.SpecOutput{}, nil
	}
	msg := fmt.Sprintf("Stored %s %s version %d:", spec.SpecType, spec.Identifier, spec.Version)
	return jsonResult(msg, spec), mcptypes.SpecOutput{Specification: spec}, nil
}

func (h *Handler) GetSpec(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.GetSpecInput) (*mcp.CallToolResult, mcptypes.SpecOutput, error) {
	if input.SpecType == "" || input.Identifier == "" {
		return mcptypes.ErrorResult("spec_type and identifier are required"), mcptypes.SpecOutput{}, nil
	}
	specType, _ := types.ParseSpecType(input.SpecType)

	q := apitypes.SpecQuery{SpecType: specType, Identifier: input.Identifier, Version: input.Version}
	if input.At != "" {
		at, err := time.Parse(time.RFC3339, input.At)
		if err != nil {
			return mcptypes.ErrorResult("at must be an RFC3339 timestamp"), mcptypes.SpecOutput{}, nil
		}
		q.At = &at
	}

	spec, err := h.backend.GetSpecification(ctx, q)
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to get specification: %v", err)), mcptypes.SpecOutput{}, nil
	}
	if spec == nil {
		return mcptypes.TextResult("No matching specification found."), mcptypes.SpecOutput{}, nil
	}
	return jsonResult("", spec), mcptypes.SpecOutput{Specification: spec}, nil
}

func (h *Handler) ListSpecs(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.ListSpecsInput) (*mcp.CallToolResult, mcptypes.ListSpecsOutput, error) {
	opts := types.SpecListOpts{Limit: input.Limit}
	if input.SpecType != "" {
		specType, ok := types.ParseSpecType(input.SpecType)
		if !ok {
			return mcptypes.ErrorResult("spec_type must be one of ADR, PRD, SDS, TS"), mcptypes.ListSpecsOutput{}, nil
		}
		opts.SpecType = specType
	}

	specs, err := h.backend.RecentSpecifications(ctx, opts)
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to list specifications: %v", err)), mcptypes.ListSpecsOutput{}, nil
	}
	if len(specs) == 0 {
		return mcptypes.TextResult("No specifications found."), mcptypes.ListSpecsOutput{Specifications: []types.SpecificationRecord{}}, nil
	}
	return jsonResult("", specs), mcptypes.ListSpecsOutput{Specifications: specs}, nil
}

func (h *Handler) StorePattern(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.StorePatternInput) (*mcp.CallToolResult, mcptypes.PatternOutput, error) {
	if input.Name == "" || input.PatternType == "" {
		return mcptypes.ErrorResult("pattern_name and pattern_type are required"), mcptypes.PatternOutput{}, nil
	}

	p := apitypes.StorePatternRequest{
		PatternName: input.Name,
		PatternType: input.PatternType,
		Definition: types.PatternDefinition{
			Summary:   input.Summary,
			Structure: input.Structure,
			Benefits:  input.Benefits,
		},
		ContextSimilarity: input.ContextSimilarity,
		SuccessRate:       input.SuccessRate,
		DecisionPoint:     input.DecisionPoint,
	}.Pattern()

	stored, err := h.backend.StorePattern(ctx, p)
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to store pattern: %v", err)), mcptypes.PatternOutput{}, nil
	}
	return jsonResult("Pattern stored:", stored), mcptypes.PatternOutput{Pattern: stored}, nil
}

func (h *Handler) SearchPatterns(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.SearchPatternsInput) (*mcp.CallToolResult, mcptypes.SearchPatternsOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return mcptypes.ErrorResult("query is required"), mcptypes.SearchPatternsOutput{}, nil
	}
	minSim := input.MinSimilarity
	if minSim <= 0 {
		minSim = apitypes.DefaultMinSimilarity
	}

	matches, err := h.backend.SearchPatterns(ctx, types.SimilarityQuery{
		Text:          input.Query,
		MinSimilarity: minSim,
		LookbackDays:  input.LookbackDays,
	})
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to search: %v", err)), mcptypes.SearchPatternsOutput{}, nil
	}
	if len(matches) == 0 {
		return mcptypes.TextResult("No matching patterns found."), mcptypes.SearchPatternsOutput{Matches: []types.PatternMatch{}}, nil
	}
	return jsonResult("", matches), mcptypes.SearchPatternsOutput{Matches: matches}, nil
}

func (h *Handler) RecordDecision(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.RecordDecisionInput) (*mcp.CallToolResult, mcptypes.DecisionOutput, error) {
	if input.SpecID == "" || input.DecisionPoint == "" || input.SelectedOption == "" {
		return mcptypes.ErrorResult("spec_id, decision_point, and selected_option are required"), mcptypes.DecisionOutput{}, nil
	}

	d, err := h.backend.RecordDecision(ctx, types.Decision{
		SpecID:         input.SpecID,
		DecisionPoint:  input.DecisionPoint,
		SelectedOption: input.SelectedOption,
		Context:        input.Context,
		Confidence:     input.Confidence,
	})
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to record decision: %v", err)), mcptypes.DecisionOutput{}, nil
	}
	return jsonResult("Decision recorded:", d), mcptypes.DecisionOutput{Decision: d}, nil
}

func (h *Handler) AnalyzeDecisions(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.AnalyzeInput) (*mcp.CallToolResult, mcptypes.AnalyzeOutput, error) {
	lookback := input.LookbackDays
	if lookback <= 0 {
		lookback = 45
	}

	stats, err := h.backend.AnalyzeDecisions(ctx, lookback)
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to analyze decisions: %v", err)), mcptypes.AnalyzeOutput{}, nil
	}
	if len(stats) == 0 {
		return mcptypes.TextResult("No decisions recorded in the window."), mcptypes.AnalyzeOutput{Stats: []types.DecisionStat{}}, nil
	}
	return jsonResult("", stats), mcptypes.AnalyzeOutput{Stats: stats}, nil
}

func (h *Handler) GenerateRecommendations(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.GenerateInput) (*mcp.CallToolResult, mcptypes.GenerateOutput, error) {
	res, err := h.backend.GenerateRecommendations(ctx, apitypes.GenerateRequest{
		LookbackDays:  input.LookbackDays,
		DryRun:        input.DryRun,
		MinConfidence: input.MinConfidence,
	})
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to generate recommendations: %v", err)), mcptypes.GenerateOutput{}, nil
	}

	out := mcptypes.GenerateOutput{Generated: res.Generated, RetentionDeleted: res.RetentionDeleted}
	if len(res.Generated) == 0 {
		return mcptypes.TextResult(fmt.Sprintf("No recommendations met the confidence threshold. %d expired recommendations purged.", res.RetentionDeleted)), out, nil
	}
	return jsonResult(fmt.Sprintf("Generated %d recommendations:", len(res.Generated)), res.Generated), out, nil
}

func (h *Handler) ListRecommendations(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.ListRecommendationsInput) (*mcp.CallToolResult, mcptypes.ListRecommendationsOutput, error) {
	recs, err := h.backend.ListRecommendations(ctx, types.RecommendationListOpts{
		Limit:          input.Limit,
		IncludeExpired: input.IncludeExpired,
	})
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to list: %v", err)), mcptypes.ListRecommendationsOutput{}, nil
	}
	if len(recs) == 0 {
		return mcptypes.TextResult("No recommendations found."), mcptypes.ListRecommendationsOutput{Recommendations: []types.PatternRecommendation{}}, nil
	}
	return jsonResult("", recs), mcptypes.ListRecommendationsOutput{Recommendations: recs}, nil
}

func (h *Handler) Feedback(ctx context.Context, req *mcp.CallToolRequest, input mcptypes.FeedbackInput) (*mcp.CallToolResult, mcptypes.FeedbackOutput, error) {
	if input.ID == "" {
		return mcptypes.ErrorResult("id is required"), mcptypes.FeedbackOutput{}, nil
	}
	action := types.FeedbackAction(strings.ToLower(input.Action))
	if err := action.Validate(); err != nil {
		return mcptypes.ErrorResult(err.Error()), mcptypes.FeedbackOutput{}, nil
	}

	rec, err := h.backend.RecordFeedback(ctx, input.ID, action, input.Reason)
	if err != nil {
		return mcptypes.ErrorResult(fmt.Sprintf("failed to record feedback: %v", err)), mcptypes.FeedbackOutput{}, nil
	}
	if rec == nil {
		return mcptypes.TextResult(fmt.Sprintf("Recommendation %s not found.", input.ID)), mcptypes.FeedbackOutput{}, nil
	}
	msg := fmt.Sprintf("Recommendation %s %sed; confidence is now %.2f.", rec.ID, action, rec.Confidence)
	return mcptypes.TextResult(msg), mcptypes.FeedbackOutput{Recommendation: rec}, nil
}
