// internal/client/client.go
// Package client talks to the decision API and implements apitypes.Backend
// so the MCP shim can serve the same tools as the local server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/gitinfo"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// Client is an HTTP client for the central API
type Client struct {
	baseURL string
	gitInfo *gitinfo.Info
	http    *http.Client
}

// New creates a new API client
func New(baseURL string, gitInfo *gitinfo.Info) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		gitInfo: gitInfo,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var _ apitypes.Backend = (*Client)(nil)

// apiError rebuilds a validation error from the response so callers can
// still match it with errors.As
func apiError(resp *http.Response) error {
	var errResp apitypes.ErrorResponse
	json.NewDecoder(resp.Body).Decode(&errResp)
	if resp.StatusCode == http.StatusBadRequest && errResp.Field != "" {
		return &types.ValidationError{Field: errResp.Field, Reason: errResp.Error}
	}
	if errResp.Error == "" {
		errResp.Error = resp.Status
	}
	return fmt.Errorf("API error: %s", errResp.Error)
}

// do sends body as JSON and decodes a successful response into out. A 404
// with allowMissing reports found=false instead of an error.
func (c *Client) do(ctx context.Context, method, path string, body, out any, allowMissing bool) (found bool, err error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.gitInfo != nil {
		if c.gitInfo.AuthorName != "" {
			req.Header.Set(apitypes.HeaderAuthorName, c.gitInfo.AuthorName)
		}
		if c.gitInfo.AuthorEmail != "" {
			req.Header.Set(apitypes.HeaderAuthorEmail, c.gitInfo.AuthorEmail)
		}
		if c.gitInfo.Repo != "" {
			req.Header.Set(apitypes.HeaderRepo, c.gitInfo.Repo)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && allowMissing {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, apiError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return true, nil
}

func specPath(specType types.SpecType, identifier string) string {
	return "/v1/specifications/" + url.PathEscape(string(specType)) + "/" + url.PathEscape(identifier)
}

// StoreSpecification creates a new specification version
func (c *Client) StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (*types.SpecificationRecord, error) {
	req := apitypes.StoreSpecRequest{
		SpecType:   string(rec.SpecType),
		Identifier: rec.Identifier,
		Title:      rec.Title,
		Content:    rec.Content,
		Author:     rec.Author,
		Version:    rec.Version,
		Metadata:   rec.Metadata,
	}
	var result apitypes.SpecResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/specifications", req, &result, false); err != nil {
		return nil, err
	}
	return result.Specification, nil
}

// GetSpecification returns the version selected by q, or nil when none exists
func (c *Client) GetSpecification(ctx context.Context, q apitypes.SpecQuery) (*types.SpecificationRecord, error) {
	params := url.Values{}
	if q.Version > 0 {
		params.Set("version", strconv.Itoa(q.Version))
	}
	if q.At != nil {
		params.Set("at", q.At.UTC().Format(time.RFC3339Nano))
	}
	path := specPath(q.SpecType, q.Identifier)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result apitypes.SpecResponse
	found, err := c.do(ctx, http.MethodGet, path, nil, &result, true)
	if err != nil || !found {
		return nil, err
	}
	return result.Specification, nil
}

// SpecificationHistory returns every version, oldest first
func (c *Client) SpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) ([]types.SpecificationRecord, error) {
	var result apitypes.SpecHistoryResponse
	if _, err := c.do(ctx, http.MethodGet, specPath(specType, identifier)+"/history", nil, &result, false); err != nil {
		return nil, err
	}
	return result.Specifications, nil
}

// RecentSpecifications returns the newest specification versions, optionally
// of one type
func (c *Client) RecentSpecifications(ctx context.Context, opts types.SpecListOpts) ([]types.SpecificationRecord, error) {
	path := "/v1/specifications"
	params := url.Values{}
	if opts.SpecType != "" {
		params.Set("spec_type", string(opts.SpecType))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result apitypes.SpecListResponse
	if _, err := c.do(ctx, http.MethodGet, path, nil, &result, false); err != nil {
		return nil, err
	}
	return result.Specifications, nil
}

// StorePattern inserts or replaces a pattern
func (c *Client) StorePattern(ctx context.Context, p types.ArchitecturalPattern) (*types.ArchitecturalPattern, error) {
	req := apitypes.StorePatternRequest{
		ID:                p.ID,
		PatternName:       p.PatternName,
		PatternType:       string(p.PatternType),
		Definition:        p.Definition,
		ContextSimilarity: p.ContextSimilarity,
		UsageFrequency:    p.UsageFrequency,
		SuccessRate:       p.SuccessRate,
		Examples:          p.Examples,
		Metadata:          p.Metadata,
	}
	var result apitypes.PatternResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/patterns", req, &result, false); err != nil {
		return nil, err
	}
	return result.Pattern, nil
}

// SearchPatterns finds patterns similar to q.Text
func (c *Client) SearchPatterns(ctx context.Context, q types.SimilarityQuery) ([]types.PatternMatch, error) {
	req := apitypes.SearchPatternsRequest{Query: q.Text, MinSimilarity: q.MinSimilarity, LookbackDays: q.LookbackDays}
	var result apitypes.SearchPatternsResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/patterns/search", req, &result, false); err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// RecordPatternUsage folds one usage outcome into a pattern; nil for an unknown id
func (c *Client) RecordPatternUsage(ctx context.Context, id string, success bool) (*types.ArchitecturalPattern, error) {
	var result apitypes.PatternResponse
	found, err := c.do(ctx, http.MethodPost, "/v1/patterns/"+url.PathEscape(id)+"/usage", apitypes.PatternUsageRequest{Success: success}, &result, true)
	if err != nil || !found {
		return nil, err
	}
	return result.Pattern, nil
}

// RecordDecision appends a decision
func (c *Client) RecordDecision(ctx context.Context, d types.Decision) (*types.Decision, error) {
	req := apitypes.DecisionRequest{
		SpecID:         d.SpecID,
		DecisionPoint:  d.DecisionPoint,
		SelectedOption: d.SelectedOption,
		Context:        d.Context,
		Author:         d.Author,
		Confidence:     d.Confidence,
	}
	var result apitypes.DecisionResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/decisions", req, &result, false); err != nil {
		return nil, err
	}
	return result.Decision, nil
}

// AnalyzeDecisions returns per decision point statistics
func (c *Client) AnalyzeDecisions(ctx context.Context, lookbackDays int) ([]types.DecisionStat, error) {
	var result apitypes.AnalysisResponse
	path := fmt.Sprintf("/v1/decisions/analysis?lookback_days=%d", lookbackDays)
	if _, err := c.do(ctx, http.MethodGet, path, nil, &result, false); err != nil {
		return nil, err
	}
	return result.Stats, nil
}

// GenerateRecommendations runs one recognizer pass on the server
func (c *Client) GenerateRecommendations(ctx context.Context, req apitypes.GenerateRequest) (*apitypes.GenerateResponse, error) {
	var result apitypes.GenerateResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/recommendations/generate", req, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRecommendations returns stored recommendations, best first
func (c *Client) ListRecommendations(ctx context.Context, opts types.RecommendationListOpts) ([]types.PatternRecommendation, error) {
	path := "/v1/recommendations"
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.IncludeExpired {
		params.Set("include_expired", "true")
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var result apitypes.RecommendationsResponse
	if _, err := c.do(ctx, http.MethodGet, path, nil, &result, false); err != nil {
		return nil, err
	}
	return result.Recommendations, nil
}

// RecordFeedback accepts or dismisses a recommendation; nil for an unknown id
func (c *Client) RecordFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error) {
	req := apitypes.FeedbackRequest{Action: string(action), Reason: reason}
	var result apitypes.FeedbackResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/recommendations/"+url.PathEscape(id)+"/feedback", req, &result, false); err != nil {
		return nil, err
	}
	return result.Recommendation, nil
}

// Health reports whether the API and its store are reachable
func (c *Client) Health(ctx context.Context) error {
	var result apitypes.HealthResponse
	_, err := c.do(ctx, http.MethodGet, "/health", nil, &result, false)
	return err
}
