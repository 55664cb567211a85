// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/gitinfo"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// DefaultLookbackDays is used by the analysis endpoint when lookback_days is absent
const DefaultLookbackDays = 45

// Handlers holds HTTP handler dependencies
type Handlers struct {
	backend     apitypes.Backend
	healthCheck func(ctx context.Context) error
}

// NewHandlers creates new API handlers
func NewHandlers(backend apitypes.Backend) *Handlers {
	return &Handlers{backend: backend}
}

// SetHealthCheck sets the probe used by GET /health
func (h *Handlers) SetHealthCheck(fn func(ctx context.Context) error) {
	h.healthCheck = fn
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorBody(msg string) apitypes.ErrorResponse {
	return apitypes.ErrorResponse{Error: msg}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody(msg))
}

// respondBackendError maps validation errors to 400 and everything else to 500
func respondBackendError(w http.ResponseWriter, err error) {
	var vErr *types.ValidationError
	if errors.As(err, &vErr) {
		respondJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{Error: vErr.Reason, Field: vErr.Field})
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

// decode reads a JSON body. An empty body leaves v untouched when optional.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	respondError(w, http.StatusBadRequest, "invalid request body")
	return false
}

// pathParam returns a decoded URL parameter. chi hands back the raw segment
// when the request path needed escaping.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		if u, err := url.PathUnescape(v); err == nil {
			return u
		}
	}
	return v
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		if err := h.healthCheck(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, apitypes.HealthResponse{Status: "unhealthy", Error: err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, apitypes.HealthResponse{Status: "ok"})
}

// StoreSpecification handles POST /v1/specifications
func (h *Handlers) StoreSpecification(w http.ResponseWriter, r *http.Request) {
	var req apitypes.StoreSpecRequest
	if !decode(w, r, &req, false) {
		return
	}
	if req.SpecType == "" || req.Identifier == "" || req.Title == "" || req.Content == "" {
		respondError(w, http.StatusBadRequest, "spec_type, identifier, title, and content are required")
		return
	}

	ctx := r.Context()
	specType, _ := types.ParseSpecType(req.SpecType)
	author := req.Author
	if author == "" {
		author = gitinfo.FormatAuthor(GetAuthorName(ctx), GetAuthorEmail(ctx))
	}

	rec := types.NewSpecificationRecord(specType, req.Identifier, req.Title, req.Content, author)
	if req.Version > 0 {
		rec.Version = req.Version
	}
	for k, v := range req.Metadata {
		rec.Metadata[k] = v
	}
	if repo := GetRepo(ctx); repo != "" {
		if _, ok := rec.Metadata[types.MetaRepo]; !ok {
			rec.Metadata[types.MetaRepo] = repo
		}
	}

	spec, err := h.backend.StoreSpecification(ctx, rec)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, apitypes.SpecResponse{Specification: spec})
}

// GetSpecification handles GET /v1/specifications/{type}/{identifier}
func (h *Handlers) GetSpecification(w http.ResponseWriter, r *http.Request) {
	specType, _ := types.ParseSpecType(pathParam(r, "type"))
	q := apitypes.SpecQuery{SpecType: specType, Identifier: pathParam(r, "identifier")}

	version, ok := queryInt(r, "version", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid version")
		return
	}
	q.Version = version
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "at must be an RFC3339 timestamp")
			return
		}
		q.At = &at
	}

	spec, err := h.backend.GetSpecification(r.Context(), q)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	if spec == nil {
		respondError(w, http.StatusNotFound, "specification not found")
		return
	}
	respondJSON(w, http.StatusOK, apitypes.SpecResponse{Specification: spec})
}

// SpecificationHistory handles GET /v1/specifications/{type}/{identifier}/history
func (h *Handlers) SpecificationHistory(w http.ResponseWriter, r *http.Request) {
	specType, _ := types.ParseSpecType(pathParam(r, "type"))
	specs, err := h.backend.SpecificationHistory(r.Context(), specType, pathParam(r, "identifier"))
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apitypes.SpecHistoryResponse{Specifications: specs})
}

// RecentSpecifications handles GET /v1/specifications
func (h *Handlers) RecentSpecifications(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 0)
	if !ok || limit < 0 {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	opts := types.SpecListOpts{Limit: limit}
	if raw := r.URL.Query().Get("spec_type"); raw != "" {
		specType, valid := types.ParseSpecType(raw)
		if !valid {
			respondError(w, http.StatusBadRequest, "spec_type must be one of ADR, PRD, SDS, TS")
			return
		}
		opts.SpecType = specType
	}

	specs, err := h.backend.RecentSpecifications(r.Context(), opts)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apitypes.SpecListResponse{Specifications: specs})
}

// StorePattern handles POST /v1/patterns
func (h *Handlers) StorePattern(w http.ResponseWriter, r *http.Request) {
	var req apitypes.StorePatternRequest
	if !decode(w, r, &req, false) {
		return
	}
	if req.PatternName == "" || req.PatternType == "" {
		respondError(w, http.StatusBadRequest, "pattern_name and pattern_type are required")
		return
	}

	p, err := h.backend.StorePattern(r.Context(), req.Pattern())
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, apitypes.PatternResponse{Pattern: p})
}

// SearchPatterns handles POST /v1/patterns/search
func (h *Handlers) SearchPatterns(w http.ResponseWriter, r *http.Request) {
	var req apitypes.SearchPatternsRequest
	if !decode(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	minSim := req.MinSimilarity
	if minSim <= 0 {
		minSim = apitypes.DefaultMinSimilarity
	}

	matches, err := h.backend.SearchPatterns(r.Context(), types.SimilarityQuery{
		Text:          req.Query,
		MinSimilarity: minSim,
		LookbackDays:  req.LookbackDays,
	})
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apitypes.SearchPatternsResponse{Matches: matches})
}

// RecordPatternUsage handles POST /v1/patterns/{id}/usage
func (h *Handlers) RecordPatternUsage(w http.ResponseWriter, r *http.Request) {
	var req apitypes.PatternUsageRequest
	if !decode(w, r, &req, false) {
		return
	}

	p, err := h.backend.RecordPatternUsage(r.Context(), pathParam(r, "id"), req.Success)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "pattern not found")
		return
	}
	respondJSON(w, http.StatusOK, apitypes.PatternResponse{Pattern: p})
}

// RecordDecision handles POST /v1/decisions
func (h *Handlers) RecordDecision(w http.ResponseWriter, r *http.Request) {
	var req apitypes.DecisionRequest
	if !decode(w, r, &req, false) {
		return
	}
	if req.SpecID == "" || req.DecisionPoint == "" || req.SelectedOption == "" {
		respondError(w, http.StatusBadRequest, "spec_id, decision_point, and selected_option are required")
		return
	}

	ctx := r.Context()
	author := req.Author
	if author == "" {
		author = gitinfo.FormatAuthor(GetAuthorName(ctx), GetAuthorEmail(ctx))
	}

	d, err := h.backend.RecordDecision(ctx, types.Decision{
		SpecID:         req.SpecID,
		DecisionPoint:  req.DecisionPoint,
		SelectedOption: req.SelectedOption,
		Context:        req.Context,
		Author:         author,
		Confidence:     req.Confidence,
	})
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, apitypes.DecisionResponse{Decision: d})
}

// AnalyzeDecisions handles GET /v1/decisions/analysis
func (h *Handlers) AnalyzeDecisions(w http.ResponseWriter, r *http.Request) {
	lookback, ok := queryInt(r, "lookback_days", DefaultLookbackDays)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid lookback_days")
		return
	}

	stats, err := h.backend.AnalyzeDecisions(r.Context(), lookback)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apitypes.AnalysisResponse{Stats: stats})
}

// GenerateRecommendations handles POST /v1/recommendations/generate
func (h *Handlers) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	var req apitypes.GenerateRequest
	if !decode(w, r, &req, true) {
		return
	}

	res, err := h.backend.GenerateRecommendations(r.Context(), req)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ListRecommendations handles GET /v1/recommendations
func (h *Handlers) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	recs, err := h.backend.ListRecommendations(r.Context(), types.RecommendationListOpts{
		Limit:          limit,
		IncludeExpired: r.URL.Query().Get("include_expired") == "true",
	})
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apitypes.RecommendationsResponse{Recommendations: recs})
}

// RecordFeedback handles POST /v1/recommendations/{id}/feedback
func (h *Handlers) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	var req apitypes.FeedbackRequest
	if !decode(w, r, &req, false) {
		return
	}
	action := types.FeedbackAction(strings.ToLower(req.Action))
	if err := action.Validate(); err != nil {
		respondBackendError(w, err)
		return
	}

	rec, err := h.backend.RecordFeedback(r.Context(), pathParam(r, "id"), action, req.Reason)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, apitypes.FeedbackResponse{Recommendation: rec})
}
