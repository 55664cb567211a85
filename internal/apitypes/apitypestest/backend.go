// internal/apitypes/apitypestest/backend.go
// Package apitypestest provides an in-memory apitypes.Backend for surface tests.
package apitypestest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// Backend keeps everything in maps and records the last request of each kind.
// Err, when set, is returned by every call.
type Backend struct {
	mu              sync.Mutex
	Specs           []types.SpecificationRecord
	Patterns        map[string]types.ArchitecturalPattern
	Decisions       []types.Decision
	Recommendations map[string]types.PatternRecommendation

	LastSpecQuery apitypes.SpecQuery
	LastSpecList  types.SpecListOpts
	LastSimilar   types.SimilarityQuery
	LastGenerate  apitypes.GenerateRequest
	LastList      types.RecommendationListOpts

	Err error
}

// New returns an empty Backend
func New() *Backend {
	return &Backend{
		Patterns:        map[string]types.ArchitecturalPattern{},
		Recommendations: map[string]types.PatternRecommendation{},
	}
}

var _ apitypes.Backend = (*Backend)(nil)

func (b *Backend) StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (*types.SpecificationRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	for _, s := range b.Specs {
		if s.SpecType == rec.SpecType && s.Identifier == rec.Identifier && s.Version >= rec.Version {
			rec.Version = s.Version + 1
		}
	}
	rec.Hash = types.ContentHash(rec.Content)
	b.Specs = append(b.Specs, rec)
	return &rec, nil
}

func (b *Backend) GetSpecification(ctx context.Context, q apitypes.SpecQuery) (*types.SpecificationRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastSpecQuery = q
	if b.Err != nil {
		return nil, b.Err
	}
	var best *types.SpecificationRecord
	for i, s := range b.Specs {
		if s.SpecType != q.SpecType || s.Identifier != q.Identifier {
			continue
		}
		if q.Version > 0 && s.Version != q.Version {
			continue
		}
		if best == nil || s.Version > best.Version {
			best = &b.Specs[i]
		}
	}
	return best, nil
}

func (b *Backend) SpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) ([]types.SpecificationRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	out := []types.SpecificationRecord{}
	for _, s := range b.Specs {
		if s.SpecType == specType && s.Identifier == identifier {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// RecentSpecifications returns specifications newest first, ten unless a limit is set
func (b *Backend) RecentSpecifications(ctx context.Context, opts types.SpecListOpts) ([]types.SpecificationRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastSpecList = opts
	if b.Err != nil {
		return nil, b.Err
	}
	out := []types.SpecificationRecord{}
	for _, s := range b.Specs {
		if opts.SpecType == "" || s.SpecType == opts.SpecType {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Version > out[j].Version
	})
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (b *Backend) StorePattern(ctx context.Context, p types.ArchitecturalPattern) (*types.ArchitecturalPattern, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b.Patterns[p.ID] = p
	return &p, nil
}

// SearchPatterns matches on a shared lowercase word rather than vectors
func (b *Backend) SearchPatterns(ctx context.Context, q types.SimilarityQuery) ([]types.PatternMatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastSimilar = q
	if b.Err != nil {
		return nil, b.Err
	}
	out := []types.PatternMatch{}
	words := strings.Fields(strings.ToLower(q.Text))
	for _, p := range b.Patterns {
		text := strings.ToLower(p.SearchText())
		for _, w := range words {
			if strings.Contains(text, w) {
				out = append(out, types.PatternMatch{ArchitecturalPattern: p, Similarity: 1})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatternName < out[j].PatternName })
	return out, nil
}

func (b *Backend) RecordPatternUsage(ctx context.Context, id string, success bool) (*types.ArchitecturalPattern, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	p, ok := b.Patterns[id]
	if !ok {
		return nil, nil
	}
	p.UsageFrequency++
	b.Patterns[id] = p
	return &p, nil
}

func (b *Backend) RecordDecision(ctx context.Context, d types.Decision) (*types.Decision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	b.Decisions = append(b.Decisions, d)
	return &d, nil
}

func (b *Backend) AnalyzeDecisions(ctx context.Context, lookbackDays int) ([]types.DecisionStat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	counts := map[string]int{}
	for _, d := range b.Decisions {
		counts[d.DecisionPoint]++
	}
	out := []types.DecisionStat{}
	for dp, n := range counts {
		out = append(out, types.DecisionStat{DecisionPoint: dp, TotalDecisions: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DecisionPoint < out[j].DecisionPoint })
	return out, nil
}

func (b *Backend) GenerateRecommendations(ctx context.Context, req apitypes.GenerateRequest) (*apitypes.GenerateResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastGenerate = req
	if b.Err != nil {
		return nil, b.Err
	}
	res := &apitypes.GenerateResponse{Generated: []types.PatternRecommendation{}, Regenerated: !req.DryRun}
	for _, rec := range b.Recommendations {
		res.Generated = append(res.Generated, rec)
	}
	return res, nil
}

func (b *Backend) ListRecommendations(ctx context.Context, opts types.RecommendationListOpts) ([]types.PatternRecommendation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastList = opts
	if b.Err != nil {
		return nil, b.Err
	}
	out := []types.PatternRecommendation{}
	for _, rec := range b.Recommendations {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func (b *Backend) RecordFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if err := action.Validate(); err != nil {
		return nil, err
	}
	rec, ok := b.Recommendations[id]
	if !ok {
		return nil, nil
	}
	rec = rec.WithConfidence(types.AdjustConfidence(rec.Confidence, action))
	b.Recommendations[id] = rec
	return &rec, nil
}
