// internal/service/service.go
package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/recognizer"
	"github.com/MereWhiplash/decision-cogitator/internal/storage"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// DefaultLookbackDays is the decision window used when a request leaves it unset
const DefaultLookbackDays = 45

// Options configures a Service
type Options struct {
	Recognizer    recognizer.Options
	LookbackDays  int
	DefaultAuthor string
	Repo          string
	Logger        *zerolog.Logger
}

// Service composes the temporal store and the recognizer for every surface
type Service struct {
	store storage.Repository
	opts  Options
	log   zerolog.Logger
}

// New creates a new Service
func New(store storage.Repository, opts Options) *Service {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
		if opts.Recognizer.Logger == nil {
			opts.Recognizer.Logger = opts.Logger
		}
	}
	return &Service{store: store, opts: opts, log: log}
}

func (s *Service) author(a string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return s.opts.DefaultAuthor
}

// StoreSpecification appends a new version of a specification, stamping
// the configured repo into its metadata when the caller did not
func (s *Service) StoreSpecification(ctx context.Context, rec types.SpecificationRecord) (*types.SpecificationRecord, error) {
	rec.Author = s.author(rec.Author)
	if s.opts.Repo != "" {
		meta := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		if _, ok := meta[types.MetaRepo]; !ok {
			meta[types.MetaRepo] = s.opts.Repo
		}
		rec.Metadata = meta
	}
	stored, err := s.store.StoreSpecification(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("spec", string(stored.SpecType)+":"+stored.Identifier).Int("version", stored.Version).Msg("specification stored")
	return stored, nil
}

// GetSpecification resolves q to one version, or nil when none matches
func (s *Service) GetSpecification(ctx context.Context, q apitypes.SpecQuery) (*types.SpecificationRecord, error) {
	switch {
	case q.Version > 0:
		history, err := s.store.GetSpecificationHistory(ctx, q.SpecType, q.Identifier)
		if err != nil {
			return nil, err
		}
		for i := range history {
			if history[i].Version == q.Version {
				return &history[i], nil
			}
		}
		return nil, nil
	case q.At != nil:
		return s.store.GetSpecificationAt(ctx, q.SpecType, q.Identifier, *q.At)
	default:
		return s.store.GetLatestSpecification(ctx, q.SpecType, q.Identifier)
	}
}

// SpecificationHistory returns every version, oldest first
func (s *Service) SpecificationHistory(ctx context.Context, specType types.SpecType, identifier string) ([]types.SpecificationRecord, error) {
	return s.store.GetSpecificationHistory(ctx, specType, identifier)
}

// RecentSpecifications returns the newest specification versions
func (s *Service) RecentSpecifications(ctx context.Context, opts types.SpecListOpts) ([]types.SpecificationRecord, error) {
	return s.store.GetRecentSpecifications(ctx, opts)
}

// StorePattern inserts or replaces a pattern
func (s *Service) StorePattern(ctx context.Context, p types.ArchitecturalPattern) (*types.ArchitecturalPattern, error) {
	return s.store.StoreArchitecturalPattern(ctx, p)
}

// SearchPatterns finds patterns lexically similar to the query text
func (s *Service) SearchPatterns(ctx context.Context, q types.SimilarityQuery) ([]types.PatternMatch, error) {
	if q.LookbackDays == 0 {
		q.LookbackDays = s.opts.LookbackDays
	}
	return s.store.GetSimilarPatterns(ctx, q)
}

// RecordPatternUsage folds one usage outcome into a pattern
func (s *Service) RecordPatternUsage(ctx context.Context, id string, success bool) (*types.ArchitecturalPattern, error) {
	return s.store.RecordPatternUsage(ctx, id, success)
}

// RecordDecision appends a decision, defaulting its author
func (s *Service) RecordDecision(ctx context.Context, d types.Decision) (*types.Decision, error) {
	d.Author = s.author(d.Author)
	return s.store.RecordDecision(ctx, d)
}

// AnalyzeDecisions aggregates decisions made in the last lookbackDays
func (s *Service) AnalyzeDecisions(ctx context.Context, lookbackDays int) ([]types.DecisionStat, error) {
	return s.store.AnalyzeDecisionPatterns(ctx, lookbackDays)
}

// Recognizer builds a recognizer from the configured options overlaid with
// any values set on req
func (s *Service) Recognizer(req apitypes.GenerateRequest) *recognizer.Recognizer {
	opts := s.opts.Recognizer
	if req.RetentionDays > 0 {
		opts.RetentionDays = req.RetentionDays
	}
	if req.MinConfidence != nil {
		opts.MinimumConfidence = req.MinConfidence
	}
	if req.MaxRecommendations > 0 {
		opts.MaxRecommendations = req.MaxRecommendations
	}
	return recognizer.New(s.store, opts)
}

// GenerateRecommendations runs one recognizer pass
func (s *Service) GenerateRecommendations(ctx context.Context, req apitypes.GenerateRequest) (*apitypes.GenerateResponse, error) {
	lookback := req.LookbackDays
	if lookback == 0 {
		lookback = s.opts.LookbackDays
	}
	res, err := s.Recognizer(req).GenerateRecommendations(ctx, lookback, req.DryRun)
	if err != nil {
		return nil, err
	}
	return &apitypes.GenerateResponse{
		Generated:        res.Recommendations,
		RetentionDeleted: res.RetentionDeleted,
		Regenerated:      res.Regenerated,
	}, nil
}

// ListRecommendations returns stored recommendations, best first
func (s *Service) ListRecommendations(ctx context.Context, opts types.RecommendationListOpts) ([]types.PatternRecommendation, error) {
	return s.store.GetPatternRecommendations(ctx, opts)
}

// RecordFeedback adjusts a recommendation's confidence. An unknown id yields nil, nil.
func (s *Service) RecordFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error) {
	return s.Recognizer(apitypes.GenerateRequest{}).RecordFeedback(ctx, id, action, reason)
}

// Ping checks that the store answers queries
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.GetRecentSpecifications(ctx, types.SpecListOpts{Limit: 1})
	return err
}

// Close cleans up resources
func (s *Service) Close() error {
	return s.store.Close()
}

var _ apitypes.Backend = (*Service)(nil)
