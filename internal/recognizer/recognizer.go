// internal/recognizer/recognizer.go
// Package recognizer mines recorded decisions into ranked, time-limited
// pattern recommendations.
package recognizer

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// Defaults applied by New when an option is left at its zero value
const (
	DefaultRetentionDays      = types.DefaultRetentionDays
	DefaultMinimumConfidence  = 0.55
	DefaultMaxRecommendations = 5
	DefaultMatchConcurrency   = 4
)

// Store is the part of the temporal store the recognizer needs
type Store interface {
	PatternSource
	AnalyzeDecisionPatterns(ctx context.Context, lookbackDays int) ([]types.DecisionStat, error)
	StorePatternRecommendation(ctx context.Context, rec types.PatternRecommendation) (*types.PatternRecommendation, error)
	GetPatternRecommendations(ctx context.Context, opts types.RecommendationListOpts) ([]types.PatternRecommendation, error)
	RecordRecommendationFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error)
	PurgeExpiredRecommendations(ctx context.Context, retentionDays int) (int, error)
}

// Options tunes recommendation generation. A nil MinimumConfidence means
// DefaultMinimumConfidence; an explicit zero keeps every candidate.
type Options struct {
	RetentionDays      int
	MinimumConfidence  *float64
	MaxRecommendations int
	MinDecisions       int
	Weights            Weights
	Logger             *zerolog.Logger
}

// Result is the outcome of one generation run
type Result struct {
	Recommendations  []types.PatternRecommendation `json:"generated"`
	RetentionDeleted int                           `json:"retention_deleted"`
	Regenerated      bool                          `json:"regenerated"`
}

// Recognizer turns decision history into recommendations. It holds no state
// besides its options; the store is borrowed.
type Recognizer struct {
	store Store
	opts  Options
	log   zerolog.Logger
}

// New creates a Recognizer, filling unset options with defaults
func New(store Store, opts Options) *Recognizer {
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = DefaultRetentionDays
	}
	minConf := DefaultMinimumConfidence
	if opts.MinimumConfidence != nil && !math.IsNaN(*opts.MinimumConfidence) {
		minConf = types.Clamp01(*opts.MinimumConfidence)
	}
	opts.MinimumConfidence = &minConf
	if opts.MaxRecommendations <= 0 {
		opts.MaxRecommendations = DefaultMaxRecommendations
	}
	if opts.MinDecisions <= 0 {
		opts.MinDecisions = 1
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "recognizer").Logger()
	}
	return &Recognizer{store: store, opts: opts, log: log}
}

// Threshold returns a MinimumConfidence option value
func Threshold(v float64) *float64 {
	return &v
}

// Options returns the effective options
func (r *Recognizer) Options() Options {
	return r.opts
}

// GenerateRecommendations purges expired recommendations, aggregates the
// decisions of the last lookbackDays, and persists the best pattern per
// decision point whose confidence clears the minimum. A dry run computes the
// same recommendations without writing or purging anything.
func (r *Recognizer) GenerateRecommendations(ctx context.Context, lookbackDays int, dryRun bool) (*Result, error) {
	res := &Result{Recommendations: []types.PatternRecommendation{}, Regenerated: !dryRun}

	if !dryRun {
		deleted, err := r.store.PurgeExpiredRecommendations(ctx, r.opts.RetentionDays)
		if err != nil {
			return nil, err
		}
		res.RetentionDeleted = deleted
	}

	if lookbackDays <= 0 {
		return res, nil
	}

	stats, err := r.store.AnalyzeDecisionPatterns(ctx, lookbackDays)
	if err != nil {
		return nil, err
	}

	matcher := &Matcher{
		Source:       r.store,
		LookbackDays: lookbackDays,
		MinDecisions: r.opts.MinDecisions,
		Concurrency:  DefaultMatchConcurrency,
	}
	candidates, err := matcher.Match(ctx, stats)
	if err != nil {
		return nil, err
	}

	live, err := r.live(ctx, candidates)
	if err != nil {
		return nil, err
	}

	type scored struct {
		Candidate
		confidence float64
		prev       *types.PatternRecommendation
	}
	var kept []scored
	for _, c := range candidates {
		conf := r.opts.Weights.Confidence(c.Stat.MeanConfidence, c.Pattern.SuccessRate, c.Pattern.ContextSimilarity)
		var prev *types.PatternRecommendation
		if p, ok := live[recKey{c.Pattern.PatternName, c.Stat.DecisionPoint}]; ok {
			prev = &p
			if _, reviewed := p.Metadata[types.MetaLastFeedback]; reviewed {
				conf = p.Confidence
			}
		}
		ev := r.log.Debug().
			Str("decision_point", c.Stat.DecisionPoint).
			Str("pattern", c.Pattern.PatternName).
			Float64("confidence", conf).
			Bool("existing", prev != nil)
		if conf < *r.opts.MinimumConfidence {
			ev.Msg("candidate below minimum confidence")
			continue
		}
		ev.Msg("candidate accepted")
		kept = append(kept, scored{Candidate: c, confidence: conf, prev: prev})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].confidence != kept[j].confidence {
			return kept[i].confidence > kept[j].confidence
		}
		return kept[i].Stat.DecisionPoint < kept[j].Stat.DecisionPoint
	})
	if len(kept) > r.opts.MaxRecommendations {
		kept = kept[:r.opts.MaxRecommendations]
	}

	for _, s := range kept {
		meta := metadata(s.Candidate, r.opts.RetentionDays)
		rec := types.NewPatternRecommendation(
			s.Pattern.PatternName,
			s.Stat.DecisionPoint,
			s.confidence,
			s.Stat.Provenance,
			Rationale(s.Candidate, s.confidence),
			r.opts.RetentionDays,
			meta,
		)
		if s.prev != nil {
			rec.ID = s.prev.ID
			for _, k := range []string{types.MetaLastFeedback, types.MetaLastFeedbackReason, types.MetaLastFeedbackAt} {
				if v, ok := s.prev.Metadata[k]; ok {
					meta[k] = v
				}
			}
		}
		if !dryRun {
			stored, err := r.store.StorePatternRecommendation(ctx, rec)
			if err != nil {
				return nil, err
			}
			rec = *stored
		}
		res.Recommendations = append(res.Recommendations, rec)
	}

	r.log.Info().
		Int("decision_points", len(stats)).
		Int("candidates", len(candidates)).
		Int("recommendations", len(res.Recommendations)).
		Int("retention_deleted", res.RetentionDeleted).
		Bool("dry_run", dryRun).
		Msg("recommendations generated")
	return res, nil
}

type recKey struct {
	pattern       string
	decisionPoint string
}

// live indexes the unexpired recommendations by pattern and decision point so
// a run refreshes them in place. The highest-confidence row wins a key.
func (r *Recognizer) live(ctx context.Context, candidates []Candidate) (map[recKey]types.PatternRecommendation, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	recs, err := r.store.GetPatternRecommendations(ctx, types.RecommendationListOpts{Limit: math.MaxInt32})
	if err != nil {
		return nil, err
	}
	out := make(map[recKey]types.PatternRecommendation, len(recs))
	for _, rec := range recs {
		k := recKey{rec.PatternName, rec.DecisionPoint}
		if _, seen := out[k]; !seen {
			out[k] = rec
		}
	}
	return out, nil
}

// HydrateExisting returns stored, unexpired recommendations
func (r *Recognizer) HydrateExisting(ctx context.Context, limit int) ([]types.PatternRecommendation, error) {
	return r.store.GetPatternRecommendations(ctx, types.RecommendationListOpts{Limit: limit})
}

// RecordFeedback applies a reviewer verdict. An unknown id yields nil, nil.
func (r *Recognizer) RecordFeedback(ctx context.Context, id string, action types.FeedbackAction, reason string) (*types.PatternRecommendation, error) {
	rec, err := r.store.RecordRecommendationFeedback(ctx, id, action, reason)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		r.log.Info().Str("id", id).Str("action", string(action)).Float64("confidence", rec.Confidence).Msg("feedback recorded")
	}
	return rec, nil
}
