// internal/scheduler/scheduler.go
// Package scheduler runs recommendation generation on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/metrics"
)

// Trigger labels runs started by the schedule
const Trigger = "schedule"

// DefaultRunTimeout bounds a single scheduled run
const DefaultRunTimeout = 5 * time.Minute

// Generator is the slice of the backend a scheduled run needs
type Generator interface {
	GenerateRecommendations(ctx context.Context, req apitypes.GenerateRequest) (*apitypes.GenerateResponse, error)
}

// Options configures a Scheduler
type Options struct {
	// Request is sent unchanged on every run
	Request    apitypes.GenerateRequest
	RunTimeout time.Duration
	Logger     *zerolog.Logger
	Metrics    *metrics.Metrics
}

// Scheduler owns a cron instance with one generation job. Overlapping runs
// are skipped.
type Scheduler struct {
	cron *cron.Cron
	gen  Generator
	opts Options
	log  zerolog.Logger
	ctx  context.Context
	stop context.CancelFunc
}

// New parses spec (standard five-field cron or a descriptor such as @daily)
// and registers the job. The scheduler does not run until Start.
func New(spec string, gen Generator, opts Options) (*Scheduler, error) {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		gen:  gen,
		opts: opts,
		log:  log.With().Str("component", "scheduler").Logger(),
		ctx:  ctx,
		stop: cancel,
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunOnce(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing the job in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Time("next", s.Next()).Msg("scheduler started")
}

// Stop cancels an in-flight run and waits for it to return
func (s *Scheduler) Stop() {
	s.stop()
	<-s.cron.Stop().Done()
}

// Next reports when the job fires next. Zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce performs one generation run and records its outcome
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.gen.GenerateRecommendations(ctx, s.opts.Request)

	var generated, purged int
	if res != nil {
		generated, purged = len(res.Generated), res.RetentionDeleted
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveRun(Trigger, generated, purged, err)
	}
	if err != nil {
		s.log.Error().Err(err).Dur("duration", time.Since(start)).Msg("scheduled generation failed")
		return err
	}
	s.log.Info().
		Int("generated", generated).
		Int("retention_deleted", purged).
		Dur("duration", time.Since(start)).
		Msg("scheduled generation finished")
	return nil
}
