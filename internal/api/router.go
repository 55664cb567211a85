// internal/api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/MereWhiplash/decision-cogitator/internal/metrics"
)

// RouterConfig selects the optional middleware of NewRouter
type RouterConfig struct {
	Logger      zerolog.Logger
	Timeout     time.Duration
	RateLimiter *RateLimiter
	CORSOrigins []string
	// Metrics, when set, instruments every route and serves GET /metrics
	Metrics *metrics.Metrics
}

// NewRouter mounts every route behind the standard middleware stack
func NewRouter(h *Handlers, cfg RouterConfig) *chi.Mux {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(Instrument(cfg.Metrics))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))
	r.Use(MaxBodySize)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORSMiddleware(cfg.CORSOrigins))
	}
	r.Use(GitContext)

	r.Get("/health", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/specifications", h.StoreSpecification)
		r.Get("/specifications", h.RecentSpecifications)
		r.Get("/specifications/{type}/{identifier}", h.GetSpecification)
		r.Get("/specifications/{type}/{identifier}/history", h.SpecificationHistory)

		r.Post("/patterns", h.StorePattern)
		r.Post("/patterns/search", h.SearchPatterns)
		r.Post("/patterns/{id}/usage", h.RecordPatternUsage)

		r.Post("/decisions", h.RecordDecision)
		r.Get("/decisions/analysis", h.AnalyzeDecisions)

		r.Post("/recommendations/generate", h.GenerateRecommendations)
		r.Get("/recommendations", h.ListRecommendations)
		r.Post("/recommendations/{id}/feedback", h.RecordFeedback)
	})
	return r
}
