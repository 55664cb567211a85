// cmd/dc-api/main.go
// Command dc-api serves the decision store over HTTP for team deployments.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MereWhiplash/decision-cogitator/internal/api"
	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/config"
	"github.com/MereWhiplash/decision-cogitator/internal/logging"
	"github.com/MereWhiplash/decision-cogitator/internal/metrics"
	"github.com/MereWhiplash/decision-cogitator/internal/recognizer"
	"github.com/MereWhiplash/decision-cogitator/internal/scheduler"
	"github.com/MereWhiplash/decision-cogitator/internal/service"
	"github.com/MereWhiplash/decision-cogitator/internal/storage"
)

// version is set via ldflags
var version = "dev"

var (
	configFile  string
	migrateOnly bool
)

var rootCmd = &cobra.Command{
	Use:           "dc-api",
	Short:         "HTTP API for specifications, decisions and pattern recommendations",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configFile, "config", "", "Optional YAML config file")
	f.String("addr", ":8080", "Server address")
	f.String("storage-driver", "postgres", "Storage driver: sqlite, postgres, mongodb")
	f.String("db-path", ".decisions/decisions.db", "Path to SQLite database (sqlite driver)")
	f.String("postgres-dsn", "", "PostgreSQL connection string")
	f.String("mongodb-uri", "", "MongoDB connection URI")
	f.String("mongodb-database", "decisions", "MongoDB database name")
	f.Int("rate-limit", 100, "Requests per minute per IP (0 to disable)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (empty to disable)")
	f.Duration("timeout", 30*time.Second, "Per-request timeout")
	f.Int("lookback", 45, "Default decision lookback window in days")
	f.Int("retention", 90, "Days an expired recommendation is kept before purging")
	f.Float64("min-confidence", 0.55, "Minimum confidence for a recommendation")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.String("log-format", "json", "Log format: json or console")
	f.Bool("metrics", true, "Serve Prometheus metrics on /metrics")
	f.String("generate-schedule", "", "Cron spec for background recommendation runs, e.g. @daily (empty to disable)")
	f.BoolVar(&migrateOnly, "migrate", false, "Run migrations and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	v := config.New()
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("log.format", "json")
	if err := config.BindFlags(v, cmd, map[string]string{
		"api.addr":                 "addr",
		"api.rate_limit":           "rate-limit",
		"api.cors_origins":         "cors-origins",
		"api.timeout":              "timeout",
		"api.metrics":              "metrics",
		"api.generate_schedule":    "generate-schedule",
		"storage.driver":           "storage-driver",
		"storage.sqlite_path":      "db-path",
		"storage.postgres_dsn":     "postgres-dsn",
		"storage.mongodb_uri":      "mongodb-uri",
		"storage.mongodb_database": "mongodb-database",
		"recommend.lookback_days":  "lookback",
		"recommend.retention_days": "retention",
		"recommend.min_confidence": "min-confidence",
		"log.level":                "log-level",
		"log.format":               "log-format",
	}); err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format), os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.New(ctx, storage.Config(cfg.Storage))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if migrateOnly {
		log.Info().Str("driver", cfg.Storage.Driver).Msg("migrations complete")
		return store.Close()
	}

	svc := service.New(store, service.Options{
		Recognizer: recognizer.Options{
			RetentionDays:      cfg.Recommend.RetentionDays,
			MinimumConfidence:  &cfg.Recommend.MinConfidence,
			MaxRecommendations: cfg.Recommend.MaxRecommendations,
		},
		LookbackDays: cfg.Recommend.LookbackDays,
		Logger:       &log,
	})
	defer svc.Close()

	handlers := api.NewHandlers(svc)
	handlers.SetHealthCheck(svc.Ping)

	routerCfg := api.RouterConfig{
		Logger:      log,
		Timeout:     cfg.API.Timeout,
		CORSOrigins: cfg.API.CORSOrigins,
	}
	var m *metrics.Metrics
	if cfg.API.Metrics {
		m = metrics.New()
		routerCfg.Metrics = m
	}
	if cfg.API.RateLimit > 0 {
		limiter := api.NewRateLimiter(cfg.API.RateLimit, time.Minute)
		limiter.StartCleanup(ctx)
		routerCfg.RateLimiter = limiter
	}

	if cfg.API.GenerateSchedule != "" {
		sched, err := scheduler.New(cfg.API.GenerateSchedule, svc, scheduler.Options{
			Request: apitypes.GenerateRequest{LookbackDays: cfg.Recommend.LookbackDays},
			Logger:  &log,
			Metrics: m,
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      api.NewRouter(handlers, routerCfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.API.Timeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.API.Addr).Str("driver", cfg.Storage.Driver).Msg("starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
