// cmd/dc-server/main.go
// Command dc-server serves the decision tools over MCP stdio against a local
// or team store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/MereWhiplash/decision-cogitator/internal/config"
	"github.com/MereWhiplash/decision-cogitator/internal/gitinfo"
	"github.com/MereWhiplash/decision-cogitator/internal/logging"
	"github.com/MereWhiplash/decision-cogitator/internal/recognizer"
	"github.com/MereWhiplash/decision-cogitator/internal/service"
	"github.com/MereWhiplash/decision-cogitator/internal/storage"
	"github.com/MereWhiplash/decision-cogitator/internal/tools"
)

// version is set via ldflags
var version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "dc-server",
	Short:         "MCP stdio server for specifications, decisions and pattern recommendations",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configFile, "config", "", "Optional YAML config file")
	f.String("storage-driver", "sqlite", "Storage driver: sqlite, postgres, mongodb")
	f.String("db-path", ".decisions/decisions.db", "Path to SQLite database (sqlite driver)")
	f.String("postgres-dsn", "", "PostgreSQL connection string (postgres driver)")
	f.String("mongodb-uri", "", "MongoDB connection URI (mongodb driver)")
	f.String("mongodb-database", "decisions", "MongoDB database name (mongodb driver)")
	f.Int("lookback", 45, "Default decision lookback window in days")
	f.Int("retention", 90, "Days an expired recommendation is kept before purging")
	f.Float64("min-confidence", 0.55, "Minimum confidence for a recommendation")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	v := config.New()
	if err := config.BindFlags(v, cmd, map[string]string{
		"storage.driver":           "storage-driver",
		"storage.sqlite_path":      "db-path",
		"storage.postgres_dsn":     "postgres-dsn",
		"storage.mongodb_uri":      "mongodb-uri",
		"storage.mongodb_database": "mongodb-database",
		"recommend.lookback_days":  "lookback",
		"recommend.retention_days": "retention",
		"recommend.min_confidence": "min-confidence",
		"log.level":                "log-level",
	}); err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	// stdout carries the MCP stream
	log := logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format), os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.New(ctx, storage.Config(cfg.Storage))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	info := gitinfo.Get()
	if info.Author() == "" {
		log.Warn().Msg("git identity unavailable, decisions need an explicit author")
	}

	svc := service.New(store, service.Options{
		Recognizer: recognizer.Options{
			RetentionDays:      cfg.Recommend.RetentionDays,
			MinimumConfidence:  &cfg.Recommend.MinConfidence,
			MaxRecommendations: cfg.Recommend.MaxRecommendations,
		},
		LookbackDays:  cfg.Recommend.LookbackDays,
		DefaultAuthor: info.Author(),
		Repo:          gitinfo.GetProjectID(),
		Logger:        &log,
	})
	defer svc.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "decision-cogitator",
		Version: version,
	}, nil)
	tools.Register(server, svc)

	log.Info().Str("driver", cfg.Storage.Driver).Msg("starting MCP server")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down")
	return nil
}
