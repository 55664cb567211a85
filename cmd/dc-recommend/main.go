// cmd/dc-recommend/main.go
// Command dc-recommend runs one recommendation pass against the local store
// and prints the outcome as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MereWhiplash/decision-cogitator/internal/apitypes"
	"github.com/MereWhiplash/decision-cogitator/internal/config"
	"github.com/MereWhiplash/decision-cogitator/internal/gitinfo"
	"github.com/MereWhiplash/decision-cogitator/internal/logging"
	"github.com/MereWhiplash/decision-cogitator/internal/recognizer"
	"github.com/MereWhiplash/decision-cogitator/internal/service"
	"github.com/MereWhiplash/decision-cogitator/internal/storage"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// version is set via ldflags
var version = "dev"

var (
	v          = config.New()
	configFile string
	dryRun     bool

	feedbackAction string
	feedbackID     string
	feedbackReason string
)

var rootCmd = &cobra.Command{
	Use:   "dc-recommend",
	Short: "Generate architectural pattern recommendations from recent decisions",
	Long: `dc-recommend purges expired recommendations, analyzes recent decisions,
matches them against the pattern catalog and stores new recommendations.

Examples:
  dc-recommend --lookback 30
  dc-recommend --dry-run --min-confidence 0.7
  dc-recommend --feedback-id <id> --feedback-action accept --feedback-reason "adopted"`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRecommend,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Optional YAML config file")
	pf.String("db", ".decisions/decisions.db", "Path to SQLite database (sqlite driver)")
	pf.String("storage-driver", "sqlite", "Storage driver: sqlite, postgres, mongodb")
	pf.String("postgres-dsn", "", "PostgreSQL connection string (postgres driver)")
	pf.String("mongodb-uri", "", "MongoDB connection URI (mongodb driver)")
	pf.String("mongodb-database", "decisions", "MongoDB database name (mongodb driver)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")

	f := rootCmd.Flags()
	f.Int("lookback", 45, "Decision lookback window in days")
	f.Int("limit", 10, "Number of stored recommendations to list")
	f.Int("retention", 90, "Days an expired recommendation is kept before purging")
	f.Float64("min-confidence", 0.55, "Minimum confidence for a recommendation (0 keeps every candidate)")
	f.Int("max-recommendations", 5, "Maximum recommendations generated per run")
	f.BoolVar(&dryRun, "dry-run", false, "Score without writing or purging")
	f.StringVar(&feedbackAction, "feedback-action", "", "Feedback to record first: accept or dismiss")
	f.StringVar(&feedbackID, "feedback-id", "", "Recommendation ID the feedback applies to")
	f.StringVar(&feedbackReason, "feedback-reason", "", "Optional reason stored with the feedback")

	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var storageFlags = map[string]string{
	"storage.driver":           "storage-driver",
	"storage.sqlite_path":      "db",
	"storage.postgres_dsn":     "postgres-dsn",
	"storage.mongodb_uri":      "mongodb-uri",
	"storage.mongodb_database": "mongodb-database",
	"log.level":                "log-level",
}

var recommendFlags = map[string]string{
	"recommend.lookback_days":       "lookback",
	"recommend.limit":               "limit",
	"recommend.retention_days":      "retention",
	"recommend.min_confidence":      "min-confidence",
	"recommend.max_recommendations": "max-recommendations",
}

// setup loads configuration and opens the store behind a service
func setup(ctx context.Context, cmd *cobra.Command, v *viper.Viper, bindings ...map[string]string) (*service.Service, *config.Config, error) {
	for _, b := range bindings {
		if err := config.BindFlags(v, cmd, b); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, nil, err
	}

	log := logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format), os.Stderr)

	store, err := storage.New(ctx, storage.Config(cfg.Storage))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	svc := service.New(store, service.Options{
		Recognizer: recognizer.Options{
			RetentionDays:      cfg.Recommend.RetentionDays,
			MinimumConfidence:  &cfg.Recommend.MinConfidence,
			MaxRecommendations: cfg.Recommend.MaxRecommendations,
		},
		LookbackDays:  cfg.Recommend.LookbackDays,
		DefaultAuthor: gitinfo.Get().Author(),
		Repo:          gitinfo.GetProjectID(),
		Logger:        &log,
	})
	return svc, cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, cfg, err := setup(ctx, cmd, v, storageFlags, recommendFlags)
	if err != nil {
		return err
	}
	defer svc.Close()

	rep, err := recommend(ctx, svc, runOptions{
		LookbackDays:   cfg.Recommend.LookbackDays,
		Limit:          cfg.Recommend.Limit,
		DryRun:         dryRun,
		FeedbackAction: feedbackAction,
		FeedbackID:     feedbackID,
		FeedbackReason: feedbackReason,
	})
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), rep)
}

type runOptions struct {
	LookbackDays   int
	Limit          int
	DryRun         bool
	FeedbackAction string
	FeedbackID     string
	FeedbackReason string
}

type report struct {
	Generated        []types.PatternRecommendation `json:"generated"`
	Existing         []types.PatternRecommendation `json:"existing"`
	RetentionDeleted int                           `json:"retention_deleted"`
	Feedback         *types.PatternRecommendation  `json:"feedback"`
}

// recommend records feedback, generates, then lists what is stored
func recommend(ctx context.Context, backend apitypes.Backend, opts runOptions) (*report, error) {
	rep := &report{}

	if opts.FeedbackAction != "" || opts.FeedbackID != "" {
		if opts.FeedbackAction == "" || opts.FeedbackID == "" {
			return nil, fmt.Errorf("--feedback-action and --feedback-id must be given together")
		}
		action := types.FeedbackAction(strings.ToLower(strings.TrimSpace(opts.FeedbackAction)))
		if err := action.Validate(); err != nil {
			return nil, err
		}
		fb, err := backend.RecordFeedback(ctx, opts.FeedbackID, action, opts.FeedbackReason)
		if err != nil {
			return nil, fmt.Errorf("failed to record feedback: %w", err)
		}
		rep.Feedback = fb
	}

	res, err := backend.GenerateRecommendations(ctx, apitypes.GenerateRequest{
		LookbackDays: opts.LookbackDays,
		DryRun:       opts.DryRun,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate recommendations: %w", err)
	}
	rep.Generated = res.Generated
	rep.RetentionDeleted = res.RetentionDeleted

	existing, err := backend.ListRecommendations(ctx, types.RecommendationListOpts{Limit: opts.Limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	rep.Existing = existing

	if rep.Generated == nil {
		rep.Generated = []types.PatternRecommendation{}
	}
	if rep.Existing == nil {
		rep.Existing = []types.PatternRecommendation{}
	}
	return rep, nil
}

func writeReport(w io.Writer, rep *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
