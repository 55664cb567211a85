// internal/config/config.go
// Package config loads settings for every binary from defaults, an optional
// YAML file, DC_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. DC_STORAGE_DRIVER
const EnvPrefix = "DC"

// Config is the merged configuration
type Config struct {
	Storage   Storage   `mapstructure:"storage"`
	Recommend Recommend `mapstructure:"recommend"`
	API       API       `mapstructure:"api"`
	Log       Log       `mapstructure:"log"`
}

// Storage mirrors storage.Config field for field so it converts directly
type Storage struct {
	Driver          string `mapstructure:"driver"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	PostgresDSN     string `mapstructure:"postgres_dsn"`
	MongoDBURI      string `mapstructure:"mongodb_uri"`
	MongoDBDatabase string `mapstructure:"mongodb_database"`
}

// Recommend holds recognizer tuning
type Recommend struct {
	LookbackDays       int     `mapstructure:"lookback_days"`
	Limit              int     `mapstructure:"limit"`
	RetentionDays      int     `mapstructure:"retention_days"`
	MinConfidence      float64 `mapstructure:"min_confidence"`
	MaxRecommendations int     `mapstructure:"max_recommendations"`
}

// API holds HTTP server and client settings. GenerateSchedule is a cron spec
// for background generation in dc-api; empty disables it.
type API struct {
	Addr             string        `mapstructure:"addr"`
	URL              string        `mapstructure:"url"`
	RateLimit        int           `mapstructure:"rate_limit"`
	CORSOrigins      []string      `mapstructure:"cors_origins"`
	Timeout          time.Duration `mapstructure:"timeout"`
	Metrics          bool          `mapstructure:"metrics"`
	GenerateSchedule string        `mapstructure:"generate_schedule"`
}

// Log holds logger settings
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults returns the built-in settings
func Defaults() map[string]any {
	return map[string]any{
		"storage.driver":           "sqlite",
		"storage.sqlite_path":      ".decisions/decisions.db",
		"storage.postgres_dsn":     "",
		"storage.mongodb_uri":      "",
		"storage.mongodb_database": "decisions",

		"recommend.lookback_days":       45,
		"recommend.limit":               10,
		"recommend.retention_days":      90,
		"recommend.min_confidence":      0.55,
		"recommend.max_recommendations": 5,

		"api.addr":              ":8080",
		"api.url":               "",
		"api.rate_limit":        100,
		"api.cors_origins":      []string{},
		"api.timeout":           30 * time.Second,
		"api.metrics":           true,
		"api.generate_schedule": "",

		"log.level":  "info",
		"log.format": "console",
	}
}

// New returns a viper instance with defaults and environment overrides wired
func New() *viper.Viper {
	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags maps config keys to flags of cmd. Flags only win when set explicitly.
func BindFlags(v *viper.Viper, cmd *cobra.Command, bindings map[string]string) error {
	for key, name := range bindings {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q for key %s", name, key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the optional YAML file at path and unmarshals the merged settings
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.API.CORSOrigins = trimAll(cfg.API.CORSOrigins)
	return &cfg, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
