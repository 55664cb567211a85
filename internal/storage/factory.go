// internal/storage/factory.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
)

// DefaultMongoDatabase is used when a mongodb config names no database
const DefaultMongoDatabase = "decisions"

// Config selects and parameterizes a backend. Only the fields of the chosen
// driver are read.
type Config struct {
	Driver          string
	SQLitePath      string
	PostgresDSN     string
	MongoDBURI      string
	MongoDBDatabase string
}

// New opens the Repository named by cfg.Driver, running its migrations.
// An empty driver means sqlite.
func New(ctx context.Context, cfg Config, opts ...Option) (Repository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return NewSQLite(ctx, cfg.SQLitePath, opts...)

	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres DSN is required")
		}
		return NewPostgres(ctx, cfg.PostgresDSN, opts...)

	case DriverMongoDB:
		if cfg.MongoDBURI == "" {
			return nil, fmt.Errorf("mongodb URI is required")
		}
		db := cfg.MongoDBDatabase
		if db == "" {
			db = DefaultMongoDatabase
		}
		return NewMongoDB(ctx, cfg.MongoDBURI, db, opts...)

	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
