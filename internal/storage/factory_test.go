package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MereWhiplash/decision-cogitator/internal/storage"
)

func TestNew_UnknownDriver(t *testing.T) {
	_, err := storage.New(context.Background(), storage.Config{Driver: "unknown"})
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestNew_MissingSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  storage.Config
		want string
	}{
		{"sqlite path", storage.Config{Driver: "sqlite"}, "sqlite path is required"},
		{"default driver path", storage.Config{}, "sqlite path is required"},
		{"postgres dsn", storage.Config{Driver: "postgres"}, "postgres DSN is required"},
		{"mongodb uri", storage.Config{Driver: "mongodb"}, "mongodb URI is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := storage.New(context.Background(), tc.cfg)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
