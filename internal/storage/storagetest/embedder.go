// internal/storage/storagetest/embedder.go
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MereWhiplash/decision-cogitator/internal/embedder"
	"github.com/MereWhiplash/decision-cogitator/internal/storage"
	"github.com/MereWhiplash/decision-cogitator/internal/types"
)

// EmbedderFactory returns an empty repository that embeds through e. The
// suite closes it.
type EmbedderFactory func(t *testing.T, e embedder.Embedder) storage.Repository

// Recorder wraps the lexical embedder, remembering the texts it was given and
// failing with StoreErr or SearchErr when set.
type Recorder struct {
	*embedder.Lexical

	StoreErr  error
	SearchErr error

	mu       sync.Mutex
	stored   []string
	searched []string
}

// NewRecorder creates a Recorder over a fresh lexical embedder
func NewRecorder() *Recorder {
	return &Recorder{Lexical: embedder.NewLexical()}
}

func (r *Recorder) EmbedForStorage(text string) ([]float32, error) {
	if r.StoreErr != nil {
		return nil, r.StoreErr
	}
	r.mu.Lock()
	r.stored = append(r.stored, text)
	r.mu.Unlock()
	return r.Lexical.EmbedForStorage(text)
}

func (r *Recorder) EmbedForSearch(query string) ([]float32, error) {
	if r.SearchErr != nil {
		return nil, r.SearchErr
	}
	r.mu.Lock()
	r.searched = append(r.searched, query)
	r.mu.Unlock()
	return r.Lexical.EmbedForSearch(query)
}

// Stored returns the texts embedded for storage
func (r *Recorder) Stored() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stored...)
}

// Searched returns the texts embedded as queries
func (r *Recorder) Searched() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.searched...)
}

// RunEmbedder checks that pattern writes and similarity queries go through
// the configured embedder and that its errors surface
func RunEmbedder(t *testing.T, newRepo EmbedderFactory) {
	ctx := context.Background()
	p := types.NewArchitecturalPattern("Repository Pattern", types.PatternDomain, types.PatternDefinition{Summary: "Data access abstraction"})
	p.ContextSimilarity = 0.5

	t.Run("RoutesThroughEmbedder", func(t *testing.T) {
		rec := NewRecorder()
		repo := newRepo(t, rec)
		t.Cleanup(func() { repo.Close() })

		_, err := repo.StoreArchitecturalPattern(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, []string{p.SearchText()}, rec.Stored())

		matches, err := repo.GetSimilarPatterns(ctx, types.SimilarityQuery{Text: "data access", MinSimilarity: 0.1, LookbackDays: 30})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, p.ID, matches[0].ID)
		assert.Equal(t, []string{"data access"}, rec.Searched())
	})

	t.Run("StorageErrorAbortsWrite", func(t *testing.T) {
		rec := NewRecorder()
		rec.StoreErr = errors.New("embedding service down")
		repo := newRepo(t, rec)
		t.Cleanup(func() { repo.Close() })

		_, err := repo.StoreArchitecturalPattern(ctx, p)
		require.Error(t, err)
		assert.ErrorIs(t, err, rec.StoreErr)

		patterns, err := repo.ListPatterns(ctx, 30)
		require.NoError(t, err)
		assert.Empty(t, patterns)
	})

	t.Run("SearchErrorSurfaces", func(t *testing.T) {
		rec := NewRecorder()
		repo := newRepo(t, rec)
		t.Cleanup(func() { repo.Close() })

		_, err := repo.StoreArchitecturalPattern(ctx, p)
		require.NoError(t, err)

		rec.SearchErr = errors.New("embedding service down")
		_, err = repo.GetSimilarPatterns(ctx, types.SimilarityQuery{Text: "data access", LookbackDays: 30})
		assert.ErrorIs(t, err, rec.SearchErr)
	})
}
