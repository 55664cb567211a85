// internal/embedder/embedder.go
// Package embedder maps text to fixed-width vectors so pattern definitions and
// decision queries can be compared by cosine similarity.
package embedder

// Embedder produces vectors for indexed documents and for queries. Both sides
// must come from the same Embedder to be comparable.
type Embedder interface {
	EmbedForStorage(text string) ([]float32, error)
	EmbedForSearch(query string) ([]float32, error)
}
