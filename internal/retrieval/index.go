// Package retrieval stores embedded document chunks and finds the ones most
// similar to a query. Every space owns an index directory of its own, so
// deleting a space is a directory removal and nothing else.
package retrieval

import "context"

// Record is one embedded chunk as stored in an index.
type Record struct {
	ID        string
	Source    string // originating filename
	Category  string
	Text      string
	Page      int
	Embedding []float32
}

// ScoredRecord pairs a Record with its similarity score from a search.
type ScoredRecord struct {
	Record
	Score float32
}

// VectorIndex is the per-space chunk store.
type VectorIndex interface {
	// Add inserts records into the index.
	Add(ctx context.Context, records []Record) error

	// Search returns the top-K records most similar to the query vector,
	// ordered by descending score.
	Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)

	// Count returns the number of records in the index.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying storage handle.
	Close() error
}
