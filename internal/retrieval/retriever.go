package retrieval

import (
	"context"
)

// ContextChunk is a retrieved document fragment with its similarity score.
type ContextChunk struct {
	ID       string
	Source   string
	Category string
	Text     string
	Page     int
	Score    float32
}

// Retriever combines embedding and vector search against one space's index.
type Retriever struct {
	embedder *Embedder
	index    VectorIndex
}

// NewRetriever creates a Retriever backed by the given Embedder and index.
func NewRetriever(embedder *Embedder, index VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve embeds the query and returns the top-K most similar chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}

	chunks := make([]ContextChunk, len(scored))
	for i, s := range scored {
		chunks[i] = ContextChunk{
			ID:       s.ID,
			Source:   s.Source,
			Category: s.Category,
			Text:     s.Text,
			Page:     s.Page,
			Score:    s.Score,
		}
	}
	return chunks, nil
}
