package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"docspace/internal/engine"
)

// embedConcurrency bounds parallel embedding calls so indexing a large
// document does not overwhelm the local Ollama server.
const embedConcurrency = 4

// Embedder turns chunk and query text into vectors using a fixed model.
// The same model must be used for indexing and search.
type Embedder struct {
	engine engine.Engine
	model  string
}

func NewEmbedder(e engine.Engine, model string) *Embedder {
	return &Embedder{engine: e, model: model}
}

// Embed returns the vector for a single text, typically a search query.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch embeds chunk texts concurrently, preserving input order.
// An empty input yields nil, nil.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.engine.Embed(gCtx, e.model, text)
			if err != nil {
				return fmt.Errorf("embedding chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
