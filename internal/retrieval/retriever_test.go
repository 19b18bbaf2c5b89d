package retrieval

import (
	"context"
	"errors"
	"testing"

	"docspace/internal/engine"
)

// fakeEngine returns canned embeddings keyed by input text.
type fakeEngine struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEngine) Chat(ctx context.Context, model string, messages []engine.Message) (string, error) {
	return "", errors.New("not a chat engine")
}

func (f *fakeEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEngine) IsRunning(ctx context.Context) bool { return true }

func TestRetrieve_EmbedsQueryAndRanks(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.Add(ctx, []Record{
		{ID: "a", Source: "cv.pdf", Category: "interview", Text: "worked at acme", Page: 2, Embedding: []float32{1, 0, 0}},
		{ID: "b", Source: "cv.pdf", Category: "interview", Text: "studied physics", Page: 5, Embedding: []float32{0, 1, 0}},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	fake := &fakeEngine{vectors: map[string][]float32{
		"where did they work": {1, 0, 0},
	}}
	r := NewRetriever(NewEmbedder(fake, "nomic-embed-text"), idx)

	chunks, err := r.Retrieve(ctx, "where did they work", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.ID != "a" || c.Page != 2 || c.Source != "cv.pdf" || c.Text != "worked at acme" {
		t.Errorf("chunk = %+v", c)
	}
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	idx := openTestIndex(t)

	fake := &fakeEngine{err: errors.New("engine down")}
	r := NewRetriever(NewEmbedder(fake, "nomic-embed-text"), idx)

	if _, err := r.Retrieve(context.Background(), "query", 4); err == nil {
		t.Error("Retrieve with failing embedder returned nil error")
	}
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	fake := &fakeEngine{vectors: map[string][]float32{
		"first":  {1, 0, 0},
		"second": {0, 1, 0},
		"third":  {0, 0, 1},
	}}
	e := NewEmbedder(fake, "nomic-embed-text")

	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second", "third"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 || vecs[2][2] != 1 {
		t.Errorf("order not preserved: %v", vecs)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	e := NewEmbedder(&fakeEngine{}, "nomic-embed-text")
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v; want nil, nil", vecs, err)
	}
}
