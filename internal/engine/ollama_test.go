package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tagsServer(t *testing.T, models ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		entries := make([]modelEntry, len(models))
		for i, m := range models {
			entries[i] = modelEntry{Name: m}
		}
		json.NewEncoder(w).Encode(tagsResponse{Models: entries})
	}))
}

func TestIsRunning_Up(t *testing.T) {
	srv := tagsServer(t)
	defer srv.Close()

	e := NewOllamaEngine(srv.URL)
	if !e.IsRunning(context.Background()) {
		t.Error("IsRunning = false, want true")
	}
}

func TestIsRunning_Down(t *testing.T) {
	srv := tagsServer(t)
	srv.Close()

	e := NewOllamaEngine(srv.URL)
	if e.IsRunning(context.Background()) {
		t.Error("IsRunning = true, want false")
	}
}

func TestHasModel(t *testing.T) {
	srv := tagsServer(t, "llama3.1:latest", "nomic-embed-text:latest")
	defer srv.Close()

	e := NewOllamaEngine(srv.URL)
	tests := []struct {
		name string
		want bool
	}{
		{"llama3.1", true},
		{"llama3.1:latest", true},
		{"nomic-embed-text", true},
		{"mistral", false},
	}
	for _, tc := range tests {
		if got := e.HasModel(context.Background(), tc.name); got != tc.want {
			t.Errorf("HasModel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestChat_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Stream {
			t.Error("stream = true, want false")
		}
		if req.Model != "llama3.1" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: "hello there"},
		})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL)
	got, err := e.Chat(context.Background(), "llama3.1", []Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Chat = %q", got)
	}
}

func TestChat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL)
	if _, err := e.Chat(context.Background(), "llama3.1", []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Error("Chat on 500 returned nil error")
	}
}

func TestEmbed_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Input != "chunk text" {
			t.Errorf("input = %q", req.Input)
		}
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL)
	vec, err := e.Embed(context.Background(), "nomic-embed-text", "chunk text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("Embed = %v", vec)
	}
}

func TestEmbed_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL)
	if _, err := e.Embed(context.Background(), "nomic-embed-text", "x"); err == nil {
		t.Error("Embed on empty embeddings returned nil error")
	}
}
