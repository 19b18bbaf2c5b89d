// Package engine abstracts the language-model collaborators: chat
// completion and text embedding. The core never talks to a provider
// directly; it goes through the Engine interface so a local Ollama server
// and a hosted OpenAI-compatible API (Groq) are interchangeable.
package engine

import (
	"context"
	"fmt"

	"docspace/internal/config"
)

// Message is a chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Engine is a chat + embedding backend.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's
	// response text.
	Chat(ctx context.Context, model string, messages []Message) (string, error)

	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}

// NewChatEngine builds the chat engine selected by cfg.LLM.Provider.
func NewChatEngine(cfg config.Config) (Engine, error) {
	switch cfg.LLM.Provider {
	case "groq", "openai":
		return NewOpenAIEngine(cfg.LLM.APIKey, cfg.LLM.BaseURL), nil
	case "ollama":
		return NewOllamaEngine(cfg.Ollama.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want groq, openai, or ollama)", cfg.LLM.Provider)
	}
}
