package config

import (
	"testing"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	data map[string]any
}

func (m *memBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	s, isStr := v.(string)
	if !isStr {
		return "", false, nil
	}
	return s, true, nil
}

func (m *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	i, isInt := v.(int)
	if !isInt {
		return 0, false, nil
	}
	return i, true, nil
}

func (m *memBackend) SetString(key, val string) error  { m.data[key] = val; return nil }
func (m *memBackend) SetInt(key string, val int) error { m.data[key] = val; return nil }
func (m *memBackend) Delete(key string) error          { delete(m.data, key); return nil }

func TestDefaults(t *testing.T) {
	t.Setenv("DOCSPACE_GROQ_API_KEY", "test-key")

	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4200 {
		t.Errorf("Server.Port = %d, want 4200", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "groq" {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, "groq")
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q, want %q", cfg.Ollama.EmbedModel, "nomic-embed-text")
	}
	if cfg.Chat.ChunkSize != 1000 || cfg.Chat.ChunkOverlap != 200 {
		t.Errorf("chunking = (%d, %d), want (1000, 200)", cfg.Chat.ChunkSize, cfg.Chat.ChunkOverlap)
	}
	if cfg.Chat.HistoryWindow != 4 {
		t.Errorf("Chat.HistoryWindow = %d, want 4", cfg.Chat.HistoryWindow)
	}
}

func TestBackendValuesApplied(t *testing.T) {
	t.Setenv("DOCSPACE_GROQ_API_KEY", "test-key")

	b := &memBackend{data: map[string]any{
		"server.port": 9000,
		"llm.model":   "llama-3.3-70b-versatile",
		"chat.top_k":  8,
	}}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.LLM.Model != "llama-3.3-70b-versatile" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Chat.TopK != 8 {
		t.Errorf("Chat.TopK = %d, want 8", cfg.Chat.TopK)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	t.Setenv("DOCSPACE_GROQ_API_KEY", "test-key")
	t.Setenv("DOCSPACE_LLM_MODEL", "env-model")

	b := &memBackend{data: map[string]any{"llm.model": "file-model"}}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Model != "env-model" {
		t.Errorf("LLM.Model = %q, want %q", cfg.LLM.Model, "env-model")
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("DOCSPACE_GROQ_API_KEY", "")

	_, err := loadWith(&memBackend{data: map[string]any{}})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
}

func TestOllamaProviderNeedsNoKey(t *testing.T) {
	t.Setenv("DOCSPACE_GROQ_API_KEY", "")
	t.Setenv("DOCSPACE_LLM_PROVIDER", "ollama")

	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, "ollama")
	}
}

func TestSecretNotListedInShowAll(t *testing.T) {
	t.Setenv("DOCSPACE_GROQ_API_KEY", "super-secret")

	cfg, err := loadWith(&memBackend{data: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, k := range ShowAll(cfg) {
		if k.Key == "llm.api_key" {
			t.Errorf("secret key %q exposed by ShowAll", k.Key)
		}
	}
}
