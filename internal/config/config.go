package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Ollama  OllamaConfig
	Storage StorageConfig
	Chat    ChatConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

// LLMConfig selects the chat-completion backend. Provider "groq" (default)
// and "openai" use an OpenAI-compatible HTTP API; "ollama" uses the local
// Ollama server configured below.
type LLMConfig struct {
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

// ChatConfig holds the tunable constants of the answering pipeline.
// Chunk size and overlap are global, not per-file.
type ChatConfig struct {
	TopK          int
	ChunkSize     int
	ChunkOverlap  int
	HistoryWindow int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4200,
			MCPPort: 4201,
		},
		LLM: LLMConfig{
			Provider: "groq",
			BaseURL:  "https://api.groq.com/openai/v1",
			Model:    "llama-3.1-8b-instant",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Chat: ChatConfig{
			TopK:          4,
			ChunkSize:     1000,
			ChunkOverlap:  200,
			HistoryWindow: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend
// ($XDG_CONFIG_HOME/docspace/config.json), then applies environment
// overrides (DOCSPACE_*). A .env file in the working directory is loaded
// into the environment first, if present.
//
// The LLM API key is never stored in the config file; it must come from
// the environment (DOCSPACE_GROQ_API_KEY).
func Load() (Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.Provider != "ollama" && cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf(
			"missing required config: LLM API key for provider %q. Set it via environment variable DOCSPACE_GROQ_API_KEY or a .env file",
			cfg.LLM.Provider)
	}

	return cfg, nil
}
