package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"docspace/internal/api"
	"docspace/internal/category"
	"docspace/internal/config"
	"docspace/internal/engine"
	"docspace/internal/pipeline"
	"docspace/internal/registry"
	"docspace/internal/retrieval"
	"docspace/internal/session"
	"docspace/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the docspace server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running docspace server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show docspace system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "docspace.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// chatModel picks the model name matching the configured provider.
func chatModel(cfg config.Config) string {
	if cfg.LLM.Provider == "ollama" {
		return cfg.Ollama.ChatModel
	}
	return cfg.LLM.Model
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "docspace version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.GetAPIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Refuse a second instance. The health endpoint is the source of truth;
	// the PID file only names the culprit.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Embeddings always run locally; Ollama must be up with the embed model.
	ollamaEng := engine.NewOllamaEngine(cfg.Ollama.BaseURL)
	if !ollamaEng.IsRunning(ctx) {
		return fmt.Errorf("ollama is not reachable at %s; embeddings require a running Ollama server", cfg.Ollama.BaseURL)
	}
	if !ollamaEng.HasModel(ctx, cfg.Ollama.EmbedModel) {
		return fmt.Errorf("embed model %q not found; run: ollama pull %s", cfg.Ollama.EmbedModel, cfg.Ollama.EmbedModel)
	}

	chatEng, err := engine.NewChatEngine(cfg)
	if err != nil {
		return err
	}
	if cfg.LLM.Provider == "ollama" && !ollamaEng.HasModel(ctx, cfg.Ollama.ChatModel) {
		return fmt.Errorf("chat model %q not found; run: ollama pull %s", cfg.Ollama.ChatModel, cfg.Ollama.ChatModel)
	}
	if !chatEng.IsRunning(ctx) {
		slog.Warn("chat provider not reachable at startup, chat turns will fail until it is",
			"provider", cfg.LLM.Provider)
	}

	st, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	embedder := retrieval.NewEmbedder(ollamaEng, cfg.Ollama.EmbedModel)
	reg := registry.New(st, embedder, category.NewKeywordClassifier(),
		cfg.Chat.ChunkSize, cfg.Chat.ChunkOverlap, slog.Default())
	ans := pipeline.NewAnswerer(chatEng, chatModel(cfg), cfg.Chat.TopK, slog.Default())
	sess := session.New(st, reg, ans, embedder, cfg.Chat.HistoryWindow, slog.Default())

	handler := api.NewHandler(api.Deps{Session: sess, Store: st, Token: apiToken})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over SSE on its own port.
	mcpSrv := api.NewMCPServer(api.MCPDeps{Session: sess, Store: st})
	sseSrv := mcpserver.NewSSEServer(mcpSrv)
	mcpAddr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort)
	go func() {
		slog.Info("MCP server listening", "addr", mcpAddr)
		if err := sseSrv.Start(mcpAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("MCP server error", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "docspace listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sseSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("MCP server shutdown", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("docspace is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop docspace (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to docspace (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printWarning("Ollama not running at %s; embeddings and indexing will fail", cfg.Ollama.BaseURL)
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Provider", "%s", cfg.LLM.Provider)
	printStatus("Chat model", "%s", chatModel(cfg))
	printStatus("Embed model", "%s", cfg.Ollama.EmbedModel)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
