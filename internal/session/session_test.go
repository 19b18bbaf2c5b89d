package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docspace/internal/category"
	"docspace/internal/document"
	"docspace/internal/engine"
	"docspace/internal/pipeline"
	"docspace/internal/registry"
	"docspace/internal/retrieval"
	"docspace/internal/store"
)

// cannedEngine embeds everything to the same vector and answers every chat
// call with the same reply.
type cannedEngine struct {
	reply   string
	chatErr error
}

func (c *cannedEngine) Chat(ctx context.Context, model string, messages []engine.Message) (string, error) {
	if c.chatErr != nil {
		return "", c.chatErr
	}
	return c.reply, nil
}

func (c *cannedEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (c *cannedEngine) IsRunning(ctx context.Context) bool { return true }

func newTestSession(t *testing.T, eng engine.Engine) (*Session, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	emb := retrieval.NewEmbedder(eng, "test-embed")
	reg := registry.New(st, emb, category.NewKeywordClassifier(), 1000, 200, log,
		registry.WithLoader(func(data []byte) ([]document.Page, error) {
			return []document.Page{{Text: string(data), Number: 1}}, nil
		}))
	ans := pipeline.NewAnswerer(eng, "test-model", 4, log)
	return New(st, reg, ans, emb, 4, log), st
}

func interviewDoc(text string) []registry.Document {
	return []registry.Document{{Name: "interview_prep.pdf", Data: []byte(text)}}
}

func TestAuthenticate_Idempotent(t *testing.T) {
	s, st := newTestSession(t, &cannedEngine{reply: "hi"})

	if err := s.Authenticate("Alice", "alice@x.com"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(st.Dir(), "users.json"))
	if err != nil {
		t.Fatalf("reading users.json: %v", err)
	}

	if err := s.Authenticate("Alice", "alice@x.com"); err != nil {
		t.Fatalf("second Authenticate: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(st.Dir(), "users.json"))
	if err != nil {
		t.Fatalf("reading users.json: %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("resubmitting identity changed users.json:\n%s\nvs\n%s", first, second)
	}
}

func TestAuthenticate_EmptyIdentity(t *testing.T) {
	s, _ := newTestSession(t, &cannedEngine{})

	if err := s.Authenticate("", "alice@x.com"); !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("err = %v, want ErrEmptyIdentity", err)
	}
	if err := s.Authenticate("Alice", "  "); !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("err = %v, want ErrEmptyIdentity", err)
	}
	if s.Authenticated() {
		t.Error("session authenticated after rejected identity")
	}
}

func TestChat_RequiresAuthAndSpace(t *testing.T) {
	s, _ := newTestSession(t, &cannedEngine{reply: "hi"})
	ctx := context.Background()

	if _, err := s.Chat(ctx, "hello"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}

	if err := s.Authenticate("Alice", "alice@x.com"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := s.Chat(ctx, "hello"); !errors.Is(err, ErrNoActiveSpace) {
		t.Errorf("err = %v, want ErrNoActiveSpace", err)
	}
}

func TestChat_TranscriptMatchesDiskByteForByte(t *testing.T) {
	s, st := newTestSession(t, &cannedEngine{reply: "STAR is a storytelling format."})
	ctx := context.Background()

	if err := s.Authenticate("Alice", "alice@x.com"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := s.CreateSpace(ctx, "Prep", interviewDoc("the STAR method")); err != nil {
		t.Fatalf("CreateSpace: %v", err)
	}

	answer, err := s.Chat(ctx, "What is the STAR method?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer == "" {
		t.Fatal("empty answer")
	}

	turns := s.Transcript()
	if len(turns) != 2 {
		t.Fatalf("transcript has %d turns, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", turns[0].Role, turns[1].Role)
	}

	path := filepath.Join(st.Dir(), "transcripts")
	entries, err := os.ReadDir(path)
	if err != nil {
		t.Fatalf("reading transcripts dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("found %d transcript files, want 1", len(entries))
	}
	onDisk, err := os.ReadFile(filepath.Join(path, entries[0].Name()))
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	inMemory, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		t.Fatalf("marshalling transcript: %v", err)
	}
	if string(onDisk) != string(inMemory) {
		t.Errorf("persisted transcript differs from memory:\n%s\nvs\n%s", onDisk, inMemory)
	}
}

func TestChat_FailedTurnKeepsUserMessageOnly(t *testing.T) {
	eng := &cannedEngine{chatErr: errors.New("llm down")}
	s, _ := newTestSession(t, eng)
	ctx := context.Background()

	if err := s.Authenticate("Alice", "alice@x.com"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := s.CreateSpace(ctx, "Prep", interviewDoc("text")); err != nil {
		t.Fatalf("CreateSpace: %v", err)
	}

	_, err := s.Chat(ctx, "question")
	var ansErr *pipeline.AnswerError
	if !errors.As(err, &ansErr) {
		t.Fatalf("err = %v, want *pipeline.AnswerError", err)
	}

	turns := s.Transcript()
	if len(turns) != 1 {
		t.Fatalf("transcript has %d turns after failed generation, want 1", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Content != "question" {
		t.Errorf("surviving turn = %+v", turns[0])
	}
}

func TestSwitchSpace_RestoresTranscript(t *testing.T) {
	s, _ := newTestSession(t, &cannedEngine{reply: "answer"})
	ctx := context.Background()

	if err := s.Authenticate("Alice", "alice@x.com"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := s.CreateSpace(ctx, "A", interviewDoc("alpha")); err != nil {
		t.Fatalf("create A: %v", err)
	}
	if _, err := s.Chat(ctx, "q1"); err != nil {
		t.Fatalf("chat in A: %v", err)
	}
	sBefore := s.Transcript()
	if len(sBefore) != 2 {
		t.Fatalf("A transcript has %d turns, want 2", len(sBefore))
	}
	if _, err := s.Chat(ctx, "q2"); err != nil {
		t.Fatalf("second chat in A: %v", err)
	}

	if _, err := s.CreateSpace(ctx, "B", []registry.Document{{Name: "financial.pdf", Data: []byte("beta")}}); err != nil {
		t.Fatalf("create B: %v", err)
	}
	if len(s.Transcript()) != 0 {
		t.Fatalf("B transcript has %d turns, want 0", len(s.Transcript()))
	}

	if _, err := s.SwitchSpace("A"); err != nil {
		t.Fatalf("SwitchSpace: %v", err)
	}
	turns := s.Transcript()
	if len(turns) != 4 {
		t.Fatalf("restored A transcript has %d turns, want 4", len(turns))
	}
	if turns[0].Content != "q1" || turns[2].Content != "q2" {
		t.Errorf("restored transcript out of order: %+v", turns)
	}
}

func TestDeleteActiveSpace_ClearsState(t *testing.T) {
	s, _ := newTestSession(t, &cannedEngine{reply: "answer"})
	ctx := context.Background()

	if err := s.Authenticate("Alice", "alice@x.com"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := s.CreateSpace(ctx, "Prep", interviewDoc("text")); err != nil {
		t.Fatalf("CreateSpace: %v", err)
	}
	if _, err := s.Chat(ctx, "q"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if err := s.DeleteSpace("Prep"); err != nil {
		t.Fatalf("DeleteSpace: %v", err)
	}
	if s.ActiveSpace() != nil {
		t.Error("active space survived deletion")
	}
	if len(s.Transcript()) != 0 {
		t.Error("transcript survived deletion of active space")
	}
	if !s.Authenticated() {
		t.Error("session lost authentication on space delete")
	}
}

func TestWindow_NeverExceedsCapacity(t *testing.T) {
	w := NewWindow(4)
	for i := 0; i < 20; i++ {
		w.Add(strings.Repeat("q", i+1))
	}
	if w.Len() != 4 {
		t.Fatalf("window len = %d, want 4", w.Len())
	}
	items := w.Items()
	// Oldest surviving entry is the 17th utterance.
	if len(items[0]) != 17 || len(items[3]) != 20 {
		t.Errorf("window kept wrong entries: %v", items)
	}
}

func TestWindow_RebuiltOnSwitch(t *testing.T) {
	s, _ := newTestSession(t, &cannedEngine{reply: "answer"})
	ctx := context.Background()

	if err := s.Authenticate("Alice", "alice@x.com"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if _, err := s.CreateSpace(ctx, "A", interviewDoc("alpha")); err != nil {
		t.Fatalf("create A: %v", err)
	}
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5", "q6"} {
		if _, err := s.Chat(ctx, q); err != nil {
			t.Fatalf("chat %q: %v", q, err)
		}
	}

	if _, err := s.CreateSpace(ctx, "B", interviewDoc("beta")); err != nil {
		t.Fatalf("create B: %v", err)
	}
	if s.window.Len() != 0 {
		t.Errorf("window len = %d after create, want 0", s.window.Len())
	}

	if _, err := s.SwitchSpace("A"); err != nil {
		t.Fatalf("SwitchSpace: %v", err)
	}
	if s.window.Len() != 4 {
		t.Errorf("window len = %d after switch, want 4", s.window.Len())
	}
	items := s.window.Items()
	want := []string{"q3", "q4", "q5", "q6"}
	for i, w := range want {
		if items[i] != w {
			t.Errorf("window[%d] = %q, want %q", i, items[i], w)
		}
	}
}
