// Package pipeline turns a user utterance into a grounded answer: rewrite
// the question against recent history, retrieve matching chunks from the
// active space's index, and synthesize a cited response.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docspace/internal/engine"
	"docspace/internal/retrieval"
)

const rewriteTimeout = 3 * time.Second

// AnswerError wraps any collaborator failure inside a chat turn so callers
// can report the turn as failed without inspecting the stage.
type AnswerError struct {
	Stage string
	Err   error
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("answer generation failed during %s: %v", e.Stage, e.Err)
}

func (e *AnswerError) Unwrap() error { return e.Err }

// Answerer runs the retrieval-augmented answering flow against one space.
type Answerer struct {
	chat  engine.Engine
	model string
	topK  int
	log   *slog.Logger
}

// NewAnswerer creates an Answerer using the given chat engine and model.
func NewAnswerer(chat engine.Engine, model string, topK int, log *slog.Logger) *Answerer {
	if log == nil {
		log = slog.Default()
	}
	if topK <= 0 {
		topK = 4
	}
	return &Answerer{chat: chat, model: model, topK: topK, log: log}
}

// Answer produces a response for query using the space's retriever, its
// primary category, and the rolling window of recent user utterances.
func (a *Answerer) Answer(ctx context.Context, retr *retrieval.Retriever, category string, history []string, query string) (string, error) {
	rewritten := a.rewriteQuery(ctx, history, query)

	chunks, err := retr.Retrieve(ctx, rewritten, a.topK)
	if err != nil {
		return "", &AnswerError{Stage: "retrieval", Err: err}
	}

	var sb strings.Builder
	sb.WriteString(instructionFor(category))
	sb.WriteString("\n\n")
	sb.WriteString(synthesisRules)
	sb.WriteString("\n\nDocument context:\n")
	sb.WriteString(contextBlock(chunks))
	if len(history) > 0 {
		sb.WriteString("\n\nRecent questions from the user:\n")
		for _, h := range history {
			sb.WriteString("- " + h + "\n")
		}
	}

	answer, err := a.chat.Chat(ctx, a.model, []engine.Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: query},
	})
	if err != nil {
		return "", &AnswerError{Stage: "generation", Err: err}
	}
	return strings.TrimSpace(answer), nil
}

// rewriteQuery resolves pronouns and follow-up references using the memory
// window so retrieval sees a standalone question. Any failure falls back to
// the raw query; answering must not block on the rewrite.
func (a *Answerer) rewriteQuery(ctx context.Context, history []string, query string) string {
	if len(history) == 0 {
		return query
	}

	ctx, cancel := context.WithTimeout(ctx, rewriteTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("Chat history:\n")
	for _, h := range history {
		sb.WriteString("- " + h + "\n")
	}
	sb.WriteString("\nQuestion: " + query)

	rewritten, err := a.chat.Chat(ctx, a.model, []engine.Message{
		{Role: "system", Content: rewriteInstruction},
		{Role: "user", Content: sb.String()},
	})
	if err != nil {
		a.log.Warn("query rewrite failed, using raw query", "error", err)
		return query
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return query
	}
	return rewritten
}
