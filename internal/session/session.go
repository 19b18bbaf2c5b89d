// Package session holds the per-session tuple of user, active space,
// transcript, and memory window, and mediates between surface events and
// the registry and answering pipeline.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"docspace/internal/pipeline"
	"docspace/internal/registry"
	"docspace/internal/retrieval"
	"docspace/internal/store"
)

var (
	ErrNotAuthenticated = errors.New("submit name and email first")
	ErrEmptyIdentity    = errors.New("name and email must not be empty")
	ErrNoActiveSpace    = errors.New("no active space selected")
)

// Session processes one user's interactions sequentially. The mutex keeps a
// chat turn fully answered and persisted before the next event is accepted.
type Session struct {
	mu sync.Mutex

	store    *store.Store
	registry *registry.Registry
	answerer *pipeline.Answerer
	embedder *retrieval.Embedder
	log      *slog.Logger

	id         string
	email      string
	name       string
	transcript []store.Turn
	window     *Window
}

// New creates an unauthenticated session.
func New(st *store.Store, reg *registry.Registry, ans *pipeline.Answerer, emb *retrieval.Embedder, windowSize int, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		store:    st,
		registry: reg,
		answerer: ans,
		embedder: emb,
		log:      log,
		window:   NewWindow(windowSize),
	}
}

// Authenticate moves the session from unauthenticated to authenticated with
// no active space. Resubmitting the same identity is idempotent and creates
// no duplicate records.
func (s *Session) Authenticate(name, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return ErrEmptyIdentity
	}

	id := name + "_" + email
	if err := s.registry.Bind(id, email, name); err != nil {
		return err
	}
	if err := s.store.SaveUserRecord(email, name, nil); err != nil {
		return fmt.Errorf("saving user record: %w", err)
	}

	s.id = id
	s.email = email
	s.name = name
	s.transcript = nil
	s.window.Reset()
	s.log.Info("session authenticated", "user", email)
	return nil
}

// Authenticated reports whether an identity has been submitted.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id != ""
}

// User returns the authenticated name and email.
func (s *Session) User() (name, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name, s.email
}

// ID returns the session identifier, empty until authenticated.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// CreateSpace builds a new space from uploaded documents and activates it
// with an empty transcript.
func (s *Session) CreateSpace(ctx context.Context, description string, docs []registry.Document) (*registry.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		return nil, ErrNotAuthenticated
	}

	sp, err := s.registry.CreateSpace(ctx, description, docs)
	if err != nil {
		return nil, err
	}
	s.transcript = nil
	s.window.Reset()
	return sp, nil
}

// SwitchSpace activates an existing space and replaces the in-memory
// transcript with the persisted one. The memory window is rebuilt from the
// most recent user turns so follow-up questions keep working.
func (s *Session) SwitchSpace(name string) (*registry.Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		return nil, ErrNotAuthenticated
	}

	sp, turns, err := s.registry.SwitchSpace(name)
	if err != nil {
		return nil, err
	}

	s.transcript = turns
	s.window.Reset()
	for _, t := range turns {
		if t.Role == "user" {
			s.window.Add(t.Content)
		}
	}
	return sp, nil
}

// DeleteSpace removes a space. Deleting the active space drops the session
// back to authenticated-with-no-space and clears the transcript.
func (s *Session) DeleteSpace(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		return ErrNotAuthenticated
	}

	active := s.registry.Active()
	wasActive := active != nil && active.Description == name

	if err := s.registry.DeleteSpace(name); err != nil {
		return err
	}
	if wasActive {
		s.transcript = nil
		s.window.Reset()
	}
	return nil
}

// ActiveSpace returns the active space, or nil when none is selected.
func (s *Session) ActiveSpace() *registry.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Active()
}

// Spaces lists the authenticated user's spaces.
func (s *Session) Spaces() []*registry.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Spaces()
}

// Transcript returns a copy of the in-memory transcript for the active space.
func (s *Session) Transcript() []store.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Chat answers one user utterance against the active space. The user turn is
// persisted before generation, so a failed turn loses at most the assistant
// response and never corrupts the transcript.
func (s *Session) Chat(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		return "", ErrNotAuthenticated
	}
	sp := s.registry.Active()
	if sp == nil || sp.Index == nil {
		return "", ErrNoActiveSpace
	}

	history := s.window.Items()

	s.transcript = append(s.transcript, store.Turn{Role: "user", Content: query})
	if err := s.registry.SaveTranscript(sp.Description, s.transcript); err != nil {
		return "", fmt.Errorf("persisting transcript: %w", err)
	}
	s.window.Add(query)

	retr := retrieval.NewRetriever(s.embedder, sp.Index)
	answer, err := s.answerer.Answer(ctx, retr, sp.PrimaryCategory, history, query)
	if err != nil {
		s.log.Error("chat turn failed", "space", sp.Description, "error", err)
		return "", err
	}

	s.transcript = append(s.transcript, store.Turn{Role: "assistant", Content: answer})
	if err := s.registry.SaveTranscript(sp.Description, s.transcript); err != nil {
		return "", fmt.Errorf("persisting transcript: %w", err)
	}
	return answer, nil
}
