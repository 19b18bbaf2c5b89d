// Package registry is the space catalog for one authenticated user. All
// create, switch, and delete operations on spaces go through it; it keeps
// the in-memory catalog and the on-disk records in step.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docspace/internal/category"
	"docspace/internal/document"
	"docspace/internal/retrieval"
	"docspace/internal/store"
)

var (
	ErrNoSession        = errors.New("no active session")
	ErrEmptyDescription = errors.New("space description must not be empty")
	ErrDuplicateSpace   = errors.New("space with this description already exists")
	ErrNoValidFiles     = errors.New("no uploaded file matches a known category")
	ErrSpaceNotFound    = errors.New("space not found")
)

// Document is one uploaded file: its name drives classification, its bytes
// are parsed as PDF.
type Document struct {
	Name string
	Data []byte
}

// Space is one catalog entry. Index is the open handle to the space's vector
// index; it is nil until the space has been created or switched into.
type Space struct {
	Description     string
	IndexDir        string
	FileCategories  map[string]string
	PrimaryCategory string
	CreatedAt       time.Time
	Index           retrieval.VectorIndex
}

// Registry mediates space lifecycle for the bound user.
type Registry struct {
	store      *store.Store
	embedder   *retrieval.Embedder
	classifier category.Classifier
	log        *slog.Logger

	chunkSize    int
	chunkOverlap int

	// loadPDF is swappable so tests can feed plain text documents.
	loadPDF func(data []byte) ([]document.Page, error)

	sessionID string
	email     string
	name      string

	spaces map[string]*Space
	active string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader replaces the PDF loader, letting callers feed other document
// formats or tests feed plain text.
func WithLoader(fn func(data []byte) ([]document.Page, error)) Option {
	return func(r *Registry) { r.loadPDF = fn }
}

// New creates an unbound Registry. Bind must be called before any space
// operation.
func New(st *store.Store, embedder *retrieval.Embedder, classifier category.Classifier, chunkSize, chunkOverlap int, log *slog.Logger, opts ...Option) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		store:        st,
		embedder:     embedder,
		classifier:   classifier,
		log:          log,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		loadPDF:      document.LoadPDF,
		spaces:       make(map[string]*Space),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind attaches the registry to an authenticated user and loads their space
// catalog from disk. Index handles are opened lazily on switch.
func (r *Registry) Bind(sessionID, email, name string) error {
	rec, err := r.store.LoadUserRecord(email)
	if err != nil {
		return fmt.Errorf("loading user record: %w", err)
	}

	r.sessionID = sessionID
	r.email = email
	r.name = name
	r.active = ""
	r.spaces = make(map[string]*Space, len(rec.Spaces))
	for desc, meta := range rec.Spaces {
		r.spaces[desc] = spaceFromMeta(desc, meta)
	}
	return nil
}

func spaceFromMeta(desc string, meta store.SpaceMeta) *Space {
	return &Space{
		Description:     desc,
		IndexDir:        meta.IndexDir,
		FileCategories:  meta.FileCategories,
		PrimaryCategory: meta.PrimaryCategory,
		CreatedAt:       meta.CreatedAt,
	}
}

func (r *Registry) metaOf(sp *Space) store.SpaceMeta {
	return store.SpaceMeta{
		Description:     sp.Description,
		IndexDir:        sp.IndexDir,
		FileCategories:  sp.FileCategories,
		PrimaryCategory: sp.PrimaryCategory,
		CreatedAt:       sp.CreatedAt,
	}
}

// spaceID namespaces the user-chosen description by email, since
// descriptions are only unique per user.
func (r *Registry) spaceID(desc string) string {
	return r.email + "__" + desc
}

// Active returns the currently active space, or nil when none is active.
func (r *Registry) Active() *Space {
	if r.active == "" {
		return nil
	}
	return r.spaces[r.active]
}

// Spaces returns the catalog entries for the bound user.
func (r *Registry) Spaces() []*Space {
	out := make([]*Space, 0, len(r.spaces))
	for _, sp := range r.spaces {
		out = append(out, sp)
	}
	return out
}

// CreateSpace builds a new space from uploaded documents: classifies each
// file by name, indexes every matched file, and activates the space. The
// whole operation fails fast: any indexing error aborts creation and leaves
// no partial space behind.
func (r *Registry) CreateSpace(ctx context.Context, description string, docs []Document) (*Space, error) {
	if r.email == "" {
		return nil, ErrNoSession
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}
	if _, exists := r.spaces[description]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateSpace, description)
	}

	// Classify before touching disk so a no-valid-files request mutates
	// nothing.
	fileCats := make(map[string]string)
	var matched []Document
	primary := ""
	for _, doc := range docs {
		cat, ok := r.classifier.Classify(doc.Name)
		if !ok {
			r.log.Warn("skipping file with unrecognized category", "file", doc.Name)
			continue
		}
		fileCats[doc.Name] = string(cat)
		if primary == "" {
			primary = string(cat)
		}
		matched = append(matched, doc)
	}
	if len(matched) == 0 {
		return nil, ErrNoValidFiles
	}

	spaceID := r.spaceID(description)
	indexDir := r.store.IndexDir(spaceID)

	// Evict any stale directory from an earlier deleted space; a space is
	// never resurrected from leftovers.
	if err := r.store.DeleteIndexDir(indexDir); err != nil {
		return nil, fmt.Errorf("evicting stale index directory: %w", err)
	}

	idx, err := retrieval.OpenIndex(indexDir)
	if err != nil {
		return nil, err
	}

	for _, doc := range matched {
		if err := r.indexDocument(ctx, idx, doc, fileCats[doc.Name]); err != nil {
			idx.Close()
			if cleanupErr := r.store.DeleteIndexDir(indexDir); cleanupErr != nil {
				r.log.Warn("cleanup after failed indexing", "dir", indexDir, "error", cleanupErr)
			}
			return nil, fmt.Errorf("indexing %s: %w", doc.Name, err)
		}
	}

	sp := &Space{
		Description:     description,
		IndexDir:        indexDir,
		FileCategories:  fileCats,
		PrimaryCategory: primary,
		CreatedAt:       time.Now().UTC(),
	}

	if err := r.store.SaveSpaceMeta(spaceID, r.metaOf(sp)); err != nil {
		idx.Close()
		return nil, err
	}
	if err := r.store.SaveUserRecord(r.email, r.name, map[string]store.SpaceMeta{description: r.metaOf(sp)}); err != nil {
		idx.Close()
		return nil, err
	}
	if err := r.store.SaveTranscript(r.sessionID, spaceID, nil); err != nil {
		idx.Close()
		return nil, err
	}

	sp.Index = idx
	r.spaces[description] = sp
	r.active = description
	r.log.Info("space created", "space", description, "files", len(matched), "category", primary)
	return sp, nil
}

// indexDocument extracts, chunks, embeds, and stores one uploaded file.
func (r *Registry) indexDocument(ctx context.Context, idx retrieval.VectorIndex, doc Document, cat string) error {
	pages, err := r.loadPDF(doc.Data)
	if err != nil {
		return err
	}
	chunks := document.Split(pages, r.chunkSize, r.chunkOverlap)
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]retrieval.Record, len(chunks))
	for i, c := range chunks {
		records[i] = retrieval.Record{
			ID:        uuid.NewString(),
			Source:    doc.Name,
			Category:  cat,
			Text:      c.Text,
			Page:      c.Page,
			Embedding: vecs[i],
		}
	}
	return idx.Add(ctx, records)
}

// SwitchSpace activates an existing space, opens its index if needed, and
// returns the space together with its persisted transcript. Metadata is
// re-persisted best-effort to refresh the record.
func (r *Registry) SwitchSpace(name string) (*Space, []store.Turn, error) {
	if r.email == "" {
		return nil, nil, ErrNoSession
	}
	sp, ok := r.spaces[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrSpaceNotFound, name)
	}

	if sp.Index == nil {
		idx, err := retrieval.OpenIndex(sp.IndexDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening index for %q: %w", name, err)
		}
		sp.Index = idx
	}

	spaceID := r.spaceID(name)
	turns, err := r.store.LoadTranscript(r.sessionID, spaceID)
	if err != nil {
		return nil, nil, err
	}

	if err := r.store.SaveSpaceMeta(spaceID, r.metaOf(sp)); err != nil {
		r.log.Warn("re-persisting space metadata", "space", name, "error", err)
	}

	r.active = name
	return sp, turns, nil
}

// DeleteSpace tears a space down: index directory first, then metadata, the
// user record entry, and the session transcript. A directory removal failure
// aborts the whole deletion so metadata never outlives a half-removed index.
func (r *Registry) DeleteSpace(name string) error {
	if r.email == "" {
		return ErrNoSession
	}
	sp, ok := r.spaces[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSpaceNotFound, name)
	}

	if sp.Index != nil {
		if err := sp.Index.Close(); err != nil {
			r.log.Warn("closing index before delete", "space", name, "error", err)
		}
		sp.Index = nil
	}

	if err := r.store.DeleteIndexDir(sp.IndexDir); err != nil {
		return err
	}

	spaceID := r.spaceID(name)
	if err := r.store.DeleteSpaceMeta(spaceID); err != nil {
		return err
	}
	if err := r.store.RemoveUserSpace(r.email, name); err != nil {
		return err
	}
	if err := r.store.DeleteTranscript(r.sessionID, spaceID); err != nil {
		r.log.Warn("removing transcript", "space", name, "error", err)
	}

	delete(r.spaces, name)
	if r.active == name {
		r.active = ""
	}
	r.log.Info("space deleted", "space", name)
	return nil
}

// SaveTranscript persists the session transcript for the given space.
func (r *Registry) SaveTranscript(name string, turns []store.Turn) error {
	return r.store.SaveTranscript(r.sessionID, r.spaceID(name), turns)
}

// UserSpaces is a read-only projection of a user's spaces straight from
// disk. It needs no bound session.
func UserSpaces(st *store.Store, email string) (map[string]store.SpaceMeta, error) {
	rec, err := st.LoadUserRecord(email)
	if err != nil {
		return nil, err
	}
	return rec.Spaces, nil
}
