// Package store is the flat-file persistence layer: user records, per-space
// metadata, per-(session, space) chat transcripts, and vector-index
// directories. All writes are whole-file overwrites; concurrent writers to
// the same key race with last-write-wins semantics, which is accepted for a
// single-tenant-per-process deployment.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Turn is one chat exchange entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SpaceMeta is the persisted record of one space.
type SpaceMeta struct {
	Description     string            `json:"description"`
	IndexDir        string            `json:"index_dir"`
	FileCategories  map[string]string `json:"file_categories"`
	PrimaryCategory string            `json:"primary_category"`
	CreatedAt       time.Time         `json:"created_at"`
}

// UserRecord is the persisted record of one user.
type UserRecord struct {
	Name   string               `json:"name"`
	Spaces map[string]SpaceMeta `json:"spaces"`
}

// Store provides durable JSON persistence rooted at a data directory.
type Store struct {
	dir string
}

// Open prepares the data directory layout and returns a Store.
func Open(dataDir string) (*Store, error) {
	for _, sub := range []string{"", "spaces", "transcripts", "indexes"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return &Store{dir: dataDir}, nil
}

// Dir returns the root data directory.
func (s *Store) Dir() string { return s.dir }

// IndexDir returns the vector-index directory path allocated for a space.
func (s *Store) IndexDir(spaceID string) string {
	return filepath.Join(s.dir, "indexes", slug(spaceID))
}

func (s *Store) usersPath() string {
	return filepath.Join(s.dir, "users.json")
}

func (s *Store) spacePath(spaceID string) string {
	return filepath.Join(s.dir, "spaces", slug(spaceID)+".json")
}

func (s *Store) transcriptPath(sessionID, spaceID string) string {
	return filepath.Join(s.dir, "transcripts", slug(sessionID)+"__"+slug(spaceID)+".json")
}

// SaveUserRecord merges the given spaces into the user's existing space
// mapping and overwrites the full users file. Existing entries are never
// removed as a side effect; saving the same input twice is idempotent.
func (s *Store) SaveUserRecord(email, name string, spaces map[string]SpaceMeta) error {
	users, err := s.loadUsers()
	if err != nil {
		return err
	}

	rec, ok := users[email]
	if !ok {
		rec = UserRecord{Spaces: make(map[string]SpaceMeta)}
	}
	if rec.Spaces == nil {
		rec.Spaces = make(map[string]SpaceMeta)
	}
	rec.Name = name
	for id, meta := range spaces {
		rec.Spaces[id] = meta
	}
	users[email] = rec

	return writeJSON(s.usersPath(), users)
}

// RemoveUserSpace drops one space from the user's record and rewrites the
// users file. Unknown users or spaces are a no-op.
func (s *Store) RemoveUserSpace(email, spaceID string) error {
	users, err := s.loadUsers()
	if err != nil {
		return err
	}
	rec, ok := users[email]
	if !ok {
		return nil
	}
	delete(rec.Spaces, spaceID)
	users[email] = rec
	return writeJSON(s.usersPath(), users)
}

// LoadUserRecord returns the stored record for the given email, or a zero
// record (with an initialized space map) when none exists.
func (s *Store) LoadUserRecord(email string) (UserRecord, error) {
	users, err := s.loadUsers()
	if err != nil {
		return UserRecord{}, err
	}
	rec, ok := users[email]
	if !ok {
		return UserRecord{Spaces: make(map[string]SpaceMeta)}, nil
	}
	if rec.Spaces == nil {
		rec.Spaces = make(map[string]SpaceMeta)
	}
	return rec, nil
}

func (s *Store) loadUsers() (map[string]UserRecord, error) {
	users := make(map[string]UserRecord)
	if err := readJSON(s.usersPath(), &users); err != nil {
		return nil, fmt.Errorf("loading user records: %w", err)
	}
	return users, nil
}

// SaveSpaceMeta overwrites the metadata file for one space.
func (s *Store) SaveSpaceMeta(spaceID string, meta SpaceMeta) error {
	return writeJSON(s.spacePath(spaceID), meta)
}

// LoadSpaceMeta returns the stored metadata for a space, or a zero record
// when none exists.
func (s *Store) LoadSpaceMeta(spaceID string) (SpaceMeta, error) {
	var meta SpaceMeta
	if err := readJSON(s.spacePath(spaceID), &meta); err != nil {
		return SpaceMeta{}, fmt.Errorf("loading space %q: %w", spaceID, err)
	}
	return meta, nil
}

// DeleteSpaceMeta removes the metadata file for a space. Missing files are
// not an error.
func (s *Store) DeleteSpaceMeta(spaceID string) error {
	err := os.Remove(s.spacePath(spaceID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting space metadata %q: %w", spaceID, err)
	}
	return nil
}

// SaveTranscript overwrites the transcript file for a (session, space) pair.
func (s *Store) SaveTranscript(sessionID, spaceID string, turns []Turn) error {
	if turns == nil {
		turns = []Turn{}
	}
	return writeJSON(s.transcriptPath(sessionID, spaceID), turns)
}

// LoadTranscript returns the stored turns for a (session, space) pair, or an
// empty list when none exist.
func (s *Store) LoadTranscript(sessionID, spaceID string) ([]Turn, error) {
	turns := []Turn{}
	if err := readJSON(s.transcriptPath(sessionID, spaceID), &turns); err != nil {
		return nil, fmt.Errorf("loading transcript: %w", err)
	}
	return turns, nil
}

// DeleteTranscript removes the transcript file for a (session, space) pair.
// Missing files are not an error.
func (s *Store) DeleteTranscript(sessionID, spaceID string) error {
	err := os.Remove(s.transcriptPath(sessionID, spaceID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting transcript: %w", err)
	}
	return nil
}

// indexDirRetryDelay is how long DeleteIndexDir waits before its single retry.
// Removal can fail transiently when another process still holds files open.
var indexDirRetryDelay = 500 * time.Millisecond

// removeIndexTree is swappable so tests can inject removal failures.
var removeIndexTree = os.RemoveAll

// DeleteIndexDir recursively removes a vector-index directory. A failed
// removal is retried once after a short delay; a second failure is surfaced,
// never swallowed.
func (s *Store) DeleteIndexDir(path string) error {
	if err := removeIndexTree(path); err == nil {
		return nil
	}
	time.Sleep(indexDirRetryDelay)
	if err := removeIndexTree(path); err != nil {
		return fmt.Errorf("removing index directory %s (after retry): %w", path, err)
	}
	return nil
}

// readJSON decodes a JSON file into v. A missing file leaves v untouched and
// returns nil.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// slug converts an arbitrary identifier (space descriptions are user-chosen)
// into a safe file name component. A short hash of the raw id keeps the
// mapping injective: sanitizing alone would collide ids like "Prep 1" and
// "prep_1", and colliding ids would share an index directory.
func slug(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		b.WriteRune('_')
	}
	sum := sha256.Sum256([]byte(id))
	return b.String() + "-" + hex.EncodeToString(sum[:4])
}
