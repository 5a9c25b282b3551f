package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateVersion = 1

// snapshot is the on-disk envelope around the document.
type snapshot struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	State   *Document `json:"state"`
}

// Store owns the persisted document. All mutations go through Mutate, which
// marks the store dirty; FlushIfDirty is the only durable write path.
type Store struct {
	filePath string
	logger   *slog.Logger
	mu       sync.Mutex
	doc      *Document
	dirty    bool
	lastSave time.Time
}

// NewStore creates a store around an in-memory document without touching
// disk. Used by tests and by Load.
func NewStore(filePath string, doc *Document, logger *slog.Logger) *Store {
	return &Store{filePath: filePath, doc: doc, logger: logger}
}

// Load reads the document from disk. A missing file yields a fresh document
// in the given mode; a malformed file or a version mismatch is an error, the
// caller treats it as fatal rather than trade on wrong state.
func Load(filePath, defaultMode string, logger *slog.Logger) (*Store, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("[STATE] No existing state file, starting fresh", "path", filePath)
			return NewStore(filePath, NewDocument(defaultMode), logger), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", filePath, err)
	}
	if snap.Version != stateVersion {
		return nil, fmt.Errorf("state file %s has version %d, expected %d", filePath, snap.Version, stateVersion)
	}
	if snap.State == nil {
		return nil, fmt.Errorf("state file %s has no state document", filePath)
	}

	logger.Info("[STATE] State loaded",
		"path", filePath,
		"mode", snap.State.Mode,
		"position_open", snap.State.PositionOpen,
		"saved_at", snap.SavedAt.Format(time.RFC3339),
	)
	return NewStore(filePath, snap.State, logger), nil
}

// Mutate applies fn to the document and marks the store dirty. It is the
// single mutation entry point; callers never hold a *Document across calls.
func (s *Store) Mutate(fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
	s.dirty = true
}

// View calls fn with read access to the document.
func (s *Store) View(fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.doc)
}

// Snapshot returns a deep copy of the document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.doc
}

// Dirty reports whether there are unsaved mutations.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// FlushIfDirty writes the document to disk if there are unsaved mutations.
func (s *Store) FlushIfDirty() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.saveLocked()
}

// ForceFlush writes the document regardless of the dirty flag.
func (s *Store) ForceFlush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	snap := snapshot{
		Version: stateVersion,
		SavedAt: time.Now(),
		State:   s.doc,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Write to temp file first, then rename (atomic on most filesystems)
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	s.lastSave = time.Now()
	s.dirty = false

	s.logger.Debug("[STATE] State saved", "path", s.filePath)
	return nil
}
