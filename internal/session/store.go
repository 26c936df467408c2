package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eaeptdev/eaept/internal/log"
)

// Store persists the session state snapshot to a single JSON file.
type Store struct {
	path string
}

// NewStore creates a store backed by the given snapshot path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted snapshot. A missing or unreadable snapshot yields
// a freshly-initialized default state; corruption is logged, never fatal, and
// the corrupt file is left in place for inspection.
func (s *Store) Load() *State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("could not read session snapshot, starting fresh",
				"path", s.path, "error", err)
		}
		return NewState()
	}

	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		log.Warn("session snapshot is corrupt, starting fresh",
			"path", s.path, "error", err)
		return NewState()
	}
	return state
}

// Save writes the full snapshot atomically: the state is written to a
// temporary file in the same directory and then renamed over the snapshot, so
// a concurrent reader never observes a partial write.
func (s *Store) Save(state *State) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".eaept-state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		log.CloseError("temp snapshot", tmp.Close())
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		log.CloseError("temp snapshot", tmp.Close())
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Clear removes the snapshot, returning the session to the initial state on
// the next Load. A missing snapshot is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	return nil
}
