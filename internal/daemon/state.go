package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// SyncState is the persisted progress of the history sync.
type SyncState struct {
	// Newest play already delivered; the next sync starts after it.
	LastPlayedAt time.Time `json:"last_played_at"`
	LastSyncAt   time.Time `json:"last_sync_at"`
	TotalSynced  int       `json:"total_synced"`
	LastError    string    `json:"last_error,omitempty"`
}

// State manages the sync state with file persistence
type State struct {
	mu       sync.RWMutex
	current  SyncState
	filePath string
}

// NewState creates a State backed by filePath and restores any
// previously saved progress.
func NewState(filePath string) (*State, error) {
	s := &State{filePath: filePath}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := s.restore(); err != nil {
		return nil, err
	}

	return s, nil
}

// Get returns a copy of the current state.
func (s *State) Get() SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Advance records a completed sync of n plays whose newest is newest.
// A zero newest keeps the cursor where it is.
func (s *State) Advance(newest time.Time, n int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if newest.After(s.current.LastPlayedAt) {
		s.current.LastPlayedAt = newest.UTC()
	}
	s.current.TotalSynced += n
	s.current.LastSyncAt = at.UTC()
	s.current.LastError = ""

	return s.persist()
}

// Fail records a sync that could not finish. The cursor stays put.
func (s *State) Fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.LastError = err.Error()
	return s.persist()
}

// persist writes the state atomically. Caller holds the lock.
func (s *State) persist() error {
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

func (s *State) restore() error {
	saved, err := ReadState(s.filePath)
	if err != nil {
		return err
	}
	s.current = saved
	return nil
}

// ReadState loads the state saved at filePath. A missing file is an
// empty state.
func ReadState(filePath string) (SyncState, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return SyncState{}, nil
	}
	if err != nil {
		return SyncState{}, fmt.Errorf("failed to read state file: %w", err)
	}

	var saved SyncState
	if err := json.Unmarshal(data, &saved); err != nil {
		return SyncState{}, fmt.Errorf("failed to parse state file %s: %w", filePath, err)
	}
	return saved, nil
}
