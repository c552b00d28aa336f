package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestState_PersistAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := NewState(path)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if st := s.Get(); !st.LastPlayedAt.IsZero() || st.TotalSynced != 0 {
		t.Fatalf("expected empty state, got %+v", st)
	}

	played := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	synced := played.Add(time.Hour)
	if err := s.Advance(played, 3, synced); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	restored, err := NewState(path)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	st := restored.Get()
	if !st.LastPlayedAt.Equal(played) || !st.LastSyncAt.Equal(synced) || st.TotalSynced != 3 {
		t.Errorf("unexpected restored state %+v", st)
	}
}

func TestState_AdvanceNeverMovesBack(t *testing.T) {
	s, err := NewState(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	later := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Advance(later, 1, later); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(later.Add(-time.Hour), 1, later); err != nil {
		t.Fatal(err)
	}
	if err := s.Advance(time.Time{}, 0, later); err != nil {
		t.Fatal(err)
	}

	st := s.Get()
	if !st.LastPlayedAt.Equal(later) || st.TotalSynced != 2 {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestState_FailThenAdvanceClearsError(t *testing.T) {
	s, err := NewState(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Fail(errors.New("rate limited")); err != nil {
		t.Fatal(err)
	}
	if got := s.Get().LastError; got != "rate limited" {
		t.Errorf("expected last error, got %q", got)
	}

	if err := s.Advance(time.Now(), 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	if got := s.Get().LastError; got != "" {
		t.Errorf("expected error cleared, got %q", got)
	}
}

func TestNewState_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewState(path); err == nil {
		t.Error("expected error for corrupt state file")
	}
}
