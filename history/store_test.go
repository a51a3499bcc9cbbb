// ABOUTME: Tests for the SQLite attempt log using temp-file databases.
// ABOUTME: Verifies recording, ordering, per-app filtering, and limits.
package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/greenroom/supervisor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	s.RecordAttempt(supervisor.Attempt{
		AppID:     "app1",
		Kind:      "component",
		Status:    supervisor.StatusBuildFailed,
		Duration:  1500 * time.Millisecond,
		ErrorTail: `Could not resolve "./Widget" from "src/App.jsx"`,
	})
	s.RecordAttempt(supervisor.Attempt{
		AppID:    "app1",
		Kind:     "component",
		Status:   supervisor.StatusOK,
		Healed:   1,
		Duration: 2 * time.Second,
		Port:     41000,
	})

	attempts, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("Recent() = %d attempts, want 2", len(attempts))
	}

	// Newest first.
	if attempts[0].Status != supervisor.StatusOK {
		t.Errorf("attempts[0].Status = %q, want newest (%q)", attempts[0].Status, supervisor.StatusOK)
	}
	if attempts[0].Healed != 1 {
		t.Errorf("Healed = %d, want 1", attempts[0].Healed)
	}
	if attempts[0].Duration != 2000 {
		t.Errorf("Duration = %dms, want 2000", attempts[0].Duration)
	}
	if attempts[1].ErrorTail == "" {
		t.Error("failed attempt lost its error tail")
	}
	if attempts[0].ID == attempts[1].ID {
		t.Error("attempt IDs are not unique")
	}
	if attempts[0].CreatedAt.IsZero() {
		t.Error("CreatedAt was not persisted")
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		s.RecordAttempt(supervisor.Attempt{AppID: "app1", Status: supervisor.StatusOK})
	}
	attempts, err := s.Recent(3)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(attempts) != 3 {
		t.Errorf("Recent(3) = %d attempts", len(attempts))
	}
}

func TestForApp(t *testing.T) {
	s := openTestStore(t)
	s.RecordAttempt(supervisor.Attempt{AppID: "left", Status: supervisor.StatusOK})
	s.RecordAttempt(supervisor.Attempt{AppID: "right", Status: supervisor.StatusBuildFailed})
	s.RecordAttempt(supervisor.Attempt{AppID: "left", Status: supervisor.StatusBuildFailed})

	attempts, err := s.ForApp("left", 10)
	if err != nil {
		t.Fatalf("ForApp() error: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("ForApp(left) = %d attempts, want 2", len(attempts))
	}
	for _, a := range attempts {
		if a.AppID != "left" {
			t.Errorf("ForApp(left) returned attempt for %q", a.AppID)
		}
	}
}
