package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func makeSession(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(root, "sessions", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "events.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(dir, old, old); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSweepPrunesOnlyExpired(t *testing.T) {
	root := t.TempDir()
	stale := makeSession(t, root, "stale", 40*24*time.Hour)
	fresh := makeSession(t, root, "fresh", 2*24*time.Hour)

	pruned, err := New(root, 30).Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned session, got %d", pruned)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale session should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh session should survive: %v", err)
	}
}

func TestSweepMissingDirIsNotAnError(t *testing.T) {
	pruned, err := New(t.TempDir(), 30).Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 0 {
		t.Errorf("expected 0 pruned, got %d", pruned)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	j := New(t.TempDir(), 30)
	if err := j.Start("not a schedule"); err == nil {
		t.Error("invalid schedule must be rejected")
	}
}

func TestStartAndStop(t *testing.T) {
	j := New(t.TempDir(), 30)
	if err := j.Start("@daily"); err != nil {
		t.Fatal(err)
	}
	j.Stop()
}
