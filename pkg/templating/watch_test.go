package templating

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.html")
	if err := os.WriteFile(path, []byte("<p></p>"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if err = os.WriteFile(path, []byte("<p>changed</p>"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-w.Changed():
		if filepath.Base(name) != "cv.html" {
			t.Errorf("unexpected changed file %q", name)
		}
	case err = <-w.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatcher_MissingPath(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected an error watching a missing path")
	}
}

func TestWatcher_CloseTwice(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err = w.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err = w.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
