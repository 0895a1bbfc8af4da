package archive

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"
)

// setupTestStore creates a fresh on-disk database and a Store whose clock
// advances one second per recorded render.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	// Running it twice must be harmless.
	if err = SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema failed: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	out := []byte("<h1>Ada</h1>")
	rec, err := s.Record(ctx, "cs", "cv.html", "html", out)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if rec.ID == 0 {
		t.Error("Record() should assign an id")
	}
	if rec.Digest != Digest(out) || rec.Size != len(out) {
		t.Errorf("unexpected digest/size: %s %d", rec.Digest, rec.Size)
	}

	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	if _, err = s.Get(ctx, rec.ID+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Latest(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, body := range []string{"v1", "v2"} {
		if _, err := s.Record(ctx, "ml", "cv.html", "pdf", []byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Record(ctx, "cs", "cv.html", "pdf", []byte("other")); err != nil {
		t.Fatal(err)
	}

	latest, err := s.Latest(ctx, "ml", "cv.html", "pdf")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if string(latest.Output) != "v2" {
		t.Errorf("Latest() output = %q, want v2", latest.Output)
	}

	if _, err = s.Latest(ctx, "ml", "cv.html", "html"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListAndPrune(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, audience := range []string{"", "cs", "ml", "cs,ml"} {
		if _, err := s.Record(ctx, audience, "cv.html", "html", nil); err != nil {
			t.Fatalf("Record(%q) error = %v", audience, err)
		}
	}

	list, err := s.List(ctx, 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var audiences []string
	for _, r := range list {
		audiences = append(audiences, r.Audience)
		if r.Output != nil {
			t.Error("List() must not load outputs")
		}
	}
	if diff := cmp.Diff([]string{"cs,ml", "ml", "cs"}, audiences); diff != "" {
		t.Errorf("List() order mismatch (-want +got):\n%s", diff)
	}

	removed, err := s.Prune(ctx, 1)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("Prune() removed %d, want 3", removed)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count() = %d after prune, want 1", n)
	}

	if _, err = s.Prune(ctx, -1); err == nil {
		t.Error("Prune() with negative keep should fail")
	}
}

func TestDigest(t *testing.T) {
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Digest(nil); got != emptySHA {
		t.Errorf("Digest(nil) = %s", got)
	}
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Error("different outputs must not share a digest")
	}
}
