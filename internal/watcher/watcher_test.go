package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"srtfix/internal/batch"
	"srtfix/internal/history"
	"srtfix/internal/mapping"
	"srtfix/internal/repair"
	"srtfix/internal/testsupport"
)

func startWatcher(t *testing.T, inbox string) <-chan string {
	t.Helper()
	seen := make(chan string, 16)
	w, err := New(Options{Inbox: inbox, Settle: 20 * time.Millisecond, Extensions: []string{".srt"}},
		func(_ context.Context, path string) { seen <- path })
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	return seen
}

func waitFor(t *testing.T, seen <-chan string) string {
	t.Helper()
	select {
	case path := <-seen:
		return path
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher")
		return ""
	}
}

func TestWatcherHandlesExistingAndDroppedFiles(t *testing.T) {
	inbox := t.TempDir()
	existing := filepath.Join(inbox, "existing.srt")
	testsupport.WriteFile(t, existing, []byte("one"))

	seen := startWatcher(t, inbox)
	if got := waitFor(t, seen); got != existing {
		t.Fatalf("expected existing file first, got %q", got)
	}

	// Give fsnotify a moment to be fully registered before dropping.
	time.Sleep(50 * time.Millisecond)
	dropped := filepath.Join(inbox, "dropped.srt")
	testsupport.WriteFile(t, dropped, []byte("two"))
	if got := waitFor(t, seen); got != dropped {
		t.Fatalf("expected dropped file, got %q", got)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	inbox := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(inbox, "notes.txt"), []byte("x"))
	testsupport.WriteFile(t, filepath.Join(inbox, ".partial.srt"), []byte("x"))
	wanted := filepath.Join(inbox, "real.srt")
	testsupport.WriteFile(t, wanted, []byte("x"))

	seen := startWatcher(t, inbox)
	if got := waitFor(t, seen); got != wanted {
		t.Fatalf("expected only real.srt, got %q", got)
	}
	select {
	case extra := <-seen:
		t.Fatalf("unexpected extra file %q", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{}, func(context.Context, string) {}); err == nil {
		t.Fatal("expected error without inbox")
	}
	if _, err := New(Options{Inbox: t.TempDir()}, nil); err == nil {
		t.Fatal("expected error without handler")
	}
}

func newPipeline(t *testing.T, store *history.Store) *Pipeline {
	t.Helper()
	base := t.TempDir()
	engine := repair.New(mapping.FromEntries("test", mapping.Entry{Corrupted: "Ä±", Replacement: "ı"}))
	return &Pipeline{
		Runner:  &batch.Runner{Engine: engine, Suffix: "_tr"},
		Inbox:   filepath.Join(base, "inbox"),
		Outbox:  filepath.Join(base, "outbox"),
		History: store,
		Mapping: "test",
	}
}

func TestPipelineRepairsIntoOutbox(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	p := newPipeline(t, store)
	input := filepath.Join(p.Inbox, "movie.srt")
	testsupport.WriteFile(t, input, []byte("nasÄ±l"))

	p.Handle(context.Background(), input)

	if got := testsupport.ReadFile(t, filepath.Join(p.Outbox, "movie_tr.srt")); got != "nasıl" {
		t.Fatalf("unexpected output %q", got)
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Fatalf("expected input to leave the inbox, stat err=%v", err)
	}
	if got := testsupport.ReadFile(t, filepath.Join(p.Inbox, ".processed", "movie.srt")); got != "nasÄ±l" {
		t.Fatalf("unexpected archived original %q", got)
	}

	runs, err := store.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Origin != history.OriginWatch || runs[0].Repaired != 1 {
		t.Fatalf("unexpected runs %+v", runs)
	}
	files, err := store.Files(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 1 || files[0].OutputPath != filepath.Join(p.Outbox, "movie_tr.srt") {
		t.Fatalf("unexpected files %+v", files)
	}
}

func TestPipelineQuarantinesFailures(t *testing.T) {
	p := newPipeline(t, nil)
	input := filepath.Join(p.Inbox, "empty.srt")
	testsupport.WriteFile(t, input, nil)

	p.Handle(context.Background(), input)

	if _, err := os.Stat(filepath.Join(p.Outbox, "failed", "empty.srt")); err != nil {
		t.Fatalf("expected quarantined copy: %v", err)
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Fatalf("expected input removed from inbox, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(p.Outbox, "empty_tr.srt")); !os.IsNotExist(err) {
		t.Fatalf("expected no output for failed file, stat err=%v", err)
	}
}
