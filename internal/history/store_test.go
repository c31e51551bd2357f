package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"srtfix/internal/batch"
	"srtfix/internal/repair"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func TestRunRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	run, err := store.BeginRun(ctx, RunInfo{Origin: OriginCLI, Mapping: "/maps/tr.csv"})
	if err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	if len(run.ID) != 36 {
		t.Fatalf("expected uuid run id, got %q", run.ID)
	}

	if err := store.RecordFile(ctx, run.ID, FileRecord{
		Path: "/subs/a.srt", OutputPath: "/subs/a_tr.srt",
		Charset: "windows-1254", Confidence: 62, Method: "statistical", Replacements: 4,
	}); err != nil {
		t.Fatalf("RecordFile returned error: %v", err)
	}
	if err := store.RecordFile(ctx, run.ID, FileRecord{
		Path: "/subs/b.srt", Stage: "detect", Error: "encoding not detected",
	}); err != nil {
		t.Fatalf("RecordFile returned error: %v", err)
	}
	if err := store.FinishRun(ctx, run.ID, "/subs/subtitle.zip"); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}

	found, err := store.FindRun(ctx, run.ID[:8])
	if err != nil {
		t.Fatalf("FindRun returned error: %v", err)
	}
	if found.ID != run.ID || found.Origin != OriginCLI || found.Mapping != "/maps/tr.csv" {
		t.Fatalf("unexpected run: %+v", found)
	}
	if found.Repaired != 1 || found.Failed != 1 || found.Replacements != 4 {
		t.Fatalf("unexpected counters: %+v", found)
	}
	if found.FinishedAt == nil || found.ArchivePath != "/subs/subtitle.zip" {
		t.Fatalf("expected finished run with archive, got %+v", found)
	}

	files, err := store.Files(ctx, run.ID)
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Charset != "windows-1254" || files[0].Confidence != 62 || files[0].Failed() {
		t.Fatalf("unexpected first file: %+v", files[0])
	}
	if !files[1].Failed() || files[1].Stage != "detect" || files[1].OutputPath != "" {
		t.Fatalf("unexpected second file: %+v", files[1])
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, origin := range []Origin{OriginCLI, OriginWatch, OriginHTTP} {
		run, err := store.BeginRun(ctx, RunInfo{Origin: origin, Mapping: "builtin"})
		if err != nil {
			t.Fatalf("BeginRun returned error: %v", err)
		}
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("unexpected order: %+v", runs)
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected all runs, got %d", len(all))
	}
}

func TestRecordFileUnknownRun(t *testing.T) {
	store := openTestStore(t)
	err := store.RecordFile(context.Background(), "missing", FileRecord{Path: "x"})
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	if err := store.FinishRun(context.Background(), "missing", ""); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := store.FindRun(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRecordOutcomes(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	run, err := store.BeginRun(ctx, RunInfo{Origin: OriginWatch, Mapping: "builtin"})
	if err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}

	outcomes := []batch.Outcome{
		{
			Path: "/in/a.srt",
			Result: &repair.Result{
				Detection: repair.Detection{Charset: "utf-8", Confidence: 100, Method: repair.MethodUTF8},
				Hits:      []repair.Hit{{Corrupted: "Ã¼", Replacement: "ü", Count: 3}},
			},
		},
		{
			Path: "/in/b.srt",
			Err:  &repair.Error{Path: "/in/b.srt", Stage: repair.StageDecode, Err: errors.New("bad byte")},
		},
	}
	if err := store.RecordOutcomes(ctx, run.ID, outcomes, map[string]string{"/in/a.srt": "/out/a_tr.srt"}); err != nil {
		t.Fatalf("RecordOutcomes returned error: %v", err)
	}

	files, err := store.Files(ctx, run.ID)
	if err != nil {
		t.Fatalf("Files returned error: %v", err)
	}
	if files[0].OutputPath != "/out/a_tr.srt" || files[0].Replacements != 3 || files[0].Method != "utf8" {
		t.Fatalf("unexpected first record: %+v", files[0])
	}
	if files[1].Stage != "decode" || files[1].Error == "" {
		t.Fatalf("unexpected second record: %+v", files[1])
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	run, err := store.BeginRun(context.Background(), RunInfo{Origin: OriginCLI, Mapping: "builtin"})
	if err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.FindRun(context.Background(), run.ID); err != nil {
		t.Fatalf("expected run to survive reopen: %v", err)
	}
}
