package batch_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"srtfix/internal/batch"
	"srtfix/internal/mapping"
	"srtfix/internal/repair"
	"srtfix/internal/testsupport"
)

func newEngine() *repair.Engine {
	table := mapping.FromEntries("test",
		mapping.Entry{Corrupted: "Ã¼", Replacement: "ü"},
		mapping.Entry{Corrupted: "â€™", Replacement: "'"},
	)
	return repair.New(table)
}

func TestCollectExpandsDirectories(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(root, "b.srt"), []byte("b"))
	testsupport.WriteFile(t, filepath.Join(root, "a.SRT"), []byte("a"))
	testsupport.WriteFile(t, filepath.Join(root, "season1", "e01.srt"), []byte("e"))
	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), []byte("n"))
	testsupport.WriteFile(t, filepath.Join(root, ".cache", "hidden.srt"), []byte("h"))

	inputs, err := batch.Collect([]string{root}, []string{".srt"})
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.SRT"),
		filepath.Join(root, "b.srt"),
		filepath.Join(root, "season1", "e01.srt"),
	}
	if strings.Join(inputs.Files, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected files:\n got %v\nwant %v", inputs.Files, want)
	}
	if len(inputs.Skipped) != 0 {
		t.Fatalf("expected no skipped entries, got %+v", inputs.Skipped)
	}
}

func TestCollectReportsSkippedArguments(t *testing.T) {
	root := t.TempDir()
	movie := filepath.Join(root, "movie.srt")
	notes := filepath.Join(root, "notes.txt")
	testsupport.WriteFile(t, movie, []byte("m"))
	testsupport.WriteFile(t, notes, []byte("n"))

	inputs, err := batch.Collect([]string{movie, notes, filepath.Join(root, "missing.srt"), movie, root}, []string{".srt"})
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if len(inputs.Files) != 1 || inputs.Files[0] != movie {
		t.Fatalf("unexpected files: %v", inputs.Files)
	}
	reasons := make([]string, 0, len(inputs.Skipped))
	for _, skip := range inputs.Skipped {
		reasons = append(reasons, skip.Reason)
	}
	got := strings.Join(reasons, ",")
	if got != "unsupported extension,not found,duplicate,duplicate" {
		t.Fatalf("unexpected skip reasons: %q", got)
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"/tmp/movie.srt":     "movie_tr.srt",
		"Show.S01E02.en.srt": "Show.S01E02.en_tr.srt",
		"/subs/no_extension": "no_extension_tr",
		`C:\subs\Film.SRT`:   "Film_tr.SRT",
	}
	for in, want := range tests {
		if filepath.Separator != '\\' && strings.Contains(in, `\`) {
			continue
		}
		if got := batch.OutputName(in, "_tr"); got != want {
			t.Fatalf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunnerIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.srt")
	empty := filepath.Join(dir, "empty.srt")
	other := filepath.Join(dir, "other.srt")
	testsupport.WriteFile(t, good, []byte("GÃ¼naydÄ±n"))
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, other, []byte("It â€™s fine"))

	var calls atomic.Int32
	runner := &batch.Runner{
		Engine:   newEngine(),
		Workers:  2,
		OnResult: func(batch.Outcome) { calls.Add(1) },
	}
	outcomes := runner.Run(context.Background(), []string{good, empty, other})

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Path != good || outcomes[1].Path != empty || outcomes[2].Path != other {
		t.Fatalf("outcomes out of order: %+v", outcomes)
	}
	if !outcomes[0].OK() || outcomes[0].Result.Text != "GünaydÄ±n" {
		t.Fatalf("unexpected first outcome: %+v", outcomes[0])
	}
	if !errors.Is(outcomes[1].Err, repair.ErrEncodingDetection) {
		t.Fatalf("expected detection error for empty file, got %v", outcomes[1].Err)
	}
	if !outcomes[2].OK() || outcomes[2].Result.Text != "It 's fine" {
		t.Fatalf("unexpected third outcome: %+v", outcomes[2])
	}
	if outcomes[2].OutputName != "other_tr.srt" {
		t.Fatalf("unexpected output name %q", outcomes[2].OutputName)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 OnResult calls, got %d", calls.Load())
	}

	summary := batch.Summarize(outcomes, []batch.Skip{{Path: "x", Reason: "not found"}})
	if summary.Repaired != 2 || summary.Failed != 1 || summary.Skipped != 1 || summary.Replacements != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunnerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &batch.Runner{Engine: newEngine()}
	outcomes := runner.RunUploads(ctx, []batch.Upload{{Name: "a.srt", Data: []byte("x")}})
	if len(outcomes) != 1 || !errors.Is(outcomes[0].Err, context.Canceled) {
		t.Fatalf("expected cancelled outcome, got %+v", outcomes)
	}
	if outcomes[0].Path != "a.srt" {
		t.Fatalf("expected path to be kept on cancellation, got %q", outcomes[0].Path)
	}
}

func TestRunUploadsCustomSuffix(t *testing.T) {
	runner := &batch.Runner{Engine: newEngine(), Suffix: ".fixed"}
	outcomes := runner.RunUploads(context.Background(), []batch.Upload{{Name: "ep.srt", Data: []byte("Ã¼")}})
	if !outcomes[0].OK() || outcomes[0].Result.Text != "ü" {
		t.Fatalf("unexpected outcome: %+v", outcomes[0])
	}
	if outcomes[0].OutputName != "ep.fixed.srt" {
		t.Fatalf("unexpected output name %q", outcomes[0].OutputName)
	}
}

func TestWriteFilesBesideInputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.srt")
	testsupport.WriteFile(t, input, []byte("Ã¼"))

	runner := &batch.Runner{Engine: newEngine()}
	outcomes := runner.Run(context.Background(), []string{input})
	written, err := batch.WriteFiles("", outcomes)
	if err != nil {
		t.Fatalf("WriteFiles returned error: %v", err)
	}
	want := filepath.Join(dir, "movie_tr.srt")
	if len(written) != 1 || written[0].Output != want {
		t.Fatalf("unexpected written list: %+v", written)
	}
	if got := testsupport.ReadFile(t, want); got != "ü" {
		t.Fatalf("unexpected output content %q", got)
	}
	if got := testsupport.ReadFile(t, input); got != "Ã¼" {
		t.Fatalf("input was modified: %q", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected only input and output beside each other, found %d entries", len(entries))
	}
}

func TestWriteFilesDisambiguatesIntoOutDir(t *testing.T) {
	base := t.TempDir()
	first := filepath.Join(base, "s1", "episode.srt")
	second := filepath.Join(base, "s2", "episode.srt")
	testsupport.WriteFile(t, first, []byte("one"))
	testsupport.WriteFile(t, second, []byte("two"))
	outDir := filepath.Join(base, "out")

	runner := &batch.Runner{Engine: newEngine()}
	written, err := batch.WriteFiles(outDir, runner.Run(context.Background(), []string{first, second}))
	if err != nil {
		t.Fatalf("WriteFiles returned error: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("expected 2 files, got %+v", written)
	}
	if got := testsupport.ReadFile(t, filepath.Join(outDir, "episode_tr.srt")); got != "one" {
		t.Fatalf("unexpected first output %q", got)
	}
	if got := testsupport.ReadFile(t, filepath.Join(outDir, "episode_tr-2.srt")); got != "two" {
		t.Fatalf("unexpected second output %q", got)
	}
}

func TestWriteFilesRefusesToOverwriteInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.srt")
	testsupport.WriteFile(t, input, []byte("Ã¼"))

	runner := &batch.Runner{Engine: newEngine(), Suffix: "_tr"}
	outcomes := runner.Run(context.Background(), []string{input})
	outcomes[0].OutputName = "movie.srt"

	if _, err := batch.WriteFiles("", outcomes); err == nil {
		t.Fatal("expected refusal to overwrite input")
	}
	if got := testsupport.ReadFile(t, input); got != "Ã¼" {
		t.Fatalf("input was modified: %q", got)
	}
}

func TestWriteArchive(t *testing.T) {
	runner := &batch.Runner{Engine: newEngine()}
	outcomes := runner.RunUploads(context.Background(), []batch.Upload{
		{Name: "a.srt", Data: []byte("Ã¼")},
		{Name: "broken.srt", Data: nil},
		{Name: "a.srt", Data: []byte("It â€™s")},
	})

	var buf bytes.Buffer
	count, err := batch.WriteArchive(&buf, outcomes)
	if err != nil {
		t.Fatalf("WriteArchive returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	got := map[string]string{}
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read entry: %v", err)
		}
		got[f.Name] = string(data)
	}
	if got["a_tr.srt"] != "ü" || got["a_tr-2.srt"] != "It 's" || len(got) != 2 {
		t.Fatalf("unexpected archive contents: %v", got)
	}
}

func TestWriteArchiveFile(t *testing.T) {
	runner := &batch.Runner{Engine: newEngine()}
	outcomes := runner.RunUploads(context.Background(), []batch.Upload{{Name: "a.srt", Data: []byte("x")}})
	path := filepath.Join(t.TempDir(), "bundle", "subtitle.zip")

	count, err := batch.WriteArchiveFile(path, outcomes)
	if err != nil {
		t.Fatalf("WriteArchiveFile returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry, got %d", count)
	}
	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer reader.Close()
	if len(reader.File) != 1 || reader.File[0].Name != "a_tr.srt" {
		t.Fatalf("unexpected archive entries: %v", reader.File)
	}
}
