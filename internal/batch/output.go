package batch

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"srtfix/internal/fileutil"
	"srtfix/internal/textutil"
)

// Written pairs an input with the file its repaired text was saved to.
type Written struct {
	Path   string `json:"path"`
	Output string `json:"output"`
}

// WriteFiles saves every successful outcome as UTF-8. With an empty outDir
// each output lands beside its input; otherwise all outputs go to outDir and
// colliding names get numeric suffixes. Each target directory is locked for
// the duration of the write.
func WriteFiles(outDir string, outcomes []Outcome) ([]Written, error) {
	type target struct {
		index int
		path  string
	}
	var targets []target
	seen := make(map[string]map[string]int)

	for i, out := range outcomes {
		if !out.OK() {
			continue
		}
		dir := outDir
		if dir == "" {
			dir = filepath.Dir(out.Path)
		}
		names := seen[dir]
		if names == nil {
			names = make(map[string]int)
			seen[dir] = names
		}
		name := textutil.UniqueName(textutil.SanitizeFileName(out.OutputName, fallbackName(i)), names)
		targets = append(targets, target{index: i, path: filepath.Join(dir, name)})
	}
	if len(targets) == 0 {
		return nil, nil
	}

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		unlock, err := fileutil.LockDir(dir)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", dir, err)
		}
		defer func() { _ = unlock() }()
	}

	written := make([]Written, 0, len(targets))
	var errs []error
	for _, tgt := range targets {
		out := outcomes[tgt.index]
		if sameFile(out.Path, tgt.path) {
			errs = append(errs, fmt.Errorf("refusing to overwrite input %s", out.Path))
			continue
		}
		if err := fileutil.WriteAtomic(tgt.path, []byte(out.Result.Text), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", tgt.path, err))
			continue
		}
		written = append(written, Written{Path: out.Path, Output: tgt.path})
	}
	return written, errors.Join(errs...)
}

// WriteArchive writes one zip entry per successful outcome, named by its
// output name. It returns the number of entries written.
func WriteArchive(w io.Writer, outcomes []Outcome) (int, error) {
	zw := zip.NewWriter(w)
	names := make(map[string]int)
	count := 0
	now := time.Now()

	for i, out := range outcomes {
		if !out.OK() {
			continue
		}
		name := textutil.UniqueName(textutil.SanitizeFileName(out.OutputName, fallbackName(i)), names)
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			_ = zw.Close()
			return count, fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := io.WriteString(entry, out.Result.Text); err != nil {
			_ = zw.Close()
			return count, fmt.Errorf("write zip entry %s: %w", name, err)
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return count, fmt.Errorf("finalize zip: %w", err)
	}
	return count, nil
}

// WriteArchiveFile builds the archive in memory and atomically places it at path.
func WriteArchiveFile(path string, outcomes []Outcome) (int, error) {
	var buf bytes.Buffer
	count, err := WriteArchive(&buf, outcomes)
	if err != nil {
		return count, err
	}
	dir := filepath.Dir(path)
	unlock, err := fileutil.LockDir(dir)
	if err != nil {
		return 0, fmt.Errorf("lock %s: %w", dir, err)
	}
	defer func() { _ = unlock() }()

	if err := fileutil.WriteAtomic(path, buf.Bytes(), 0o644); err != nil {
		return 0, err
	}
	return count, nil
}

func fallbackName(i int) string {
	return fmt.Sprintf("subtitle-%d.srt", i+1)
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
