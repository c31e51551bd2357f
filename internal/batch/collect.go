package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Skip records an argument that was not turned into work.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Inputs is the result of Collect.
type Inputs struct {
	Files   []string `json:"files"`
	Skipped []Skip   `json:"skipped,omitempty"`
}

// Collect expands args into subtitle files. Directories are walked
// recursively and filtered by extension; explicit files must also match an
// extension. Files are de-duplicated by absolute path and keep argument order,
// with each directory's matches sorted.
func Collect(args []string, extensions []string) (Inputs, error) {
	var inputs Inputs
	seen := make(map[string]struct{})

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = filepath.Clean(path)
		}
		if _, dup := seen[abs]; dup {
			inputs.Skipped = append(inputs.Skipped, Skip{Path: path, Reason: "duplicate"})
			return
		}
		seen[abs] = struct{}{}
		inputs.Files = append(inputs.Files, abs)
	}

	for _, arg := range args {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			reason := "unreadable"
			if errors.Is(err, fs.ErrNotExist) {
				reason = "not found"
			}
			inputs.Skipped = append(inputs.Skipped, Skip{Path: arg, Reason: reason})
			continue
		}
		if !info.IsDir() {
			if !MatchesExtension(arg, extensions) {
				inputs.Skipped = append(inputs.Skipped, Skip{Path: arg, Reason: "unsupported extension"})
				continue
			}
			add(arg)
			continue
		}

		found, err := walkDir(arg, extensions)
		if err != nil {
			return Inputs{}, err
		}
		for _, path := range found {
			add(path)
		}
	}
	return inputs, nil
}

func walkDir(root string, extensions []string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && MatchesExtension(path, extensions) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(found)
	return found, nil
}

// MatchesExtension reports whether path ends in one of extensions,
// case-insensitively. An empty list matches everything.
func MatchesExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range extensions {
		if ext == strings.ToLower(candidate) {
			return true
		}
	}
	return false
}

// OutputName derives the repaired file name: movie.srt -> movie_tr.srt for
// suffix "_tr".
func OutputName(path, suffix string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + suffix + ext
}
