package textutil

import (
	"path/filepath"
	"strconv"
	"strings"
)

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. Empty or dot-only results return fallback.
func SanitizeFileName(name, fallback string) string {
	cleaned := strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	if strings.Trim(cleaned, ".") == "" {
		return fallback
	}
	return cleaned
}

// UniqueName returns name unchanged the first time it is seen and
// "<base>-N<ext>" for later repeats. seen is updated in place.
func UniqueName(name string, seen map[string]int) string {
	key := strings.ToLower(name)
	count := seen[key]
	seen[key] = count + 1
	if count == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := count + 1; ; n++ {
		candidate := base + "-" + strconv.Itoa(n) + ext
		candidateKey := strings.ToLower(candidate)
		if _, taken := seen[candidateKey]; !taken {
			seen[candidateKey] = 1
			return candidate
		}
	}
}
