package mapping

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

const (
	// FieldCorrupted is the header naming the corrupted-sequence column.
	FieldCorrupted = "corrupted"
	// FieldReplacement is the header naming the replacement column.
	FieldReplacement = "replacement"

	// DefaultSource is the name reported by the embedded table.
	DefaultSource = "builtin:default_mapping.csv"
)

var (
	// ErrSource reports a mapping source that could not be opened or read.
	ErrSource = errors.New("mapping source unavailable")
	// ErrFormat reports a mapping source with missing headers or malformed rows.
	ErrFormat = errors.New("malformed mapping source")
)

//go:embed default_mapping.csv
var defaultMapping []byte

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads a mapping table from a CSV file on disk.
func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSource, path, err)
	}
	defer file.Close()
	return Parse(file, path)
}

// Default parses the embedded default table.
func Default() (*Table, error) {
	return Parse(bytes.NewReader(defaultMapping), DefaultSource)
}

// Parse reads a mapping table from r. The name is used in errors and reported
// by Table.Source.
func Parse(r io.Reader, name string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrSource, name, err)
	}
	if !utf8.Valid(data) {
		return nil, formatError(name, 0, "source is not valid UTF-8")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, formatError(name, 0, "missing header row")
	}
	if err != nil {
		return nil, csvError(name, err)
	}

	corruptedCol, replacementCol := -1, -1
	for i, field := range header {
		switch strings.TrimSpace(field) {
		case FieldCorrupted:
			if corruptedCol < 0 {
				corruptedCol = i
			}
		case FieldReplacement:
			if replacementCol < 0 {
				replacementCol = i
			}
		}
	}
	var missing []string
	if corruptedCol < 0 {
		missing = append(missing, FieldCorrupted)
	}
	if replacementCol < 0 {
		missing = append(missing, FieldReplacement)
	}
	if len(missing) > 0 {
		return nil, formatError(name, 1, fmt.Sprintf("header missing required field(s) %s", strings.Join(missing, ", ")))
	}

	table := newTable(name)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(name, err)
		}
		line, _ := reader.FieldPos(0)
		corrupted := record[corruptedCol]
		if corrupted == "" {
			return nil, formatError(name, line, "empty corrupted value")
		}
		table.put(corrupted, record[replacementCol])
	}
	return table, nil
}

func formatError(name string, line int, detail string) error {
	if line > 0 {
		return fmt.Errorf("%w: %s line %d: %s", ErrFormat, name, line, detail)
	}
	return fmt.Errorf("%w: %s: %s", ErrFormat, name, detail)
}

func csvError(name string, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return formatError(name, parseErr.Line, parseErr.Err.Error())
	}
	return fmt.Errorf("%w: read %s: %v", ErrSource, name, err)
}
