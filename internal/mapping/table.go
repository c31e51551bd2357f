package mapping

import (
	"strings"
)

// Entry is a single corrupted-sequence to replacement pair.
type Entry struct {
	Corrupted   string `json:"corrupted"`
	Replacement string `json:"replacement"`
}

// Conflict reports an entry whose replacement contains another entry's
// corrupted sequence. Repairing already repaired text with such a table is not
// idempotent.
type Conflict struct {
	Entry Entry  `json:"entry"`
	Key   string `json:"key"`
}

// Table is an ordered, immutable set of mapping entries with unique keys.
type Table struct {
	source     string
	entries    []Entry
	index      map[string]int
	duplicates []string
}

func newTable(source string) *Table {
	return &Table{source: source, index: make(map[string]int)}
}

// put inserts or overwrites an entry. Overwritten keys keep their original
// position so iteration order follows the first occurrence in the source.
func (t *Table) put(corrupted, replacement string) {
	if pos, ok := t.index[corrupted]; ok {
		t.entries[pos].Replacement = replacement
		t.duplicates = append(t.duplicates, corrupted)
		return
	}
	t.index[corrupted] = len(t.entries)
	t.entries = append(t.entries, Entry{Corrupted: corrupted, Replacement: replacement})
}

// FromEntries builds a table from in-memory pairs using the same duplicate
// rules as a parsed source.
func FromEntries(source string, entries ...Entry) *Table {
	t := newTable(source)
	for _, e := range entries {
		t.put(e.Corrupted, e.Replacement)
	}
	return t
}

// Source names where the table was loaded from.
func (t *Table) Source() string {
	if t == nil {
		return ""
	}
	return t.source
}

// Len returns the number of unique entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the entries in application order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Each calls fn for every entry in application order without copying.
func (t *Table) Each(fn func(Entry)) {
	if t == nil {
		return
	}
	for _, e := range t.entries {
		fn(e)
	}
}

// Lookup returns the replacement registered for corrupted.
func (t *Table) Lookup(corrupted string) (string, bool) {
	if t == nil {
		return "", false
	}
	pos, ok := t.index[corrupted]
	if !ok {
		return "", false
	}
	return t.entries[pos].Replacement, true
}

// Duplicates lists keys that appeared on more than one row, once per
// overwriting row.
func (t *Table) Duplicates() []string {
	if t == nil || len(t.duplicates) == 0 {
		return nil
	}
	out := make([]string, len(t.duplicates))
	copy(out, t.duplicates)
	return out
}

// Conflicts finds entries whose replacement contains any corrupted key.
func (t *Table) Conflicts() []Conflict {
	if t == nil {
		return nil
	}
	var conflicts []Conflict
	for _, e := range t.entries {
		for _, other := range t.entries {
			if strings.Contains(e.Replacement, other.Corrupted) {
				conflicts = append(conflicts, Conflict{Entry: e, Key: other.Corrupted})
			}
		}
	}
	return conflicts
}

// MultilineEntries lists entries whose corrupted or replacement value
// contains a line break. An unterminated quote in the source produces one such
// entry that has absorbed every following row.
func (t *Table) MultilineEntries() []Entry {
	if t == nil {
		return nil
	}
	var out []Entry
	for _, e := range t.entries {
		if strings.ContainsAny(e.Corrupted, "\r\n") || strings.ContainsAny(e.Replacement, "\r\n") {
			out = append(out, e)
		}
	}
	return out
}
