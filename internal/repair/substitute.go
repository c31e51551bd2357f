package repair

import (
	"strings"

	"srtfix/internal/mapping"
)

// Hit counts how often one mapping entry matched during a repair.
type Hit struct {
	Corrupted   string `json:"corrupted"`
	Replacement string `json:"replacement"`
	Count       int    `json:"count"`
}

// substitute applies every entry in table order. Each pass runs on the output
// of the previous one, so a later entry can match text an earlier replacement
// produced.
func substitute(table *mapping.Table, text string) (string, []Hit) {
	var hits []Hit
	table.Each(func(e mapping.Entry) {
		n := strings.Count(text, e.Corrupted)
		if n == 0 {
			return
		}
		text = strings.ReplaceAll(text, e.Corrupted, e.Replacement)
		hits = append(hits, Hit{Corrupted: e.Corrupted, Replacement: e.Replacement, Count: n})
	})
	return text, hits
}
