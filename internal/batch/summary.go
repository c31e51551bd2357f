package batch

// Summary counts the results of a run.
type Summary struct {
	Repaired     int `json:"repaired"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	Replacements int `json:"replacements"`
}

// Summarize tallies outcomes and skipped arguments.
func Summarize(outcomes []Outcome, skipped []Skip) Summary {
	s := Summary{Skipped: len(skipped)}
	for _, out := range outcomes {
		if out.OK() {
			s.Repaired++
			s.Replacements += out.Result.Replacements()
			continue
		}
		s.Failed++
	}
	return s
}
