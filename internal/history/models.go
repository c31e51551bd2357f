package history

import (
	"time"
)

// Origin names the surface that started a run.
type Origin string

const (
	OriginCLI   Origin = "cli"
	OriginWatch Origin = "watch"
	OriginHTTP  Origin = "http"
)

// RunInfo describes a run being started.
type RunInfo struct {
	Origin  Origin
	Mapping string
}

// Run is one batch invocation.
type Run struct {
	ID           string     `json:"id"`
	Origin       Origin     `json:"origin"`
	Mapping      string     `json:"mapping"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ArchivePath  string     `json:"archive_path,omitempty"`
	Repaired     int        `json:"repaired"`
	Failed       int        `json:"failed"`
	Replacements int        `json:"replacements"`
}

// FileRecord is the journal entry for one input of a run.
type FileRecord struct {
	Path         string    `json:"path"`
	OutputPath   string    `json:"output_path,omitempty"`
	Charset      string    `json:"charset,omitempty"`
	Confidence   int       `json:"confidence,omitempty"`
	Method       string    `json:"method,omitempty"`
	Replacements int       `json:"replacements"`
	Stage        string    `json:"stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Failed reports whether the file could not be repaired.
func (f FileRecord) Failed() bool {
	return f.Error != ""
}
