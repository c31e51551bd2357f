package repair

import (
	"log/slog"
	"os"

	"srtfix/internal/logging"
	"srtfix/internal/mapping"
)

// Result is the outcome of a successful repair.
type Result struct {
	Path      string    `json:"path"`
	Text      string    `json:"-"`
	Detection Detection `json:"detection"`
	Hits      []Hit     `json:"hits,omitempty"`
}

// Replacements returns the total number of substitutions performed.
func (r *Result) Replacements() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, h := range r.Hits {
		total += h.Count
	}
	return total
}

// Engine repairs subtitle files against an immutable mapping table. It holds
// no per-call state and is safe for concurrent use.
type Engine struct {
	table             *mapping.Table
	detector          Detector
	logger            *slog.Logger
	normalizeNewlines bool
}

// Option customizes an Engine.
type Option func(*engineSettings)

type engineSettings struct {
	detector          Detector
	minConfidence     int
	logger            *slog.Logger
	normalizeNewlines bool
}

// WithDetector replaces the default encoding detector.
func WithDetector(d Detector) Option {
	return func(s *engineSettings) { s.detector = d }
}

// WithMinConfidence sets the confidence floor of the default detector. It has
// no effect when WithDetector is also supplied.
func WithMinConfidence(v int) Option {
	return func(s *engineSettings) { s.minConfidence = v }
}

// WithLogger attaches a logger for per-file debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *engineSettings) { s.logger = logger }
}

// WithNormalizeNewlines converts CRLF and CR line endings to LF after decoding.
func WithNormalizeNewlines(enabled bool) Option {
	return func(s *engineSettings) { s.normalizeNewlines = enabled }
}

// New constructs an engine around table. A nil table behaves as an empty one.
func New(table *mapping.Table, opts ...Option) *Engine {
	settings := engineSettings{minConfidence: DefaultMinConfidence}
	for _, opt := range opts {
		opt(&settings)
	}
	if table == nil {
		table = mapping.FromEntries("")
	}
	detector := settings.detector
	if detector == nil {
		detector = NewDetector(settings.minConfidence)
	}
	return &Engine{
		table:             table,
		detector:          detector,
		logger:            logging.NewComponentLogger(settings.logger, "repair"),
		normalizeNewlines: settings.normalizeNewlines,
	}
}

// NewFromSource loads the mapping table at path and constructs an engine.
// Mapping errors are returned unchanged.
func NewFromSource(path string, opts ...Option) (*Engine, error) {
	table, err := mapping.Load(path)
	if err != nil {
		return nil, err
	}
	return New(table, opts...), nil
}

// Table returns the engine's mapping table.
func (e *Engine) Table() *mapping.Table {
	return e.table
}

// Repair reads the file at path, decodes it and returns the repaired text.
func (e *Engine) Repair(path string) (string, error) {
	res, err := e.Process(path)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Process is Repair with detection details and per-entry hit counts.
func (e *Engine) Process(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Stage: StageRead, Err: err}
	}
	return e.ProcessBytes(path, raw)
}

// ProcessBytes repairs content that has already been read. The name is used
// only for errors and logging.
func (e *Engine) ProcessBytes(name string, raw []byte) (*Result, error) {
	det, err := e.detector.Detect(raw)
	if err != nil {
		return nil, &Error{Path: name, Stage: StageDetect, Err: err}
	}

	text, err := decode(raw, det)
	if err != nil {
		return nil, &Error{Path: name, Stage: StageDecode, Err: err}
	}
	if e.normalizeNewlines {
		text = normalizeNewlines(text)
	}

	repaired, hits := substitute(e.table, text)
	res := &Result{Path: name, Text: repaired, Detection: det, Hits: hits}

	e.logger.Debug("subtitle repaired",
		logging.String(logging.FieldPath, name),
		logging.String(logging.FieldEncoding, det.Charset),
		logging.Int("confidence", det.Confidence),
		logging.String("method", string(det.Method)),
		logging.Int("replacements", res.Replacements()),
	)
	return res, nil
}

// Detect reads path and runs only the detection stage.
func (e *Engine) Detect(path string) (Detection, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Detection{}, &Error{Path: path, Stage: StageRead, Err: err}
	}
	det, err := e.detector.Detect(raw)
	if err != nil {
		return Detection{}, &Error{Path: path, Stage: StageDetect, Err: err}
	}
	return det, nil
}

// Apply runs only the substitution pass over text.
func (e *Engine) Apply(text string) (string, []Hit) {
	return substitute(e.table, text)
}
