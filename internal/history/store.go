package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"srtfix/internal/batch"
	"srtfix/internal/repair"
)

// ErrRunNotFound is returned when no run matches an identifier.
var ErrRunNotFound = errors.New("run not found")

// Store manages the repair journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun opens a new run and returns it with a fresh identifier.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Origin:    info.Origin,
		Mapping:   info.Mapping,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, origin, mapping_source, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Origin), run.Mapping, formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordFile appends a file entry and updates the run's counters.
func (s *Store) RecordFile(ctx context.Context, runID string, rec FileRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO files (
            run_id, path, output_path, charset, confidence, method,
            replacements, stage, error_message, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.Path,
		nullableString(rec.OutputPath),
		nullableString(rec.Charset),
		rec.Confidence,
		nullableString(rec.Method),
		rec.Replacements,
		nullableString(rec.Stage),
		nullableString(rec.Error),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	repaired, failed := 1, 0
	if rec.Failed() {
		repaired, failed = 0, 1
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET repaired = repaired + ?, failed = failed + ?, replacements = replacements + ? WHERE id = ?`,
		repaired, failed, rec.Replacements, runID,
	)
	if err != nil {
		return fmt.Errorf("update run counters: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}

// RecordOutcomes journals every outcome of a batch. outputs maps input paths
// to where their repaired text was written, if anywhere.
func (s *Store) RecordOutcomes(ctx context.Context, runID string, outcomes []batch.Outcome, outputs map[string]string) error {
	var errs []error
	for _, out := range outcomes {
		if err := s.RecordFile(ctx, runID, RecordFromOutcome(out, outputs[out.Path])); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordFromOutcome converts a batch outcome into a journal entry.
func RecordFromOutcome(out batch.Outcome, outputPath string) FileRecord {
	rec := FileRecord{Path: out.Path, OutputPath: outputPath}
	if out.Result != nil {
		rec.Charset = out.Result.Detection.Charset
		rec.Confidence = out.Result.Detection.Confidence
		rec.Method = string(out.Result.Detection.Method)
		rec.Replacements = out.Result.Replacements()
	}
	if out.Err != nil {
		rec.OutputPath = ""
		rec.Error = out.Err.Error()
		if stage, ok := repair.StageOf(out.Err); ok {
			rec.Stage = string(stage)
		}
	}
	return rec
}

// FinishRun stamps the run's completion time and optional archive path.
func (s *Store) FinishRun(ctx context.Context, runID, archivePath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, archive_path = ? WHERE id = ?`,
		formatTime(s.now().UTC()), nullableString(archivePath), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = "id, origin, mapping_source, started_at, finished_at, archive_path, repaired, failed, replacements"

// ListRuns returns the most recent runs first. A non-positive limit returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FindRun resolves a full run ID or a unique prefix of one.
func (s *Store) FindRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(idOrPrefix) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`, pattern)
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", idOrPrefix)
	}
}

// Files returns the entries of a run in the order they were recorded.
func (s *Store) Files(ctx context.Context, runID string) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, output_path, charset, confidence, method, replacements, stage, error_message, created_at
         FROM files WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var (
			rec        FileRecord
			output     sql.NullString
			charset    sql.NullString
			confidence sql.NullInt64
			method     sql.NullString
			stage      sql.NullString
			errMsg     sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&rec.Path, &output, &charset, &confidence, &method,
			&rec.Replacements, &stage, &errMsg, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		rec.OutputPath = output.String
		rec.Charset = charset.String
		rec.Confidence = int(confidence.Int64)
		rec.Method = method.String
		rec.Stage = stage.String
		rec.Error = errMsg.String
		rec.CreatedAt = parseTime(createdRaw)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		origin      string
		startedRaw  string
		finishedRaw sql.NullString
		archive     sql.NullString
	)
	if err := scanner.Scan(&run.ID, &origin, &run.Mapping, &startedRaw, &finishedRaw, &archive,
		&run.Repaired, &run.Failed, &run.Replacements); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Origin = Origin(origin)
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		finished := parseTime(finishedRaw.String)
		run.FinishedAt = &finished
	}
	run.ArchivePath = archive.String
	return &run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// timeLayout has fixed-width fractions so stored values sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
