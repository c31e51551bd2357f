package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"srtfix/internal/batch"
	"srtfix/internal/config"
	"srtfix/internal/history"
	"srtfix/internal/logging"
)

type repairOptions struct {
	outDir  string
	archive string
	stdout  bool
	workers int
	json    bool
}

type fileReport struct {
	Path         string `json:"path"`
	Output       string `json:"output,omitempty"`
	Charset      string `json:"charset,omitempty"`
	Confidence   int    `json:"confidence,omitempty"`
	Method       string `json:"method,omitempty"`
	Replacements int    `json:"replacements"`
	Stage        string `json:"stage,omitempty"`
	Error        string `json:"error,omitempty"`
}

type repairReport struct {
	RunID   string        `json:"run_id,omitempty"`
	Mapping string        `json:"mapping"`
	Archive string        `json:"archive,omitempty"`
	Summary batch.Summary `json:"summary"`
	Files   []fileReport  `json:"files"`
	Skipped []batch.Skip  `json:"skipped,omitempty"`
}

func newRepairCommand(ctx *commandContext) *cobra.Command {
	var opts repairOptions

	cmd := &cobra.Command{
		Use:   "repair <file|dir>...",
		Short: "Repair subtitle files and write UTF-8 copies",
		Long: "Detect the encoding of each subtitle, decode it, and replace corrupted\n" +
			"character sequences using the mapping table. Directories are searched\n" +
			"recursively for files with a configured extension.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd, ctx, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "out-dir", "o", "", "Write repaired files into this directory instead of beside each input")
	cmd.Flags().StringVarP(&opts.archive, "archive", "a", "", "Bundle repaired files into a zip archive at this path")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Print the repaired text of a single file to stdout")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Files repaired concurrently (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output a JSON report")
	cmd.MarkFlagsMutuallyExclusive("out-dir", "archive", "stdout")
	cmd.MarkFlagsMutuallyExclusive("stdout", "json")
	return cmd
}

func runRepair(cmd *cobra.Command, ctx *commandContext, args []string, opts repairOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	if opts.workers < 0 || opts.workers > 64 {
		return fmt.Errorf("--workers must be between 1 and 64")
	}

	inputs, err := batch.Collect(args, cfg.Repair.Extensions)
	if err != nil {
		return err
	}
	for _, skip := range inputs.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %s\n", skip.Path, skip.Reason)
	}
	if len(inputs.Files) == 0 {
		return fmt.Errorf("no subtitle files to repair (extensions: %s)", strings.Join(cfg.Repair.Extensions, ", "))
	}
	if opts.stdout && len(inputs.Files) != 1 {
		return fmt.Errorf("--stdout needs exactly one input file, got %d", len(inputs.Files))
	}

	engine, err := ctx.newEngine()
	if err != nil {
		return err
	}
	store, err := ctx.openHistory()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var run *history.Run
	if store != nil {
		run, err = store.BeginRun(runCtx, history.RunInfo{Origin: history.OriginCLI, Mapping: engine.Table().Source()})
		if err != nil {
			logging.WarnWithContext(logger, "history unavailable; continuing without journal", "history_begin_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions or disable [history]"),
			)
			store = nil
		} else {
			runCtx = logging.WithRunID(runCtx, run.ID)
		}
	}

	workers := cfg.Repair.Workers
	if opts.workers > 0 {
		workers = opts.workers
	}
	bar := newProgressBar(cmd.ErrOrStderr(), len(inputs.Files), !opts.stdout && !opts.json)
	runner := &batch.Runner{
		Engine:  engine,
		Workers: workers,
		Suffix:  cfg.Repair.OutputSuffix,
		Logger:  logging.WithContext(runCtx, logger),
		OnResult: func(batch.Outcome) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	}
	outcomes := runner.Run(runCtx, inputs.Files)
	if bar != nil {
		_ = bar.Finish()
	}
	if err := runCtx.Err(); err != nil {
		if store != nil {
			recordRun(runCtx, logger, store, run.ID, outcomes, nil, "")
		}
		return err
	}

	outputs := map[string]string{}
	var archivePath string
	var writeErr error
	switch {
	case opts.stdout:
		if out := outcomes[0]; out.OK() {
			if _, err := io.WriteString(cmd.OutOrStdout(), out.Result.Text); err != nil {
				writeErr = fmt.Errorf("write stdout: %w", err)
			}
		}
	case strings.TrimSpace(opts.archive) != "":
		archivePath, writeErr = resolveArchivePath(opts.archive, cfg.Repair.ArchiveName)
		if writeErr == nil {
			_, writeErr = batch.WriteArchiveFile(archivePath, outcomes)
		}
		if writeErr == nil {
			for _, out := range outcomes {
				if out.OK() {
					outputs[out.Path] = archivePath
				}
			}
		}
	default:
		outDir := cfg.Paths.OutputDir
		if strings.TrimSpace(opts.outDir) != "" {
			outDir, writeErr = config.ExpandPath(opts.outDir)
		}
		if writeErr == nil {
			var written []batch.Written
			written, writeErr = batch.WriteFiles(outDir, outcomes)
			for _, w := range written {
				outputs[w.Path] = w.Output
			}
		}
	}

	if store != nil {
		recordRun(runCtx, logger, store, run.ID, outcomes, outputs, archivePath)
	}

	summary := batch.Summarize(outcomes, inputs.Skipped)
	report := buildReport(outcomes, outputs, inputs.Skipped, summary)
	report.Mapping = engine.Table().Source()
	report.Archive = archivePath
	if run != nil {
		report.RunID = run.ID
	}

	switch {
	case opts.json:
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	case opts.stdout:
		printFailures(cmd.ErrOrStderr(), report.Files)
	default:
		printRepairReport(cmd.OutOrStdout(), report)
	}

	if writeErr != nil {
		return writeErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files could not be repaired", summary.Failed, len(outcomes))
	}
	return nil
}

func newProgressBar(w io.Writer, total int, enabled bool) *progressbar.ProgressBar {
	if !enabled || total < 2 || !isTerminal(w) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("repairing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

// resolveArchivePath places the archive inside target when target is an
// existing directory or ends with a separator.
func resolveArchivePath(target, defaultName string) (string, error) {
	expanded, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("--archive: %w", err)
	}
	if strings.HasSuffix(target, string(filepath.Separator)) {
		return filepath.Join(expanded, defaultName), nil
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return filepath.Join(expanded, defaultName), nil
	}
	return expanded, nil
}

func recordRun(ctx context.Context, logger *slog.Logger, store *history.Store, runID string, outcomes []batch.Outcome, outputs map[string]string, archivePath string) {
	// The journal never fails a repair; record with a context that survives
	// cancellation of the batch.
	ctx = context.WithoutCancel(ctx)
	err := errors.Join(
		store.RecordOutcomes(ctx, runID, outcomes, outputs),
		store.FinishRun(ctx, runID, archivePath),
	)
	if err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_record_failed",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "repairs were written; only the journal entry is incomplete"),
		)
	}
}

func buildReport(outcomes []batch.Outcome, outputs map[string]string, skipped []batch.Skip, summary batch.Summary) repairReport {
	report := repairReport{Summary: summary, Skipped: skipped, Files: make([]fileReport, 0, len(outcomes))}
	for _, out := range outcomes {
		rec := history.RecordFromOutcome(out, outputs[out.Path])
		report.Files = append(report.Files, fileReport{
			Path:         rec.Path,
			Output:       rec.OutputPath,
			Charset:      rec.Charset,
			Confidence:   rec.Confidence,
			Method:       rec.Method,
			Replacements: rec.Replacements,
			Stage:        rec.Stage,
			Error:        rec.Error,
		})
	}
	return report
}

func printRepairReport(w io.Writer, report repairReport) {
	rows := make([][]string, 0, len(report.Files))
	for _, f := range report.Files {
		status := "repaired"
		if f.Error != "" {
			status = "failed: " + f.Error
		}
		rows = append(rows, []string{
			f.Path,
			f.Output,
			f.Charset,
			confidenceText(f.Confidence, f.Method),
			strconv.Itoa(f.Replacements),
			status,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"File", "Output", "Encoding", "Confidence", "Replacements", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	s := report.Summary
	fmt.Fprintf(w, "Repaired %d, failed %d, skipped %d, %d replacements\n", s.Repaired, s.Failed, s.Skipped, s.Replacements)
	if report.Archive != "" {
		fmt.Fprintf(w, "Archive: %s\n", report.Archive)
	}
	if report.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", report.RunID)
	}
}

func printFailures(w io.Writer, files []fileReport) {
	for _, f := range files {
		if f.Error != "" {
			fmt.Fprintf(w, "failed %s: %s\n", f.Path, f.Error)
		}
	}
}

func confidenceText(confidence int, method string) string {
	if method == "" {
		return ""
	}
	if method != "statistical" {
		return method
	}
	return strconv.Itoa(confidence) + "%"
}
