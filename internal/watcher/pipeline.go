package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"srtfix/internal/batch"
	"srtfix/internal/fileutil"
	"srtfix/internal/history"
	"srtfix/internal/logging"
)

const (
	processedDir = ".processed"
	failedDir    = "failed"
)

// Pipeline repairs inbox files into the outbox.
type Pipeline struct {
	Runner  *batch.Runner
	Inbox   string
	Outbox  string
	History *history.Store
	Mapping string
	Logger  *slog.Logger
}

// Handle repairs path. Repaired text goes to the outbox; the original moves
// to <inbox>/.processed on success or is copied to <outbox>/failed and
// removed from the inbox on failure.
func (p *Pipeline) Handle(ctx context.Context, path string) {
	logger := logging.NewComponentLogger(p.Logger, "watcher")
	outcomes := p.Runner.Run(ctx, []string{path})
	out := outcomes[0]

	outputs := map[string]string{}
	ok := out.OK()
	if ok {
		written, err := batch.WriteFiles(p.Outbox, outcomes)
		if err != nil {
			logging.ErrorWithContext(logger, "write repaired subtitle failed", "write_failed",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check outbox permissions and free space"),
			)
			ok = false
		}
		for _, w := range written {
			outputs[w.Path] = w.Output
		}
	}

	p.record(ctx, logger, outcomes, outputs)

	if ok {
		logger.Info("subtitle repaired",
			logging.String(logging.FieldPath, path),
			logging.String("output", outputs[path]),
			logging.String(logging.FieldEncoding, out.Result.Detection.Charset),
			logging.Int("replacements", out.Result.Replacements()),
		)
		p.archiveOriginal(logger, path)
		return
	}
	p.quarantine(logger, path)
}

func (p *Pipeline) archiveOriginal(logger *slog.Logger, path string) {
	dir := filepath.Join(p.Inbox, processedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.WarnWithContext(logger, "keep original failed", "inbox_cleanup_failed",
			logging.String(logging.FieldPath, path), logging.Error(err))
		return
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		logging.WarnWithContext(logger, "move original failed", "inbox_cleanup_failed",
			logging.String(logging.FieldPath, path), logging.Error(err))
	}
}

func (p *Pipeline) quarantine(logger *slog.Logger, path string) {
	target := filepath.Join(p.Outbox, failedDir, filepath.Base(path))
	if err := fileutil.CopyFileVerified(path, target); err != nil {
		logging.WarnWithContext(logger, "quarantine failed; leaving file in inbox", "inbox_cleanup_failed",
			logging.String(logging.FieldPath, path), logging.Error(err))
		return
	}
	if err := os.Remove(path); err != nil {
		logging.WarnWithContext(logger, "remove failed input", "inbox_cleanup_failed",
			logging.String(logging.FieldPath, path), logging.Error(err))
	}
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, outcomes []batch.Outcome, outputs map[string]string) {
	if p.History == nil {
		return
	}
	run, err := p.History.BeginRun(ctx, history.RunInfo{Origin: history.OriginWatch, Mapping: p.Mapping})
	if err != nil {
		logging.WarnWithContext(logger, "history run not recorded", "history_failed", logging.Error(err))
		return
	}
	if err := p.History.RecordOutcomes(ctx, run.ID, outcomes, outputs); err != nil {
		logging.WarnWithContext(logger, "history files not recorded", "history_failed",
			logging.String(logging.FieldRunID, run.ID), logging.Error(err))
	}
	if err := p.History.FinishRun(ctx, run.ID, ""); err != nil {
		logging.WarnWithContext(logger, "history run not finished", "history_failed",
			logging.String(logging.FieldRunID, run.ID), logging.Error(err))
	}
}
