package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"srtfix/internal/batch"
	"srtfix/internal/logging"
)

const defaultSettle = 500 * time.Millisecond

// HandleFunc processes one settled inbox file.
type HandleFunc func(ctx context.Context, path string)

// Options configures a Watcher.
type Options struct {
	Inbox      string
	Settle     time.Duration
	Extensions []string
	Logger     *slog.Logger
}

// Watcher turns inbox filesystem events into settled file paths.
type Watcher struct {
	opts    Options
	handle  HandleFunc
	logger  *slog.Logger
	pending map[string]*pendingFile
	ready   chan string
}

type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New validates opts and returns a watcher. Nothing is observed until Run.
func New(opts Options, handle HandleFunc) (*Watcher, error) {
	if strings.TrimSpace(opts.Inbox) == "" {
		return nil, errors.New("watcher: inbox directory is required")
	}
	if handle == nil {
		return nil, errors.New("watcher: handler is required")
	}
	if opts.Settle <= 0 {
		opts.Settle = defaultSettle
	}
	return &Watcher{
		opts:    opts,
		handle:  handle,
		logger:  logging.NewComponentLogger(opts.Logger, "watcher"),
		pending: make(map[string]*pendingFile),
		ready:   make(chan string, 64),
	}, nil
}

// Run watches the inbox until ctx is cancelled. Files already present when
// Run starts are processed as if they had just been dropped.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.Inbox, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.opts.Inbox); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Inbox, err)
	}
	w.logger.Info("watching inbox", logging.String(logging.FieldPath, w.opts.Inbox))

	entries, err := os.ReadDir(w.opts.Inbox)
	if err != nil {
		return fmt.Errorf("scan inbox: %w", err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			w.schedule(ctx, filepath.Join(w.opts.Inbox, entry.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.stopAll()
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "filesystem watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "events may have been dropped; restart watch to rescan the inbox"),
			)
		case path := <-w.ready:
			w.checkSettled(ctx, path)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !w.accepts(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.schedule(ctx, event.Name)
	}
}

func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return batch.MatchesExtension(path, w.opts.Extensions)
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.accepts(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		w.cancel(path)
		return
	}
	if existing, ok := w.pending[path]; ok {
		existing.timer.Stop()
	}
	w.pending[path] = &pendingFile{
		size:    info.Size(),
		modTime: info.ModTime(),
		timer:   w.startTimer(ctx, path),
	}
}

func (w *Watcher) startTimer(ctx context.Context, path string) *time.Timer {
	return time.AfterFunc(w.opts.Settle, func() {
		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) checkSettled(ctx context.Context, path string) {
	pending, ok := w.pending[path]
	if !ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		return
	}
	if info.Size() != pending.size || !info.ModTime().Equal(pending.modTime) {
		pending.size = info.Size()
		pending.modTime = info.ModTime()
		pending.timer = w.startTimer(ctx, path)
		return
	}
	delete(w.pending, path)
	w.handle(ctx, path)
}

func (w *Watcher) cancel(path string) {
	if pending, ok := w.pending[path]; ok {
		pending.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopAll() {
	for path, pending := range w.pending {
		pending.timer.Stop()
		delete(w.pending, path)
	}
}
