package batch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"srtfix/internal/logging"
	"srtfix/internal/repair"
)

// DefaultWorkers is used when Runner.Workers is not positive.
const DefaultWorkers = 4

// Processor is the slice of the repair engine the runner needs.
type Processor interface {
	Process(path string) (*repair.Result, error)
	ProcessBytes(name string, raw []byte) (*repair.Result, error)
}

// Upload is in-memory subtitle content, typically from an HTTP request.
type Upload struct {
	Name string
	Data []byte
}

// Outcome is the per-input result of a run. Exactly one of Result and Err is set.
type Outcome struct {
	Path       string         `json:"path"`
	OutputName string         `json:"output_name"`
	Result     *repair.Result `json:"result,omitempty"`
	Err        error          `json:"-"`
}

// OK reports whether the input was repaired.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

// Runner repairs many inputs with bounded concurrency.
type Runner struct {
	Engine  Processor
	Workers int
	// Suffix is appended to the base name of each output. Default "_tr".
	Suffix string
	// OnResult, when set, is called once per finished input. Calls are serialized.
	OnResult func(Outcome)
	Logger   *slog.Logger
}

// Run repairs files on disk. Outcomes are returned in input order.
func (r *Runner) Run(ctx context.Context, paths []string) []Outcome {
	return r.run(ctx, len(paths),
		func(i int) Outcome {
			return Outcome{Path: paths[i], OutputName: OutputName(paths[i], r.suffix())}
		},
		func(i int) (*repair.Result, error) { return r.Engine.Process(paths[i]) },
	)
}

// RunUploads repairs in-memory content. Outcomes are returned in input order.
func (r *Runner) RunUploads(ctx context.Context, uploads []Upload) []Outcome {
	return r.run(ctx, len(uploads),
		func(i int) Outcome {
			return Outcome{Path: uploads[i].Name, OutputName: OutputName(uploads[i].Name, r.suffix())}
		},
		func(i int) (*repair.Result, error) {
			return r.Engine.ProcessBytes(uploads[i].Name, uploads[i].Data)
		},
	)
}

func (r *Runner) run(ctx context.Context, n int, describe func(int) Outcome, process func(int) (*repair.Result, error)) []Outcome {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.Logger, "batch"))
	outcomes := make([]Outcome, n)

	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var g errgroup.Group
	g.SetLimit(workers)

	var mu sync.Mutex
	finish := func(i int, out Outcome) {
		outcomes[i] = out
		if out.Err != nil {
			logging.WarnWithContext(logger, "subtitle repair failed", "repair_failed",
				logging.String(logging.FieldPath, out.Path),
				logging.String(logging.FieldStage, stageName(out.Err)),
				logging.Error(out.Err),
				logging.String(logging.FieldErrorHint, "check the file encoding or lower repair.min_confidence"),
			)
		}
		if r.OnResult != nil {
			mu.Lock()
			r.OnResult(out)
			mu.Unlock()
		}
	}

	for i := 0; i < n; i++ {
		out := describe(i)
		if err := ctx.Err(); err != nil {
			out.Err = err
			finish(i, out)
			continue
		}
		g.Go(func() error {
			out.Result, out.Err = process(i)
			finish(i, out)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (r *Runner) suffix() string {
	if r.Suffix == "" {
		return "_tr"
	}
	return r.Suffix
}

func stageName(err error) string {
	if stage, ok := repair.StageOf(err); ok {
		return string(stage)
	}
	return "batch"
}
