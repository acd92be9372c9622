// Package pipeline runs the linear Fetch -> Transform -> Summarize -> Render
// cycle behind every demo app.
//
// A Pipeline holds no state between runs. Each call to Run fetches fresh
// rows, so the returned document always reflects the most recent data for
// the given parameters.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

// Stage names a pipeline step.
type Stage string

// Pipeline stages, in execution order.
const (
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StageSummarize Stage = "summarize"
	StageRender    Stage = "render"
)

// Result is the output of one pipeline run.
type Result struct {
	// ID identifies the run; see WithRunID.
	ID string
	// Document is the rendered HTML document (or plain text for text routes).
	Document string
	// Status is the derived summary text, e.g. a sentence with counts.
	Status string
	// Rows is the number of rows after Transform.
	Rows    int
	Elapsed time.Duration
}

// Pipeline describes one app's render cycle, parameterized by P.
// Fetch is required; the other stages are optional.
type Pipeline[P any] struct {
	Name string
	// Variant distinguishes alternative renderings of the same app, such
	// as "svg". Empty for the primary document.
	Variant string

	Fetch     func(ctx context.Context, p P) (*frame.Frame, error)
	Transform func(f *frame.Frame, p P) (*frame.Frame, error)
	Summarize func(f *frame.Frame, p P) (string, error)
	Render    func(f *frame.Frame, p P) (string, error)

	Observers []Observer
	Logger    *slog.Logger
}

// Run executes the stages in order. The first failing stage stops the run
// and its error is returned wrapped in a *StageError. Observers are notified
// in both cases.
func (pl *Pipeline[P]) Run(ctx context.Context, p P) (*Result, error) {
	id := RunID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	start := time.Now()
	res, err := pl.run(ctx, p)
	elapsed := time.Since(start)
	if res != nil {
		res.ID = id
		res.Elapsed = elapsed
	}

	logger := pl.logger()
	if err != nil {
		logger.Error("pipeline failed", "id", id, "pipeline", pl.Name, "params", p, "error", err, "elapsed", elapsed)
	} else {
		logger.Debug("pipeline finished", "id", id, "pipeline", pl.Name, "params", p, "rows", res.Rows, "elapsed", elapsed)
	}

	ev := Event{
		ID:       id,
		Pipeline: pl.Name,
		Variant:  pl.Variant,
		Params:   p,
		Result:   res,
		Err:      err,
		Started:  start,
		Elapsed:  elapsed,
	}
	for _, o := range pl.Observers {
		o.Observe(ctx, ev)
	}
	return res, err
}

func (pl *Pipeline[P]) run(ctx context.Context, p P) (*Result, error) {
	if pl.Fetch == nil {
		return nil, pl.fail(StageFetch, fmt.Errorf("no fetch stage"))
	}

	f, err := pl.Fetch(ctx, p)
	if err != nil {
		return nil, pl.fail(StageFetch, err)
	}
	if f == nil {
		f = frame.Empty()
	}

	if pl.Transform != nil {
		f, err = pl.Transform(f, p)
		if err != nil {
			return nil, pl.fail(StageTransform, err)
		}
	}

	res := &Result{Rows: f.Len()}

	if pl.Summarize != nil {
		res.Status, err = pl.Summarize(f, p)
		if err != nil {
			return nil, pl.fail(StageSummarize, err)
		}
	}

	if pl.Render != nil {
		res.Document, err = pl.Render(f, p)
		if err != nil {
			return nil, pl.fail(StageRender, err)
		}
	}
	return res, nil
}

func (pl *Pipeline[P]) fail(stage Stage, err error) error {
	return &StageError{Pipeline: pl.Name, Stage: stage, Err: err}
}

func (pl *Pipeline[P]) logger() *slog.Logger {
	if pl.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return pl.Logger
}

// StageError reports which stage of which pipeline failed.
type StageError struct {
	Pipeline string
	Stage    Stage
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Pipeline, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Event describes a finished run for observers.
type Event struct {
	ID       string
	Pipeline string
	Variant  string
	Params   any
	Result   *Result
	Err      error
	Started  time.Time
	Elapsed  time.Duration
}

// Observer is notified after every run.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

type runIDKey struct{}

// WithRunID makes Run use id instead of generating one.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the id stored by WithRunID, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
