package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/leapstack-labs/geodash/pkg/pipeline"
)

const recordTimeout = 5 * time.Second

// Observer records every pipeline run into store. Failures to record are
// logged and never affect the run.
func Observer(store Store, logger *slog.Logger) pipeline.Observer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return pipeline.ObserverFunc(func(ctx context.Context, ev pipeline.Event) {
		// A client that went away still gets its run recorded.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()

		if err := store.Record(ctx, FromEvent(ev)); err != nil {
			logger.Warn("failed to record render",
				slog.String("id", ev.ID),
				slog.String("error", err.Error()))
		}
	})
}

// FromEvent converts a pipeline event to a Render.
func FromEvent(ev pipeline.Event) *Render {
	r := &Render{
		ID:        ev.ID,
		App:       ev.Pipeline,
		Variant:   ev.Variant,
		StartedAt: ev.Started,
		Elapsed:   ev.Elapsed,
	}
	if raw, err := json.Marshal(ev.Params); err == nil {
		r.Params = raw
	}
	if ev.Result != nil {
		r.Status = ev.Result.Status
		r.Rows = ev.Result.Rows
	}
	if ev.Err != nil {
		r.Error = ev.Err.Error()
	}
	return r
}
