package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/ui/features/dashboard/components"
	"github.com/leapstack-labs/geodash/internal/ui/features/dashboard/pages"
	"github.com/leapstack-labs/geodash/internal/ui/notifier"
)

// SessionName is the cookie holding each app's last control values.
const SessionName = "geodash"

// Handlers provides HTTP handlers for the dashboard feature.
type Handlers struct {
	app          *apps.App
	sessionStore sessions.Store
	notifier     *notifier.Notifier
	logger       *slog.Logger
	isDev        bool
	refreshes    atomic.Int64
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(app *apps.App, sessionStore sessions.Store, notify *notifier.Notifier, logger *slog.Logger, isDev bool) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		app:          app,
		sessionStore: sessionStore,
		notifier:     notify,
		logger:       logger.With(slog.String("app", app.Name)),
		isDev:        isDev,
	}
}

// Page renders the dashboard with the output for the remembered (or
// default) control values.
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	values := h.loadValues(r)
	data := pages.DashboardData{
		Layout: *h.app.Layout,
		Values: values,
		IsDev:  h.isDev,
	}

	res, err := h.app.Run(r.Context(), values)
	if err != nil {
		h.logger.Error("initial render failed", slog.String("error", err.Error()))
		data.Status = err.Error()
		data.Failed = true
	} else {
		data.Document = res.Document
		data.Status = h.statusText(res.Status)
		w.Header().Set("X-Render-ID", res.ID)
	}

	if err := pages.DashboardPage(data).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Render re-runs the pipeline for the signals sent by the page and patches
// the output frame and status line.
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	var signals map[string]any
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	values := h.app.Normalize(signals)
	if err := h.saveValues(w, r, values); err != nil {
		h.logger.Warn("failed to save session", slog.String("error", err.Error()))
	}

	sse := datastar.NewSSE(w, r)
	if err := h.patchOutput(r.Context(), sse, values); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// Updates is the long-lived SSE endpoint. Each notifier ping swaps in a
// refresh element that asks the page for a new render with its current
// signals.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-updates:
			seq := int(h.refreshes.Add(1))
			if err := sse.PatchElementTempl(components.Refresh(seq), datastar.WithModeReplace()); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// Document returns the rendered document for the query parameters, without
// the dashboard around it.
func (h *Handlers) Document(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Run(r.Context(), apps.ValuesFromQuery(r.URL.Query()))
	if err != nil {
		h.logger.Error("document render failed", slog.String("error", err.Error()))
		http.Error(w, err.Error(), apps.StatusCode(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Render-ID", res.ID)
	_, _ = w.Write([]byte(res.Document))
}

func (h *Handlers) patchOutput(ctx context.Context, sse *datastar.ServerSentEventGenerator, values apps.Values) error {
	res, err := h.app.Run(ctx, values)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		h.logger.Error("render failed", slog.String("error", err.Error()))
		return sse.PatchElementTempl(components.Status(err.Error(), true))
	}

	if err := sse.MarshalAndPatchSignals(values); err != nil {
		return err
	}
	if err := sse.PatchElementTempl(components.Output(h.app.Layout.Frame, res.Document)); err != nil {
		return err
	}
	return sse.PatchElementTempl(components.Status(h.statusText(res.Status), false))
}

func (h *Handlers) statusText(status string) string {
	if !h.app.Layout.ShowStatus {
		return ""
	}
	return status
}

func (h *Handlers) loadValues(r *http.Request) apps.Values {
	sess, err := h.sessionStore.Get(r, SessionName)
	if err != nil {
		h.logger.Debug("ignoring unreadable session", slog.String("error", err.Error()))
	}
	var stored apps.Values
	if raw, ok := sess.Values[h.app.Name].(string); ok {
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			h.logger.Debug("ignoring stored values", slog.String("error", err.Error()))
		}
	}
	return h.app.Normalize(stored)
}

func (h *Handlers) saveValues(w http.ResponseWriter, r *http.Request, values apps.Values) error {
	sess, _ := h.sessionStore.Get(r, SessionName)
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	sess.Values[h.app.Name] = string(raw)
	return sess.Save(r, w)
}
