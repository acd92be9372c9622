// Package router sets up HTTP routes for the UI server.
package router

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/geodash/internal/apps"
	dashboardFeature "github.com/leapstack-labs/geodash/internal/ui/features/dashboard"
	"github.com/leapstack-labs/geodash/internal/ui/notifier"
	"github.com/leapstack-labs/geodash/internal/ui/resources"
)

// Health is the /healthz response body.
type Health struct {
	Status    string `json:"status"`
	App       string `json:"app"`
	Listeners int    `json:"listeners"`
}

// SetupRoutes configures all routes for one app.
func SetupRoutes(
	router chi.Router,
	app *apps.App,
	sessionStore *sessions.CookieStore,
	notify *notifier.Notifier,
	logger *slog.Logger,
	isDev bool,
) error {
	// Hot reload endpoint for dev mode
	if isDev {
		setupReload(router)
	}

	// Static assets
	router.Handle("/static/*", resources.Handler())

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Health{Status: "ok", App: app.Name, Listeners: notify.Listeners()})
	})

	if app.IsDashboard() {
		if err := dashboardFeature.SetupRoutes(router, app, sessionStore, notify, logger, isDev); err != nil {
			return err
		}
	}

	// App specific routes
	if app.Routes != nil {
		app.Routes(router)
	}

	return nil
}

func setupReload(router chi.Router) {
	reloadChan := make(chan struct{}, 1)
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		select {
		case <-reloadChan:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case reloadChan <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
