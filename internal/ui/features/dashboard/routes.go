// Package dashboard provides the reactive dashboard feature: a page whose
// controls re-run the app pipeline over SSE.
package dashboard

import (
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/ui/notifier"
)

// SetupRoutes configures routes for the dashboard feature.
func SetupRoutes(
	router chi.Router,
	app *apps.App,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	logger *slog.Logger,
	isDev bool,
) error {
	if !app.IsDashboard() {
		return fmt.Errorf("app %s has no dashboard", app.Name)
	}
	handlers := NewHandlers(app, sessionStore, notify, logger, isDev)

	router.Get("/", handlers.Page)
	router.Get("/render", handlers.Render)
	router.Get("/updates", handlers.Updates)
	router.Get("/document", handlers.Document)

	return nil
}
