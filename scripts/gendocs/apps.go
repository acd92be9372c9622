package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/ui/notifier"
	"github.com/leapstack-labs/geodash/internal/ui/router"
	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/pipeline"
)

// docDeps builds apps without touching the network: no sources and an
// empty boundary layer. Only routes and parameters are read.
func docDeps() apps.Deps {
	return apps.Deps{
		LoadLayer: func(context.Context, string) (*geo.Layer, error) {
			return &geo.Layer{}, nil
		},
	}
}

// generateAppDocs writes apps.md: every app with its parameters and the
// HTTP routes geodash serve mounts for it.
func generateAppDocs(ctx context.Context, outDir string) error {
	log.Printf("Generating app docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Apps", "Built-in apps, their parameters and routes")
	w.GeneratedMarker()
	w.Header(1, "Apps")
	w.Paragraph(fmt.Sprintf("Serve an app with %s or render it once with %s. "+
		"Parameters are read from the query string, %s flags or dashboard controls; "+
		"values out of range are clamped and unknown values fall back to the default.",
		InlineCode("geodash serve <app>"), InlineCode("geodash render <app>"), InlineCode("--set")))

	for _, info := range apps.List() {
		app, err := apps.Build(ctx, info.Name, docDeps())
		if err != nil {
			return err
		}
		routes, err := appRoutes(app)
		if err != nil {
			return fmt.Errorf("failed to list routes of %s: %w", info.Name, err)
		}
		writeApp(w, app, routes)
	}

	if err := writePage(outDir, "apps.md", w); err != nil {
		return err
	}
	log.Printf("  Generated apps.md")
	return nil
}

func writeApp(w *MarkdownWriter, app *apps.App, routes []string) {
	w.Header(2, app.Name)
	kind := "Plain routes."
	if app.IsDashboard() {
		kind = fmt.Sprintf("Dashboard: %s.", app.Layout.Title)
	}
	if app.HasSVG() {
		kind += " Also renders a static SVG chart."
	}
	w.Paragraph(app.Description + ". " + kind)

	if len(app.Params) > 0 {
		rows := make([][]string, 0, len(app.Params))
		for _, p := range app.Params {
			rows = append(rows, paramRow(p))
		}
		w.Table([]string{"Parameter", "Default", "Accepts"}, rows)
	}

	w.BulletList(routes)
}

func paramRow(p pipeline.Param) []string {
	accepts := ""
	switch p := p.(type) {
	case pipeline.IntParam:
		accepts = intRange(p)
	case pipeline.ChoiceParam:
		accepts = strings.Join(mapStrings(p.Choices, InlineCode), ", ")
	}
	return []string{InlineCode(p.Key()), InlineCode(fmt.Sprint(p.DefaultValue())), accepts}
}

func intRange(p pipeline.IntParam) string {
	const bound = 1 << 31
	switch {
	case p.Min <= -bound && p.Max >= bound:
		return "any integer"
	case p.Max >= bound:
		return fmt.Sprintf("integer, at least %d", p.Min)
	default:
		return fmt.Sprintf("integer, %d to %d", p.Min, p.Max)
	}
}

// appRoutes mounts app on a fresh router the way serve does and lists
// "METHOD /path" for every route, sorted by path.
func appRoutes(app *apps.App) ([]string, error) {
	r := chi.NewRouter()
	store := sessions.NewCookieStore([]byte("gendocs"))
	logger := slog.New(slog.DiscardHandler)
	if err := router.SetupRoutes(r, app, store, notifier.New(), logger, false); err != nil {
		return nil, err
	}

	methods := map[string][]string{}
	err := chi.Walk(r, func(method, path string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		methods[path] = append(methods[path], method)
		return nil
	})
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(methods))
	for p := range methods {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		ms := methods[p]
		sort.Strings(ms)
		// Handle registers every method.
		label := strings.Join(ms, ",")
		if len(ms) > 2 {
			label = "ANY"
		}
		out = append(out, InlineCode(label+" "+p))
	}
	return out, nil
}
