package apps

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/pipeline"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// Greetings returned by the hello apps.
const (
	HelloWorld = "Hello, World!"
	MyName     = "My name is Nick"
	HelloTest  = "Hello, this is a test"
)

// Fatal selects fatal (1) shootings. Any other integer is matched as given
// and reported as nonfatal, so fatal=2 counts zero rows.
var Fatal = pipeline.IntParam{Name: "fatal", Default: 0, Min: math.MinInt, Max: math.MaxInt}

func init() {
	Register(Info{Name: "hello", Description: "Plain text routes: / and /test"}, newHello)
	Register(Info{Name: "hello-template", Description: "Hello World plus an HTML page at /hello/"}, newHelloTemplate)
	Register(Info{Name: "hello-api", Description: "Counts recent shootings at /shootings/?days=&fatal="}, newHelloAPI)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func textHandler(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, text)
	}
}

// redirectToSlash permanently redirects a bare path to its trailing slash
// form, keeping the query string.
func redirectToSlash(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Path + "/"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusPermanentRedirect)
}

func staticRun(doc string) func(context.Context, Values) (*pipeline.Result, error) {
	return func(context.Context, Values) (*pipeline.Result, error) {
		return &pipeline.Result{Document: doc}, nil
	}
}

func newHello(_ context.Context, _ Deps) (*App, error) {
	return &App{
		Name:        "hello",
		Description: "Plain text routes",
		Routes: func(r chi.Router) {
			r.Get("/", textHandler(MyName))
			r.Get("/test", textHandler(HelloTest))
		},
		run: staticRun(MyName),
	}, nil
}

// HelloPage is the page served at /hello/.
func HelloPage() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<title>Hello</title></head><body><h1>Hello from geodash!</h1>`+
			`<p>This page is rendered from an HTML template.</p></body></html>`)
		return err
	})
}

func newHelloTemplate(ctx context.Context, _ Deps) (*App, error) {
	var b strings.Builder
	if err := HelloPage().Render(ctx, &b); err != nil {
		return nil, fmt.Errorf("failed to render hello page: %w", err)
	}
	doc := b.String()

	return &App{
		Name:        "hello-template",
		Description: "Hello World plus an HTML page",
		Routes: func(r chi.Router) {
			r.Get("/", textHandler(HelloWorld))
			r.Get("/hello", redirectToSlash)
			r.Get("/hello/", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = io.WriteString(w, doc)
			})
		},
		run: staticRun(doc),
	}, nil
}

type shootingCountParams struct {
	Days  int
	Fatal int
}

// CountSentence reports a fatal or nonfatal count.
func CountSentence(count, days, fatal int) string {
	kind := "nonfatal"
	if fatal == 1 {
		kind = "fatal"
	}
	return fmt.Sprintf("There have been %d %s shootings in the past %d days", count, kind, days)
}

func newHelloAPI(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.settings("hello-api", Settings{Source: "carto", Table: "shootings", Geometry: "none"})
	logger := deps.logger().With(slog.String("app", "hello-api"))

	pl := &pipeline.Pipeline[shootingCountParams]{
		Name: "hello-api",
		Fetch: func(ctx context.Context, p shootingCountParams) (*frame.Frame, error) {
			src, err := deps.source(ctx, cfg.Source)
			if err != nil {
				return nil, err
			}
			return src.Fetch(ctx, source.Query{
				Table:    cfg.Table,
				Where:    "date_ >= current_date - CAST($1 AS INTEGER) AND fatal = $2",
				Args:     []any{p.Days, p.Fatal},
				Geometry: cfg.Geometry,
			})
		},
		Summarize: func(f *frame.Frame, p shootingCountParams) (string, error) {
			if !f.Has("fatal") {
				return CountSentence(0, p.Days, p.Fatal), nil
			}
			n := f.CountWhere(func(r frame.Row) bool {
				v, ok := frame.AsInt(r.Get("fatal"))
				return ok && v == int64(p.Fatal)
			})
			return CountSentence(n, p.Days, p.Fatal), nil
		},
		Observers: deps.Observers,
		Logger:    logger,
	}

	app := &App{
		Name:        "hello-api",
		Description: "Counts recent shootings",
		Params:      []pipeline.Param{pipeline.Days, Fatal},
	}
	app.run = func(ctx context.Context, v Values) (*pipeline.Result, error) {
		res, err := pl.Run(ctx, shootingCountParams{Days: v["days"].(int), Fatal: v["fatal"].(int)})
		if err != nil {
			return nil, err
		}
		res.Document = res.Status
		return res, nil
	}
	app.Routes = func(r chi.Router) {
		r.Get("/", textHandler(HelloWorld))
		r.Get("/shootings", redirectToSlash)
		r.Get("/shootings/", func(w http.ResponseWriter, r *http.Request) {
			res, err := app.Run(r.Context(), ValuesFromQuery(r.URL.Query()))
			if err != nil {
				logger.Error("failed to count shootings", slog.String("error", err.Error()))
				writeText(w, StatusCode(err), err.Error())
				return
			}
			w.Header().Set("X-Render-ID", res.ID)
			writeText(w, http.StatusOK, res.Document)
		})
	}
	return app, nil
}
