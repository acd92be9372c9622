// Package apps defines the demo applications served by geodash.
//
// An App is either a dashboard (a page with controls whose changes re-run
// a pipeline and swap the rendered document into an embedded frame) or a
// set of plain routes. Both kinds expose Run so the CLI can render them
// without a server.
package apps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/pipeline"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// Values holds raw parameter values keyed by parameter name.
type Values map[string]any

// ValuesFromQuery takes the first value of every query key.
func ValuesFromQuery(q url.Values) Values {
	v := make(Values, len(q))
	for k, vals := range q {
		if len(vals) > 0 {
			v[k] = vals[0]
		}
	}
	return v
}

// ParseAssignments reads key=value pairs as given to --set.
func ParseAssignments(pairs []string) (Values, error) {
	v := make(Values, len(pairs))
	for _, p := range pairs {
		k, val, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", p)
		}
		v[k] = val
	}
	return v, nil
}

// ControlKind selects how a control is drawn.
type ControlKind string

const (
	Slider   ControlKind = "slider"
	Dropdown ControlKind = "dropdown"
)

// Control is one input on a dashboard. Param names the parameter it binds.
type Control struct {
	Kind    ControlKind
	Param   string
	Label   string
	Min     int
	Max     int
	Step    int
	Marks   []int
	Options []string
}

// Frame sizes the embedded document.
type Frame struct {
	Width  int
	Height int
}

// Layout describes a dashboard page.
type Layout struct {
	Title       string
	Heading     string
	Stylesheets []string
	Controls    []Control
	Frame       Frame
	// ShowStatus renders the summary text next to the controls.
	ShowStatus bool
	// StatusAbove puts the summary before the controls instead of after.
	StatusAbove bool
}

// App is a built demo application.
type App struct {
	Name        string
	Description string
	Params      []pipeline.Param
	// Layout is nil for apps that only serve plain routes.
	Layout *Layout
	// Routes mounts app specific handlers. Dashboards may leave it nil.
	Routes func(r chi.Router)

	run func(ctx context.Context, v Values) (*pipeline.Result, error)
	svg func(ctx context.Context, v Values) (*pipeline.Result, error)
}

// IsDashboard reports whether the app has a dashboard page.
func (a *App) IsDashboard() bool {
	return a.Layout != nil
}

// Defaults returns every parameter at its default value.
func (a *App) Defaults() Values {
	v := make(Values, len(a.Params))
	for _, p := range a.Params {
		v[p.Key()] = p.DefaultValue()
	}
	return v
}

// Normalize returns valid values for every parameter. Unknown keys are dropped.
func (a *App) Normalize(v Values) Values {
	out := make(Values, len(a.Params))
	for _, p := range a.Params {
		out[p.Key()] = p.Normalize(v[p.Key()])
	}
	return out
}

// Run normalizes v and runs the app's pipeline.
func (a *App) Run(ctx context.Context, v Values) (*pipeline.Result, error) {
	if a.run == nil {
		return nil, fmt.Errorf("app %s has nothing to render", a.Name)
	}
	return a.run(ctx, a.Normalize(v))
}

// HasSVG reports whether the app renders a static SVG chart.
func (a *App) HasSVG() bool {
	return a.svg != nil
}

// RenderSVG normalizes v and renders the app's static SVG chart.
func (a *App) RenderSVG(ctx context.Context, v Values) (*pipeline.Result, error) {
	if a.svg == nil {
		return nil, fmt.Errorf("app %s has no SVG rendering", a.Name)
	}
	return a.svg(ctx, a.Normalize(v))
}

// StatusCode maps a run error to an HTTP status: upstream fetch failures
// are 502, anything else 500.
func StatusCode(err error) int {
	var se *pipeline.StageError
	if errors.As(err, &se) && se.Stage == pipeline.StageFetch {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// SourceProvider hands out connected sources by configured name.
type SourceProvider interface {
	Source(ctx context.Context, name string) (source.Source, error)
}

// LayerLoader loads a boundary layer from a file or URL.
type LayerLoader func(ctx context.Context, location string) (*geo.Layer, error)

// Settings bind an app to its data.
type Settings struct {
	// Source is the configured source name.
	Source string `koanf:"source" yaml:"source,omitempty"`
	Table  string `koanf:"table" yaml:"table,omitempty"`
	// Geometry is the geometry column; "none" disables it.
	Geometry string `koanf:"geometry" yaml:"geometry,omitempty"`
	// Boundaries is a GeoJSON file or URL with neighborhood polygons.
	Boundaries string `koanf:"boundaries" yaml:"boundaries,omitempty"`
}

// merge fills empty fields of s from def.
func (s Settings) merge(def Settings) Settings {
	if s.Source == "" {
		s.Source = def.Source
	}
	if s.Table == "" {
		s.Table = def.Table
	}
	if s.Geometry == "" {
		s.Geometry = def.Geometry
	}
	if s.Geometry == "none" {
		s.Geometry = ""
	}
	if s.Boundaries == "" {
		s.Boundaries = def.Boundaries
	}
	return s
}

// Deps are the shared services apps are built from.
type Deps struct {
	Sources   SourceProvider
	Settings  map[string]Settings
	LoadLayer LayerLoader
	Observers []pipeline.Observer
	Logger    *slog.Logger
}

func (d Deps) settings(app string, def Settings) Settings {
	return d.Settings[app].merge(def)
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

func (d Deps) loadLayer(ctx context.Context, location string) (*geo.Layer, error) {
	if d.LoadLayer != nil {
		return d.LoadLayer(ctx, location)
	}
	return geo.LoadLayer(ctx, location)
}

func (d Deps) source(ctx context.Context, name string) (source.Source, error) {
	if d.Sources == nil {
		return nil, fmt.Errorf("no sources configured")
	}
	return d.Sources.Source(ctx, name)
}

// Factory builds an app from shared dependencies.
type Factory func(ctx context.Context, deps Deps) (*App, error)

// Info describes a registered app.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Dashboard   bool   `json:"dashboard"`
}

type entry struct {
	info    Info
	factory Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]entry)
)

// Register adds an app factory. Called from init functions.
func Register(info Info, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.Name] = entry{info: info, factory: factory}
}

// Names returns the registered app names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List describes every registered app, sorted by name.
func List() []Info {
	names := Names()
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Info, 0, len(names))
	for _, n := range names {
		out = append(out, registry[n].info)
	}
	return out
}

// UnknownAppError is returned by Build for unregistered names.
type UnknownAppError struct {
	Name      string
	Available []string
}

func (e *UnknownAppError) Error() string {
	return fmt.Sprintf("unknown app %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Build constructs the named app.
func Build(ctx context.Context, name string, deps Deps) (*App, error) {
	registryMu.RLock()
	e, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownAppError{Name: name, Available: Names()}
	}
	app, err := e.factory(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build app %s: %w", name, err)
	}
	return app, nil
}
