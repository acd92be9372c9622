package apps

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/geodash/pkg/datasets"
	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/pipeline"
	"github.com/leapstack-labs/geodash/pkg/render/svgchart"
	"github.com/leapstack-labs/geodash/pkg/render/vegalite"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// CarsColumns are the columns offered on both axes.
var CarsColumns = []string{
	"Miles_per_Gallon",
	"Acceleration",
	"Displacement",
	"Cylinders",
	"Weight_in_lbs",
}

// Axis parameters of the cars dashboard.
var (
	XAxis = pipeline.ChoiceParam{Name: "x", Default: "Acceleration", Choices: CarsColumns}
	YAxis = pipeline.ChoiceParam{Name: "y", Default: "Miles_per_Gallon", Choices: CarsColumns}
)

// BuiltinSource names the in-process copy of a bundled dataset.
const BuiltinSource = "builtin"

// ExternalStylesheet is the stylesheet the dashboards load.
const ExternalStylesheet = "https://codepen.io/chriddyp/pen/bWLwgP.css"

func init() {
	Register(Info{Name: "cars", Description: "Cars scatter plot with a linked horsepower histogram", Dashboard: true}, newCars)
}

type carsParams struct {
	X, Y string
}

// CarsChart builds the brushed scatter plus histogram view.
func CarsChart(f *frame.Frame, x, y string) vegalite.Spec {
	data := vegalite.DataFromFrame(f)
	origin := vegalite.Field("Origin", vegalite.Nominal)

	scatter := vegalite.Spec{
		Mark: &vegalite.Mark{Type: "point"},
		Encoding: &vegalite.Encoding{
			X:     vegalite.Field(x, vegalite.Quantitative),
			Y:     vegalite.Field(y, vegalite.Quantitative),
			Color: origin,
		},
		Params: []vegalite.Param{vegalite.Interval("brush")},
		Width:  250,
		Height: 400,
	}

	hp := vegalite.Field("Horsepower", vegalite.Quantitative)
	hp.Bin = &vegalite.Bin{}
	hist := vegalite.Spec{
		Mark: &vegalite.Mark{Type: "bar"},
		Encoding: &vegalite.Encoding{
			X:     hp,
			Y:     vegalite.Count(),
			Color: origin,
		},
		Transform: []vegalite.Transform{vegalite.FilterBy("brush")},
		Height:    375,
	}

	return vegalite.Spec{
		Schema:  vegalite.SchemaURL,
		Data:    data,
		HConcat: []vegalite.Spec{scatter, hist},
	}
}

func newCars(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.settings("cars", Settings{Source: "cars", Table: "cars", Geometry: "none"})
	logger := deps.logger().With(slog.String("app", "cars"))

	fetch := func(ctx context.Context, _ carsParams) (*frame.Frame, error) {
		if cfg.Source == BuiltinSource {
			return datasets.CarsFrame()
		}
		src, err := deps.source(ctx, cfg.Source)
		if err != nil {
			return nil, err
		}
		return src.Fetch(ctx, source.Query{Table: cfg.Table, Geometry: cfg.Geometry})
	}

	pl := &pipeline.Pipeline[carsParams]{
		Name:  "cars",
		Fetch: fetch,
		Render: func(f *frame.Frame, p carsParams) (string, error) {
			return vegalite.Document(CarsChart(f, p.X, p.Y))
		},
		Observers: deps.Observers,
		Logger:    logger,
	}

	svg := &pipeline.Pipeline[carsParams]{
		Name:    "cars",
		Variant: "svg",
		Fetch:   fetch,
		Render: func(f *frame.Frame, p carsParams) (string, error) {
			s, err := svgchart.ScatterFromFrame(f, p.X, p.Y, "Origin")
			if err != nil {
				return "", err
			}
			s.Title = p.Y + " vs " + p.X
			b, err := svgchart.SVG(s)
			return string(b), err
		},
		Observers: deps.Observers,
		Logger:    logger,
	}

	app := &App{
		Name:        "cars",
		Description: "Cars scatter plot with a linked horsepower histogram",
		Params:      []pipeline.Param{XAxis, YAxis},
		Layout: &Layout{
			Title:       "Testing Dash and Altair",
			Stylesheets: []string{ExternalStylesheet},
			Controls: []Control{
				{Kind: Dropdown, Param: "x", Label: "x-axis", Options: CarsColumns},
				{Kind: Dropdown, Param: "y", Label: "y-axis", Options: CarsColumns},
			},
			Frame: Frame{Width: 1000, Height: 500},
		},
	}
	params := func(v Values) carsParams {
		return carsParams{X: v["x"].(string), Y: v["y"].(string)}
	}
	app.run = func(ctx context.Context, v Values) (*pipeline.Result, error) {
		return pl.Run(ctx, params(v))
	}
	app.svg = func(ctx context.Context, v Values) (*pipeline.Result, error) {
		return svg.Run(ctx, params(v))
	}
	app.Routes = func(r chi.Router) {
		r.Get("/chart.svg", func(w http.ResponseWriter, r *http.Request) {
			res, err := app.RenderSVG(r.Context(), ValuesFromQuery(r.URL.Query()))
			if err != nil {
				logger.Error("failed to render svg chart", slog.String("error", err.Error()))
				writeText(w, StatusCode(err), err.Error())
				return
			}
			w.Header().Set("Content-Type", "image/svg+xml")
			_, _ = w.Write([]byte(res.Document))
		})
	}
	return app, nil
}
