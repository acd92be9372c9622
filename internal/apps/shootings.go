package apps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/pipeline"
	"github.com/leapstack-labs/geodash/pkg/render/vegalite"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// NeighborhoodsURL is the default neighborhood boundary layer.
const NeighborhoodsURL = "https://raw.githubusercontent.com/MUSA-620-Fall-2019/week-13/master/data/zillow_neighborhoods.geojson"

// NeighborhoodColumn is the boundary property joined onto each shooting.
const NeighborhoodColumn = "ZillowName"

// DaysLabel labels the days slider.
const DaysLabel = "Select the number of days to query"

var shootingsDefaults = Settings{
	Source:     "carto",
	Table:      "shootings",
	Geometry:   "the_geom",
	Boundaries: NeighborhoodsURL,
}

func init() {
	Register(Info{Name: "shootings", Description: "Shootings by neighborhood, age and race", Dashboard: true}, newShootings)
	Register(Info{Name: "heatmap", Description: "Heat map of recent shootings", Dashboard: true}, newHeatmap)
}

type daysParams struct {
	Days int
}

func daysSlider() Control {
	return Control{
		Kind:  Slider,
		Param: pipeline.Days.Name,
		Label: DaysLabel,
		Min:   pipeline.Days.Min,
		Max:   pipeline.Days.Max,
		Step:  1,
		Marks: []int{pipeline.Days.Min, pipeline.Days.Max},
	}
}

// recentShootings returns a fetch stage for shootings in the last p.Days days.
func recentShootings(deps Deps, cfg Settings) func(context.Context, daysParams) (*frame.Frame, error) {
	return func(ctx context.Context, p daysParams) (*frame.Frame, error) {
		src, err := deps.source(ctx, cfg.Source)
		if err != nil {
			return nil, err
		}
		return src.Fetch(ctx, source.Query{
			Table:    cfg.Table,
			Where:    "date_ >= current_date - CAST($1 AS INTEGER)",
			Args:     []any{p.Days},
			Geometry: cfg.Geometry,
		})
	}
}

// ShootingsTransform recodes fatal to Yes/No, drops rows without a fatal
// flag and tags each row with its neighborhood.
func ShootingsTransform(f *frame.Frame, layer *geo.Layer) (*frame.Frame, error) {
	f = f.Ensure("fatal", "race", "age", geo.GeometryColumn)
	f, err := f.Recode("fatal", map[int64]any{0: "No", 1: "Yes"})
	if err != nil {
		return nil, err
	}
	if f, err = f.DropNA("fatal"); err != nil {
		return nil, err
	}
	return geo.Join(f, layer, NeighborhoodColumn)
}

// ShootingsSummary counts all rows and the fatal ones.
func ShootingsSummary(f *frame.Frame, days int) string {
	homicides := f.CountWhere(func(r frame.Row) bool { return r.Get("fatal") == "Yes" })
	return fmt.Sprintf("There have been %d shootings and %d homicides in the last %d days.", f.Len(), homicides, days)
}

// ShootingsChart builds the neighborhood, age and race panels linked by a
// brush on the neighborhood axis.
func ShootingsChart(f *frame.Frame, days int) (vegalite.Spec, error) {
	f, err := f.DropNA(NeighborhoodColumn)
	if err != nil {
		return vegalite.Spec{}, err
	}
	if f, err = f.Select(NeighborhoodColumn, "fatal", "race", "age"); err != nil {
		return vegalite.Spec{}, err
	}

	hood := vegalite.Field(NeighborhoodColumn, vegalite.Nominal)
	hood.Title = "Neighborhood"
	hood.Sort = &vegalite.SortField{Op: "count", Order: "descending"}

	count := vegalite.Count()
	count.Title = "Number of Shootings"

	byHood := vegalite.Spec{
		Title: fmt.Sprintf("Shootings in the Last %d Days by Neighborhood", days),
		Mark:  &vegalite.Mark{Type: "bar"},
		Encoding: &vegalite.Encoding{
			Y: hood,
			X: count,
			Color: &vegalite.Channel{
				Condition: &vegalite.Condition{
					Param: "brush",
					Field: "fatal",
					Type:  vegalite.Nominal,
					Title: "Fatal?",
				},
				Value: "lightgray",
			},
			Tooltip: []vegalite.Channel{
				{Aggregate: "count", Type: vegalite.Quantitative, Title: "Number of Shootings"},
				{Field: NeighborhoodColumn, Type: vegalite.Nominal, Title: "Neighborhood"},
				{Field: "fatal", Type: vegalite.Nominal, Title: "Fatal?"},
			},
		},
		Params: []vegalite.Param{vegalite.Interval("brush", "y")},
		Width:  400,
		Height: 800,
	}

	age := vegalite.Field("age", vegalite.Quantitative)
	age.Bin = &vegalite.Bin{}
	age.Scale = &vegalite.Scale{Domain: []any{0, 100}}
	byAge := vegalite.Spec{
		Title: "Number of Shootings by Victim's Age",
		Mark:  &vegalite.Mark{Type: "bar"},
		Encoding: &vegalite.Encoding{
			Y:     age,
			X:     vegalite.Count(),
			Color: vegalite.Field("fatal", vegalite.Nominal),
			Tooltip: []vegalite.Channel{
				*vegalite.Count(),
				*vegalite.Field("age", vegalite.Quantitative),
				*vegalite.Field("fatal", vegalite.Nominal),
			},
		},
		Transform: []vegalite.Transform{vegalite.FilterBy("brush")},
		Width:     300,
	}

	byRace := vegalite.Spec{
		Title: "Number of Shootings by Victim's Race",
		Mark:  &vegalite.Mark{Type: "bar"},
		Encoding: &vegalite.Encoding{
			Y:     vegalite.Field("race", vegalite.Nominal),
			X:     vegalite.Count(),
			Color: vegalite.Field("fatal", vegalite.Nominal),
			Tooltip: []vegalite.Channel{
				*vegalite.Count(),
				*vegalite.Field("race", vegalite.Nominal),
				*vegalite.Field("fatal", vegalite.Nominal),
			},
		},
		Transform: []vegalite.Transform{vegalite.FilterBy("brush")},
		Width:     300,
	}

	return vegalite.Spec{
		Schema: vegalite.SchemaURL,
		Data:   vegalite.DataFromFrame(f),
		HConcat: []vegalite.Spec{
			byHood,
			{VConcat: []vegalite.Spec{byAge, byRace}},
		},
	}, nil
}

func newShootings(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.settings("shootings", shootingsDefaults)
	logger := deps.logger().With(slog.String("app", "shootings"))

	layer, err := deps.loadLayer(ctx, cfg.Boundaries)
	if err != nil {
		return nil, fmt.Errorf("failed to load neighborhoods: %w", err)
	}
	logger.Debug("loaded neighborhoods", slog.Int("areas", len(layer.Areas)))

	pl := &pipeline.Pipeline[daysParams]{
		Name:  "shootings",
		Fetch: recentShootings(deps, cfg),
		Transform: func(f *frame.Frame, _ daysParams) (*frame.Frame, error) {
			return ShootingsTransform(f, layer)
		},
		Summarize: func(f *frame.Frame, p daysParams) (string, error) {
			return ShootingsSummary(f, p.Days), nil
		},
		Render: func(f *frame.Frame, p daysParams) (string, error) {
			spec, err := ShootingsChart(f, p.Days)
			if err != nil {
				return "", err
			}
			return vegalite.Document(spec)
		},
		Observers: deps.Observers,
		Logger:    logger,
	}

	return &App{
		Name:        "shootings",
		Description: "Shootings by neighborhood, age and race",
		Params:      []pipeline.Param{pipeline.Days},
		Layout: &Layout{
			Title:       "Dash: Philadelphia Shootings",
			Heading:     "Shootings in Philadelphia",
			Stylesheets: []string{ExternalStylesheet},
			Controls:    []Control{daysSlider()},
			Frame:       Frame{Width: 1100, Height: 1000},
			ShowStatus:  true,
			StatusAbove: true,
		},
		run: func(ctx context.Context, v Values) (*pipeline.Result, error) {
			return pl.Run(ctx, daysParams{Days: v["days"].(int)})
		},
	}, nil
}
