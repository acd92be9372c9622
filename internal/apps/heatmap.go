package apps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/pipeline"
	"github.com/leapstack-labs/geodash/pkg/render/leaflet"
)

// HeatmapTransform adds lat/lng columns from the geometry and drops rows
// without coordinates.
func HeatmapTransform(f *frame.Frame) (*frame.Frame, error) {
	f, err := geo.WithPointColumns(f.Ensure(geo.GeometryColumn), "lat", "lng")
	if err != nil {
		return nil, err
	}
	return f.DropNA("lat", "lng")
}

func newHeatmap(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.settings("heatmap", shootingsDefaults)
	logger := deps.logger().With(slog.String("app", "heatmap"))

	pl := &pipeline.Pipeline[daysParams]{
		Name:  "heatmap",
		Fetch: recentShootings(deps, cfg),
		Transform: func(f *frame.Frame, _ daysParams) (*frame.Frame, error) {
			return HeatmapTransform(f)
		},
		Summarize: func(_ *frame.Frame, p daysParams) (string, error) {
			return fmt.Sprintf("Days = %d", p.Days), nil
		},
		Render: func(f *frame.Frame, _ daysParams) (string, error) {
			points, err := leaflet.PointsFromFrame(f, "lat", "lng")
			if err != nil {
				return "", err
			}
			return leaflet.Document(leaflet.Philadelphia(points))
		},
		Observers: deps.Observers,
		Logger:    logger,
	}

	return &App{
		Name:        "heatmap",
		Description: "Heat map of recent shootings",
		Params:      []pipeline.Param{pipeline.Days},
		Layout: &Layout{
			Title:       "Dash + Folium: Philadelphia Shootings",
			Heading:     "Shootings in Philadelphia",
			Stylesheets: []string{ExternalStylesheet},
			Controls:    []Control{daysSlider()},
			Frame:       Frame{Width: 800, Height: 500},
			ShowStatus:  true,
		},
		run: func(ctx context.Context, v Values) (*pipeline.Result, error) {
			return pl.Run(ctx, daysParams{Days: v["days"].(int)})
		},
	}, nil
}
