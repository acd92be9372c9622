// Package svgchart renders static scatter charts server-side with go-chart.
// The output needs no JavaScript in the browser.
package svgchart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/a-h/templ"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

// Group is one colored series of points.
type Group struct {
	Name string
	X, Y []float64
}

// Scatter is a grouped scatter chart.
type Scatter struct {
	Title  string
	XLabel string
	YLabel string
	Width  int
	Height int
	Groups []Group
}

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorOrange,
	chart.ColorGreen,
	chart.ColorRed,
	chart.ColorAlternateGray,
}

// ScatterFromFrame groups (x, y) pairs by groupCol. Rows with a missing or
// non-numeric coordinate are skipped; groups are sorted by name.
func ScatterFromFrame(f *frame.Frame, xCol, yCol, groupCol string) (Scatter, error) {
	for _, c := range []string{xCol, yCol, groupCol} {
		if !f.Has(c) {
			return Scatter{}, &frame.MissingColumnError{Column: c, Available: f.Columns()}
		}
	}

	byName := make(map[string]*Group)
	for i := 0; i < f.Len(); i++ {
		x, okX := frame.AsFloat(f.Value(i, xCol))
		y, okY := frame.AsFloat(f.Value(i, yCol))
		if !okX || !okY {
			continue
		}
		name := fmt.Sprint(f.Value(i, groupCol))
		if frame.IsMissing(f.Value(i, groupCol)) {
			name = "unknown"
		}
		g, ok := byName[name]
		if !ok {
			g = &Group{Name: name}
			byName[name] = g
		}
		g.X = append(g.X, x)
		g.Y = append(g.Y, y)
	}

	s := Scatter{XLabel: xCol, YLabel: yCol, Width: 640, Height: 480}
	for _, g := range byName {
		s.Groups = append(s.Groups, *g)
	}
	sort.Slice(s.Groups, func(i, j int) bool { return s.Groups[i].Name < s.Groups[j].Name })
	return s, nil
}

// SVG renders the chart.
func SVG(s Scatter) ([]byte, error) {
	xr, yr := bounds(s.Groups)

	var series []chart.Series
	for i, g := range s.Groups {
		if len(g.X) == 0 {
			continue
		}
		col := palette[i%len(palette)]
		series = append(series, chart.ContinuousSeries{
			Name:    g.Name,
			XValues: g.X,
			YValues: g.Y,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    col.WithAlpha(200),
			},
		})
	}
	if len(series) == 0 {
		// go-chart needs a visible series; this one draws nothing.
		series = append(series, chart.ContinuousSeries{
			XValues: []float64{xr.Min, xr.Max},
			YValues: []float64{yr.Min, yr.Max},
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				StrokeColor: drawing.ColorTransparent,
				DotWidth:    0,
				DotColor:    drawing.ColorTransparent,
			},
		})
	}

	ch := chart.Chart{
		Title:      s.Title,
		Width:      s.Width,
		Height:     s.Height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: s.XLabel, Range: xr},
		YAxis:      chart.YAxis{Name: s.YLabel, Range: yr},
		Series:     series,
	}
	if len(s.Groups) > 0 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render scatter chart: %w", err)
	}
	return buf.Bytes(), nil
}

// bounds computes padded axis ranges so a single point or an empty chart
// never produces a zero-width range.
func bounds(groups []Group) (*chart.ContinuousRange, *chart.ContinuousRange) {
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, g := range groups {
		for i := range g.X {
			xmin, xmax = math.Min(xmin, g.X[i]), math.Max(xmax, g.X[i])
			ymin, ymax = math.Min(ymin, g.Y[i]), math.Max(ymax, g.Y[i])
		}
	}
	return padded(xmin, xmax), padded(ymin, ymax)
}

func padded(lo, hi float64) *chart.ContinuousRange {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	span := hi - lo
	if span == 0 {
		span = math.Max(math.Abs(lo), 1)
	}
	pad := span * 0.05
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// Page wraps the rendered SVG into a static HTML page.
func Page(title string, svg []byte) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if title == "" {
			title = "chart"
		}
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+`</title><style>body{margin:0;font-family:sans-serif}</style></head><body>`); err != nil {
			return err
		}
		if _, err := w.Write(svg); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// Document renders s as a static HTML document with the SVG inlined.
func Document(s Scatter) (string, error) {
	svg, err := SVG(s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := Page(s.Title, svg).Render(context.Background(), &b); err != nil {
		return "", fmt.Errorf("failed to render chart document: %w", err)
	}
	return b.String(), nil
}
