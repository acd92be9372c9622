// Package leaflet renders heat maps as self-contained Leaflet documents.
package leaflet

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

// Tile layers.
const (
	CartoPositron            = "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png"
	CartoPositronAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`
)

// Script and stylesheet locations.
const (
	LeafletCSS  = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"
	LeafletJS   = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"
	LeafletHeat = "https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js"
)

// Point is a weighted heat map sample.
type Point struct {
	Lat, Lng  float64
	Intensity float64
}

// HeatMap describes a single-layer heat map.
type HeatMap struct {
	Center      [2]float64 // lat, lng
	Zoom        int
	Tiles       string
	Attribution string
	Radius      int
	Blur        int
	Points      []Point
}

// Philadelphia returns the default heat map around Philadelphia.
func Philadelphia(points []Point) HeatMap {
	return HeatMap{
		Center:      [2]float64{39.99, -75.13},
		Zoom:        12,
		Tiles:       CartoPositron,
		Attribution: CartoPositronAttribution,
		Radius:      25,
		Blur:        15,
		Points:      points,
	}
}

// PointsFromFrame reads lat/lng columns. Rows with a missing coordinate
// are skipped. Every point has intensity 1.
func PointsFromFrame(f *frame.Frame, latCol, lngCol string) ([]Point, error) {
	for _, c := range []string{latCol, lngCol} {
		if !f.Has(c) {
			return nil, &frame.MissingColumnError{Column: c, Available: f.Columns()}
		}
	}
	points := make([]Point, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		lat, okLat := frame.AsFloat(f.Value(i, latCol))
		lng, okLng := frame.AsFloat(f.Value(i, lngCol))
		if !okLat || !okLng {
			continue
		}
		points = append(points, Point{Lat: lat, Lng: lng, Intensity: 1})
	}
	return points, nil
}

type mapData struct {
	Center      [2]float64   `json:"center"`
	Zoom        int          `json:"zoom"`
	Tiles       string       `json:"tiles"`
	Attribution string       `json:"attribution"`
	Radius      int          `json:"radius"`
	Blur        int          `json:"blur"`
	Points      [][3]float64 `json:"points"`
}

const mapScript = `(function(){var d=JSON.parse(document.getElementById('heatmap-data').textContent);` +
	`var m=L.map('map').setView(d.center,d.zoom);` +
	`L.tileLayer(d.tiles,{attribution:d.attribution,maxZoom:19}).addTo(m);` +
	`L.heatLayer(d.points,{radius:d.radius,blur:d.blur}).addTo(m);})();`

// Page is a full-viewport HTML page showing the heat map.
func Page(hm HeatMap) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		data := mapData{
			Center:      hm.Center,
			Zoom:        hm.Zoom,
			Tiles:       hm.Tiles,
			Attribution: hm.Attribution,
			Radius:      hm.Radius,
			Blur:        hm.Blur,
			Points:      make([][3]float64, len(hm.Points)),
		}
		for i, p := range hm.Points {
			data.Points[i] = [3]float64{p.Lat, p.Lng, p.Intensity}
		}

		head := `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Heat map</title>` +
			`<meta name="viewport" content="width=device-width, initial-scale=1.0">` +
			`<link rel="stylesheet" href="` + LeafletCSS + `">` +
			`<script src="` + LeafletJS + `"></script><script src="` + LeafletHeat + `"></script>` +
			`<style>html,body{margin:0;height:100%}#map{position:absolute;top:0;bottom:0;right:0;left:0}</style>` +
			`</head><body><div id="map"></div>`
		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if err := templ.JSONScript("heatmap-data", data).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<script>`+mapScript+`</script></body></html>`)
		return err
	})
}

// Document renders hm into a complete HTML document string.
func Document(hm HeatMap) (string, error) {
	if hm.Tiles == "" {
		return "", fmt.Errorf("heat map has no tile layer")
	}
	var b strings.Builder
	if err := Page(hm).Render(context.Background(), &b); err != nil {
		return "", fmt.Errorf("failed to render heat map: %w", err)
	}
	return b.String(), nil
}
