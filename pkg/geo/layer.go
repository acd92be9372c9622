package geo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	geojson "github.com/paulmach/go.geojson"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

// Area is one polygon (or multipolygon) of a boundary layer.
type Area struct {
	Shape      orb.Geometry
	Bound      orb.Bound
	Properties map[string]any
}

// Layer is a set of reference polygons, e.g. neighborhood boundaries.
type Layer struct {
	Areas []Area
}

// ParseLayer decodes a GeoJSON FeatureCollection of polygons.
// Features that are not polygons or multipolygons are skipped.
func ParseLayer(data []byte) (*Layer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode boundary layer: %w", err)
	}

	layer := &Layer{}
	for _, feat := range fc.Features {
		shape := toOrb(feat.Geometry)
		if shape == nil {
			continue
		}
		layer.Areas = append(layer.Areas, Area{
			Shape:      shape,
			Bound:      shape.Bound(),
			Properties: feat.Properties,
		})
	}
	return layer, nil
}

// LoadLayer reads a boundary layer from an http(s) URL or a local file path.
func LoadLayer(ctx context.Context, location string) (*Layer, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		resp, err := resty.New().
			SetTimeout(60*time.Second).
			SetRetryCount(2).
			R().
			SetContext(ctx).
			SetHeader("Accept", "application/geo+json, application/json").
			Get(location)
		if err != nil {
			return nil, fmt.Errorf("failed to download boundary layer: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("failed to download boundary layer: %s returned %s", location, resp.Status())
		}
		return ParseLayer(resp.Body())
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary layer: %w", err)
	}
	return ParseLayer(data)
}

// Locate returns the first area containing the point, if any.
func (l *Layer) Locate(p orb.Point) (*Area, bool) {
	if l == nil {
		return nil, false
	}
	for i := range l.Areas {
		a := &l.Areas[i]
		if !a.Bound.Contains(p) {
			continue
		}
		switch shape := a.Shape.(type) {
		case orb.Polygon:
			if planar.PolygonContains(shape, p) {
				return a, true
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(shape, p) {
				return a, true
			}
		}
	}
	return nil, false
}

// Join performs a left spatial join of point rows within the layer's areas.
// For each requested property a column is added; rows outside every area,
// or without a point geometry, get nil.
func Join(f *frame.Frame, layer *Layer, properties ...string) (*frame.Frame, error) {
	if !f.Has(GeometryColumn) {
		return nil, &frame.MissingColumnError{Column: GeometryColumn, Available: f.Columns()}
	}

	matches := make([]*Area, f.Len())
	for i := 0; i < f.Len(); i++ {
		lng, lat, ok := PointXY(f.Value(i, GeometryColumn))
		if !ok {
			continue
		}
		if area, found := layer.Locate(orb.Point{lng, lat}); found {
			matches[i] = area
		}
	}

	out := f
	for _, prop := range properties {
		out = out.WithColumn(prop, func(r frame.Row) any {
			area := matches[r.Index()]
			if area == nil {
				return nil
			}
			return area.Properties[prop]
		})
	}
	return out, nil
}

func toOrb(g *geojson.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	switch {
	case g.IsPolygon():
		return toPolygon(g.Polygon)
	case g.IsMultiPolygon():
		mp := make(orb.MultiPolygon, 0, len(g.MultiPolygon))
		for _, poly := range g.MultiPolygon {
			mp = append(mp, toPolygon(poly))
		}
		return mp
	}
	return nil
}

func toPolygon(rings [][][]float64) orb.Polygon {
	poly := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(orb.Ring, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				continue
			}
			r = append(r, orb.Point{pt[0], pt[1]})
		}
		poly = append(poly, r)
	}
	return poly
}
