// Package geo converts GeoJSON features into frames and joins point rows
// against polygon boundary layers.
package geo

import (
	"fmt"
	"sort"

	geojson "github.com/paulmach/go.geojson"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

// GeometryColumn is the frame column holding *geojson.Geometry values.
const GeometryColumn = "geometry"

// FrameFromFeatures turns a feature collection into a frame.
// Property keys become columns (sorted), followed by the geometry column.
func FrameFromFeatures(fc *geojson.FeatureCollection) (*frame.Frame, error) {
	if fc == nil {
		return frame.Empty(GeometryColumn), nil
	}

	keys := make(map[string]struct{})
	for _, feat := range fc.Features {
		for k := range feat.Properties {
			if k == GeometryColumn {
				continue
			}
			keys[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(keys)+1)
	for k := range keys {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	columns = append(columns, GeometryColumn)

	rows := make([][]any, len(fc.Features))
	for i, feat := range fc.Features {
		row := make([]any, len(columns))
		for j, c := range columns[:len(columns)-1] {
			row[j] = feat.Properties[c]
		}
		if feat.Geometry != nil {
			row[len(columns)-1] = feat.Geometry
		}
		rows[i] = row
	}

	return frame.New(columns, rows)
}

// FrameFromFeatureJSON decodes a GeoJSON FeatureCollection document.
func FrameFromFeatureJSON(data []byte) (*frame.Frame, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode feature collection: %w", err)
	}
	return FrameFromFeatures(fc)
}

// PointXY returns the longitude and latitude of a point geometry.
func PointXY(v any) (lng, lat float64, ok bool) {
	g, isGeom := v.(*geojson.Geometry)
	if !isGeom || g == nil || !g.IsPoint() || len(g.Point) < 2 {
		return 0, 0, false
	}
	return g.Point[0], g.Point[1], true
}

// WithPointColumns adds latitude and longitude columns derived from the
// geometry column. Rows without a point geometry get nil in both.
func WithPointColumns(f *frame.Frame, latCol, lngCol string) (*frame.Frame, error) {
	if !f.Has(GeometryColumn) {
		return nil, &frame.MissingColumnError{Column: GeometryColumn, Available: f.Columns()}
	}
	out := f.WithColumn(latCol, func(r frame.Row) any {
		if _, lat, ok := PointXY(r.Get(GeometryColumn)); ok {
			return lat
		}
		return nil
	})
	out = out.WithColumn(lngCol, func(r frame.Row) any {
		if lng, _, ok := PointXY(r.Get(GeometryColumn)); ok {
			return lng
		}
		return nil
	})
	return out, nil
}

// PointFromXY builds a point geometry, or nil when either coordinate is missing.
func PointFromXY(x, y any) *geojson.Geometry {
	lng, okX := frame.AsFloat(x)
	lat, okY := frame.AsFloat(y)
	if !okX || !okY {
		return nil
	}
	return geojson.NewPointGeometry([]float64{lng, lat})
}
