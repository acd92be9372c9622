package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	geojson "github.com/paulmach/go.geojson"

	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/geo"
)

// BaseSQLSource provides database/sql functionality for sources.
// Embed it in concrete implementations to get Close and Fetch.
type BaseSQLSource struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger

	// GeometryExpr wraps Query.Geometry in the select list.
	GeometryExpr func(col string) string
}

// Close closes the database connection.
func (b *BaseSQLSource) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLSource) IsConnected() bool {
	return b.DB != nil
}

// Fetch renders q and runs it with its Args as driver parameters.
func (b *BaseSQLSource) Fetch(ctx context.Context, q Query) (*frame.Frame, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	stmt, err := q.SQL(b.GeometryExpr)
	if err != nil {
		return nil, err
	}
	if b.Logger != nil {
		b.Logger.Debug("fetching rows", slog.String("sql", stmt), slog.Int("args", len(q.Args)))
	}

	rows, err := b.DB.QueryContext(ctx, stmt, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return ScanFrame(rows)
}

// ScanFrame reads all rows into a frame. Byte slices become strings, a
// "geometry" column of GeoJSON text is decoded, and point_x/point_y or
// lng/lat column pairs are turned into point geometries when no geometry
// column exists.
func ScanFrame(rows *sql.Rows) (*frame.Frame, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var data [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range vals {
			if bs, ok := v.([]byte); ok {
				vals[i] = string(bs)
			}
		}
		data = append(data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	f, err := frame.New(cols, data)
	if err != nil {
		return nil, err
	}
	return WithGeometry(f)
}

// WithGeometry normalizes the spatial columns of a SQL result.
func WithGeometry(f *frame.Frame) (*frame.Frame, error) {
	if f.Has(geo.GeometryColumn) {
		return f.Apply(geo.GeometryColumn, decodeGeometry)
	}
	for _, pair := range [][2]string{{"point_x", "point_y"}, {"lng", "lat"}, {"lon", "lat"}} {
		if f.Has(pair[0]) && f.Has(pair[1]) {
			x, y := pair[0], pair[1]
			return f.WithColumn(geo.GeometryColumn, func(r frame.Row) any {
				if g := geo.PointFromXY(r.Get(x), r.Get(y)); g != nil {
					return g
				}
				return nil
			}), nil
		}
	}
	return f, nil
}

func decodeGeometry(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	g, err := geojson.UnmarshalGeometry([]byte(s))
	if err != nil {
		return nil
	}
	return g
}
