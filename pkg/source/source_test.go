package source

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/geo"
)

func TestQuerySQL(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		geomExpr func(string) string
		expected string
	}{
		{
			name:     "star",
			query:    Query{Table: "shootings"},
			expected: "SELECT * FROM shootings",
		},
		{
			name: "columns where limit",
			query: Query{
				Table:   "shootings",
				Columns: []string{"fatal", "race"},
				Where:   "date_ >= current_date - CAST($1 AS INTEGER)",
				Limit:   10,
			},
			expected: "SELECT fatal, race FROM shootings WHERE date_ >= current_date - CAST($1 AS INTEGER) LIMIT 10",
		},
		{
			name:     "geometry wrapped",
			query:    Query{Table: "shootings", Columns: []string{"fatal"}, Geometry: "the_geom"},
			geomExpr: func(c string) string { return "ST_AsGeoJSON(" + c + ")" },
			expected: "SELECT fatal, ST_AsGeoJSON(the_geom) AS geometry FROM shootings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.query.SQL(tt.geomExpr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name  string
		query Query
	}{
		{"empty table", Query{}},
		{"injected table", Query{Table: "shootings; DROP TABLE x"}},
		{"bad column", Query{Table: "t", Columns: []string{"a b"}}},
		{"bad geometry", Query{Table: "t", Geometry: "1geom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.query.SQL(nil)
			assert.ErrorIs(t, err, ErrInvalidIdentifier)
		})
	}

	_, err := Query{Table: "t", Limit: -1}.SQL(nil)
	assert.Error(t, err)
}

func TestBind(t *testing.T) {
	tests := []struct {
		name     string
		stmt     string
		args     []any
		expected string
		wantErr  bool
	}{
		{
			name:     "ints",
			stmt:     "SELECT * FROM shootings WHERE date_ >= current_date - $1 AND fatal = $2",
			args:     []any{90, int64(0)},
			expected: "SELECT * FROM shootings WHERE date_ >= current_date - 90 AND fatal = 0",
		},
		{
			name:     "string is quoted and escaped",
			stmt:     "SELECT * FROM t WHERE name = $1",
			args:     []any{"o'brien'; DROP TABLE t; --"},
			expected: "SELECT * FROM t WHERE name = 'o''brien''; DROP TABLE t; --'",
		},
		{
			name:     "placeholder inside literal is untouched",
			stmt:     "SELECT '$1 it''s' AS a, \"$2\" FROM t WHERE x = $1",
			args:     []any{true},
			expected: "SELECT '$1 it''s' AS a, \"$2\" FROM t WHERE x = TRUE",
		},
		{
			name:     "two digit placeholder and null",
			stmt:     "$10 $1",
			args:     []any{nil, 2, 3, 4, 5, 6, 7, 8, 9, 1.5},
			expected: "1.5 NULL",
		},
		{
			name:     "negative numbers are parenthesized",
			stmt:     "SELECT * FROM t WHERE n = 10 -$1 AND x = 1 AND y > $2",
			args:     []any{-5, -0.25},
			expected: "SELECT * FROM t WHERE n = 10 -(-5) AND x = 1 AND y > (-0.25)",
		},
		{
			name:     "bare dollar",
			stmt:     "SELECT '$' || $ FROM t",
			expected: "SELECT '$' || $ FROM t",
		},
		{
			name:     "date",
			stmt:     "d >= $1",
			args:     []any{time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)},
			expected: "d >= DATE '2019-06-01'",
		},
		{name: "missing arg", stmt: "x = $2", args: []any{1}, wantErr: true},
		{name: "zero placeholder", stmt: "x = $0", args: []any{1}, wantErr: true},
		{name: "nan", stmt: "x = $1", args: []any{math.NaN()}, wantErr: true},
		{name: "unsupported type", stmt: "x = $1", args: []any{struct{}{}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Bind(tt.stmt, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

type stubSource struct {
	connectErr error
	closed     bool
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Connect(context.Context, Config) error { return s.connectErr }

func (s *stubSource) Fetch(context.Context, Query) (*frame.Frame, error) {
	return frame.Empty(), nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func TestRegistry(t *testing.T) {
	stub := &stubSource{}
	Register("stub-test", func(*slog.Logger) Source { return stub })

	assert.True(t, IsRegistered("stub-test"))
	assert.Contains(t, List(), "stub-test")

	src, err := Open(context.Background(), Config{Type: "stub-test"}, nil)
	require.NoError(t, err)
	assert.Same(t, stub, src)

	_, err = New(Config{}, nil)
	assert.Error(t, err)

	_, err = New(Config{Type: "nope"}, nil)
	var unknown *UnknownSourceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Type)
	assert.Contains(t, unknown.Error(), "Hint")

	failing := &stubSource{connectErr: errors.New("boom")}
	Register("stub-failing", func(*slog.Logger) Source { return failing })
	_, err = Open(context.Background(), Config{Type: "stub-failing"}, nil)
	require.Error(t, err)
	assert.True(t, failing.closed, "failed connect closes the source")
}

func TestBaseSQLSource_Fetch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT fatal, point_x, point_y FROM shootings WHERE fatal = $1").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"fatal", "point_x", "point_y"}).
			AddRow(int64(1), -75.1, 39.9).
			AddRow(int64(1), nil, nil))

	b := &BaseSQLSource{DB: db}
	f, err := b.Fetch(context.Background(), Query{
		Table:   "shootings",
		Columns: []string{"fatal", "point_x", "point_y"},
		Where:   "fatal = $1",
		Args:    []any{1},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"fatal", "point_x", "point_y", geo.GeometryColumn}, f.Columns())
	lng, lat, ok := geo.PointXY(f.Value(0, geo.GeometryColumn))
	require.True(t, ok)
	assert.InDelta(t, -75.1, lng, 1e-9)
	assert.InDelta(t, 39.9, lat, 1e-9)
	assert.Nil(t, f.Value(1, geo.GeometryColumn))
}

func TestBaseSQLSource_FetchErrors(t *testing.T) {
	_, err := (&BaseSQLSource{}).Fetch(context.Background(), Query{Table: "t"})
	assert.Error(t, err, "not connected")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation does not exist"))
	_, err = (&BaseSQLSource{DB: db}).Fetch(context.Background(), Query{Table: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relation does not exist")
}

func TestWithGeometry_DecodesGeoJSONText(t *testing.T) {
	f, err := frame.New([]string{"id", geo.GeometryColumn}, [][]any{
		{1, `{"type":"Point","coordinates":[-75,40]}`},
		{2, ""},
		{3, "not geojson"},
	})
	require.NoError(t, err)

	out, err := WithGeometry(f)
	require.NoError(t, err)

	g, ok := out.Value(0, geo.GeometryColumn).(*geojson.Geometry)
	require.True(t, ok)
	assert.True(t, g.IsPoint())
	assert.Nil(t, out.Value(1, geo.GeometryColumn))
	assert.Nil(t, out.Value(2, geo.GeometryColumn))
}
