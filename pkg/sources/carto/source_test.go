package carto

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/source"
)

const featuresBody = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"fatal":0,"race":"B"},"geometry":{"type":"Point","coordinates":[-75.16,39.95]}},
 {"type":"Feature","properties":{"fatal":1,"race":"W"},"geometry":{"type":"Point","coordinates":[-75.2,40.0]}}
]}`

func connect(t *testing.T, url string, opts map[string]string) *Source {
	t.Helper()
	s := New(nil)
	require.NoError(t, s.Connect(context.Background(), source.Config{URL: url, Options: opts}))
	return s
}

func TestFetch(t *testing.T) {
	var gotQuery, gotFormat, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		gotKey = r.URL.Query().Get("api_key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(featuresBody))
	}))
	defer srv.Close()

	s := New(nil)
	require.NoError(t, s.Connect(context.Background(), source.Config{URL: srv.URL, APIKey: "secret"}))

	f, err := s.Fetch(context.Background(), source.Query{
		Table: "shootings",
		Where: "date_ >= current_date - $1 AND fatal = $2",
		Args:  []any{90, 0},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM shootings WHERE date_ >= current_date - 90 AND fatal = 0", gotQuery)
	assert.Equal(t, "geojson", gotFormat)
	assert.Equal(t, "secret", gotKey)

	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"fatal", "race", geo.GeometryColumn}, f.Columns())
	lng, lat, ok := geo.PointXY(f.Value(0, geo.GeometryColumn))
	require.True(t, ok)
	assert.InDelta(t, -75.16, lng, 1e-9)
	assert.InDelta(t, 39.95, lat, 1e-9)
}

func TestFetch_EmptyCollectionKeepsColumns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	s := connect(t, srv.URL, nil)
	f, err := s.Fetch(context.Background(), source.Query{Table: "shootings", Columns: []string{"fatal", "race"}})
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, []string{"fatal", "race", geo.GeometryColumn}, f.Columns())
}

func TestFetch_GeometryColumn(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	s := connect(t, srv.URL, nil)
	_, err := s.Fetch(context.Background(), source.Query{Table: "shootings", Geometry: "the_geom"})
	require.NoError(t, err)
	f, err := s.Fetch(context.Background(), source.Query{Table: "shootings", Columns: []string{"fatal"}, Geometry: "the_geom"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"SELECT * FROM shootings",
		"SELECT fatal, the_geom FROM shootings",
	}, queries)
	assert.Equal(t, []string{"fatal", geo.GeometryColumn}, f.Columns())
}

func TestFetch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":["relation \"shootingz\" does not exist"]}`))
	}))
	defer srv.Close()

	s := connect(t, srv.URL, nil)
	_, err := s.Fetch(context.Background(), source.Query{Table: "shootingz"})

	var apiErr *source.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, []string{`relation "shootingz" does not exist`}, apiErr.Messages)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(featuresBody))
	}))
	defer srv.Close()

	s := connect(t, srv.URL, map[string]string{"retries": "1"})
	f, err := s.Fetch(context.Background(), source.Query{Table: "shootings"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_RejectsBadQueries(t *testing.T) {
	s := connect(t, "http://127.0.0.1:0", nil)

	_, err := s.Fetch(context.Background(), source.Query{Table: "x; drop"})
	assert.ErrorIs(t, err, source.ErrInvalidIdentifier)

	_, err = s.Fetch(context.Background(), source.Query{Table: "t", Where: "a = $1"})
	assert.Error(t, err, "unbound placeholder")
}

func TestConnect_InvalidRetries(t *testing.T) {
	err := New(nil).Connect(context.Background(), source.Config{Options: map[string]string{"retries": "many"}})
	assert.Error(t, err)
}

func TestFetch_NotConnected(t *testing.T) {
	_, err := New(nil).Fetch(context.Background(), source.Query{Table: "t"})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	assert.True(t, source.IsRegistered("carto"))
}
