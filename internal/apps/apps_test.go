package apps

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/internal/testutil"
	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/pipeline"
	"github.com/leapstack-labs/geodash/pkg/source"
)

const hoodsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"ZillowName":"West"},
  "geometry":{"type":"Polygon","coordinates":[[[-76,39],[-75.5,39],[-75.5,40],[-76,40],[-76,39]]]}},
 {"type":"Feature","properties":{"ZillowName":"East"},
  "geometry":{"type":"Polygon","coordinates":[[[-75.5,39],[-75,39],[-75,40],[-75.5,40],[-75.5,39]]]}}
]}`

const shootingsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"fatal":0,"race":"B","age":22},"geometry":{"type":"Point","coordinates":[-75.8,39.5]}},
 {"type":"Feature","properties":{"fatal":1,"race":"W","age":35},"geometry":{"type":"Point","coordinates":[-75.2,39.5]}},
 {"type":"Feature","properties":{"fatal":0,"race":"B","age":40},"geometry":{"type":"Point","coordinates":[-80,30]}},
 {"type":"Feature","properties":{"fatal":null,"race":"A","age":30},"geometry":null}
]}`

// fakeSource returns a canned frame and records every query.
type fakeSource struct {
	mu      sync.Mutex
	frame   *frame.Frame
	err     error
	queries []source.Query
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Connect(context.Context, source.Config) error { return nil }

func (s *fakeSource) Fetch(_ context.Context, q source.Query) (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) lastQuery() source.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

type staticSources map[string]source.Source

func (s staticSources) Source(_ context.Context, name string) (source.Source, error) {
	src, ok := s[name]
	if !ok {
		return nil, errors.New("no such source: " + name)
	}
	return src, nil
}

func shootingsFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := geo.FrameFromFeatureJSON([]byte(shootingsJSON))
	require.NoError(t, err)
	return f
}

func testDeps(t *testing.T, src *fakeSource) Deps {
	t.Helper()
	return Deps{
		Sources: staticSources{"carto": src},
		LoadLayer: func(context.Context, string) (*geo.Layer, error) {
			return geo.ParseLayer([]byte(hoodsJSON))
		},
		Logger: testutil.NewTestLogger(t),
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"cars", "heatmap", "hello", "hello-api", "hello-template", "shootings"}, Names())

	var dashboards []string
	for _, info := range List() {
		if info.Dashboard {
			dashboards = append(dashboards, info.Name)
		}
	}
	assert.Equal(t, []string{"cars", "heatmap", "shootings"}, dashboards)

	_, err := Build(context.Background(), "nope", Deps{})
	var unknown *UnknownAppError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Error(), "hello-api")
}

func TestBuild_AllApps(t *testing.T) {
	deps := testDeps(t, &fakeSource{frame: frame.Empty()})
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			app, err := Build(context.Background(), name, deps)
			require.NoError(t, err)
			assert.Equal(t, name, app.Name)
			if app.IsDashboard() {
				assert.NotEmpty(t, app.Layout.Controls)
				assert.NotEmpty(t, app.Params)
			} else {
				assert.NotNil(t, app.Routes)
			}
		})
	}
}

func TestBuild_LayerFailure(t *testing.T) {
	deps := testDeps(t, &fakeSource{})
	deps.LoadLayer = func(context.Context, string) (*geo.Layer, error) {
		return nil, errors.New("offline")
	}
	_, err := Build(context.Background(), "shootings", deps)
	assert.ErrorContains(t, err, "offline")
}

func TestNormalizeAndDefaults(t *testing.T) {
	app := &App{Params: []pipeline.Param{pipeline.Days, XAxis}}

	assert.Equal(t, Values{"days": 90, "x": "Acceleration"}, app.Defaults())
	assert.Equal(t, Values{"days": 365, "x": "Cylinders"},
		app.Normalize(Values{"days": "9999", "x": "Cylinders", "extra": true}))
	assert.Equal(t, Values{"days": 30, "x": "Acceleration"},
		app.Normalize(Values{"days": float64(3), "x": "Horsepower"}))
	assert.Equal(t, app.Defaults(), app.Normalize(nil))
}

func TestValuesFromQuery(t *testing.T) {
	q, err := url.ParseQuery("days=45&days=60&fatal=1")
	require.NoError(t, err)
	assert.Equal(t, Values{"days": "45", "fatal": "1"}, ValuesFromQuery(q))
}

func TestParseAssignments(t *testing.T) {
	v, err := ParseAssignments([]string{"days=120", "x = Cylinders"})
	require.NoError(t, err)
	assert.Equal(t, Values{"days": "120", "x": " Cylinders"}, v)

	_, err = ParseAssignments([]string{"days"})
	assert.Error(t, err)
	_, err = ParseAssignments([]string{"=5"})
	assert.Error(t, err)
}

func TestStatusCode(t *testing.T) {
	fetch := &pipeline.StageError{Pipeline: "p", Stage: pipeline.StageFetch, Err: errors.New("x")}
	render := &pipeline.StageError{Pipeline: "p", Stage: pipeline.StageRender, Err: errors.New("x")}
	assert.Equal(t, 502, StatusCode(fetch))
	assert.Equal(t, 500, StatusCode(render))
	assert.Equal(t, 500, StatusCode(errors.New("other")))
}

func TestSettingsMerge(t *testing.T) {
	s := Settings{Table: "incidents", Geometry: "none"}.merge(shootingsDefaults)
	assert.Equal(t, Settings{Source: "carto", Table: "incidents", Boundaries: NeighborhoodsURL}, s)
}
