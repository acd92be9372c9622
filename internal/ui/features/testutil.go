// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/testutil"
	"github.com/leapstack-labs/geodash/internal/ui/notifier"
	"github.com/leapstack-labs/geodash/pkg/frame"
	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// TestBoundaries are two adjacent neighborhoods split at longitude -75.5.
const TestBoundaries = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"ZillowName":"West"},
  "geometry":{"type":"Polygon","coordinates":[[[-76,39],[-75.5,39],[-75.5,40],[-76,40],[-76,39]]]}},
 {"type":"Feature","properties":{"ZillowName":"East"},
  "geometry":{"type":"Polygon","coordinates":[[[-75.5,39],[-75,39],[-75,40],[-75.5,40],[-75.5,39]]]}}
]}`

// TestShootings has one nonfatal and one fatal shooting inside the test
// boundaries and one nonfatal shooting outside them.
const TestShootings = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"fatal":0,"race":"B","age":22},"geometry":{"type":"Point","coordinates":[-75.8,39.5]}},
 {"type":"Feature","properties":{"fatal":1,"race":"W","age":35},"geometry":{"type":"Point","coordinates":[-75.2,39.5]}},
 {"type":"Feature","properties":{"fatal":0,"race":"B","age":40},"geometry":{"type":"Point","coordinates":[-80,30]}}
]}`

// FakeSource returns a canned frame (or error) and records queries.
type FakeSource struct {
	mu      sync.Mutex
	frame   *frame.Frame
	err     error
	queries []source.Query
}

// Name implements source.Source.
func (s *FakeSource) Name() string { return "fake" }

// Connect implements source.Source.
func (s *FakeSource) Connect(context.Context, source.Config) error { return nil }

// Fetch implements source.Source.
func (s *FakeSource) Fetch(_ context.Context, q source.Query) (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

// Close implements source.Source.
func (s *FakeSource) Close() error { return nil }

// SetError makes subsequent fetches fail.
func (s *FakeSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Queries returns the recorded queries.
func (s *FakeSource) Queries() []source.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]source.Query(nil), s.queries...)
}

type staticSources map[string]source.Source

func (s staticSources) Source(_ context.Context, name string) (source.Source, error) {
	src, ok := s[name]
	if !ok {
		return nil, errors.New("no such source: " + name)
	}
	return src, nil
}

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	App          *apps.App
	Source       *FakeSource
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore
}

// SetupTestFixture builds the named app over a fake source serving
// TestShootings under every source name the apps use.
func SetupTestFixture(t *testing.T, appName string) *TestFixture {
	t.Helper()

	f, err := geo.FrameFromFeatureJSON([]byte(TestShootings))
	require.NoError(t, err)
	src := &FakeSource{frame: f}

	deps := apps.Deps{
		Sources:  staticSources{"carto": src, "cars": src},
		Settings: map[string]apps.Settings{"cars": {Source: apps.BuiltinSource}},
		LoadLayer: func(context.Context, string) (*geo.Layer, error) {
			return geo.ParseLayer([]byte(TestBoundaries))
		},
		Logger: testutil.NewTestLogger(t),
	}
	app, err := apps.Build(context.Background(), appName, deps)
	require.NoError(t, err)

	return &TestFixture{
		App:          app,
		Source:       src,
		Notifier:     NewTestNotifier(),
		SessionStore: NewTestSessionStore(),
	}
}

// RequestWithSignals adds Datastar signals to a GET request.
func RequestWithSignals(t *testing.T, r *http.Request, signals map[string]any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(signals)
	require.NoError(t, err)
	q := r.URL.Query()
	q.Set("datastar", string(raw))
	r.URL.RawQuery = q.Encode()
	return r
}

// QueryValues encodes a query string.
func QueryValues(kv ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return q.Encode()
}

// RequestWithTimeout wraps a request with a context timeout.
func RequestWithTimeout(r *http.Request, timeout time.Duration) (*http.Request, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	return r.WithContext(ctx), cancel
}

// NewTestNotifier creates a notifier for testing.
func NewTestNotifier() *notifier.Notifier {
	return notifier.New()
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
