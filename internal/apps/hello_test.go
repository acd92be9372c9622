package apps

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

func serve(t *testing.T, app *App, target string) (*http.Response, string) {
	t.Helper()
	r := chi.NewRouter()
	app.Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHello(t *testing.T) {
	app, err := Build(context.Background(), "hello", Deps{})
	require.NoError(t, err)

	resp, body := serve(t, app, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, MyName, body)

	_, body = serve(t, app, "/test")
	assert.Equal(t, HelloTest, body)

	resp, _ = serve(t, app, "/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHelloTemplate(t *testing.T) {
	app, err := Build(context.Background(), "hello-template", Deps{})
	require.NoError(t, err)

	_, body := serve(t, app, "/")
	assert.Equal(t, HelloWorld, body)

	resp, body := serve(t, app, "/hello/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<h1>Hello from geodash!</h1>")

	resp, _ = serve(t, app, "/hello")
	assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	assert.Equal(t, "/hello/", resp.Header.Get("Location"))

	res, err := app.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, body, res.Document)
}

func fatalFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New([]string{"fatal", "race"}, [][]any{
		{float64(0), "B"},
		{float64(0), "W"},
		{float64(1), "B"},
	})
	require.NoError(t, err)
	return f
}

func TestHelloAPI_Defaults(t *testing.T) {
	src := &fakeSource{frame: fatalFrame(t)}
	app, err := Build(context.Background(), "hello-api", testDeps(t, src))
	require.NoError(t, err)

	_, body := serve(t, app, "/")
	assert.Equal(t, HelloWorld, body)

	resp, body := serve(t, app, "/shootings/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "There have been 2 nonfatal shootings in the past 90 days", body)
	assert.NotEmpty(t, resp.Header.Get("X-Render-ID"))

	q := src.lastQuery()
	assert.Equal(t, "shootings", q.Table)
	assert.Equal(t, []any{90, 0}, q.Args)
	assert.Empty(t, q.Geometry)
}

func TestHelloAPI_Params(t *testing.T) {
	src := &fakeSource{frame: fatalFrame(t)}
	app, err := Build(context.Background(), "hello-api", testDeps(t, src))
	require.NoError(t, err)

	tests := []struct {
		target string
		want   string
		args   []any
	}{
		{"/shootings/?days=120&fatal=1", "There have been 1 fatal shootings in the past 120 days", []any{120, 1}},
		{"/shootings/?days=10", "There have been 2 nonfatal shootings in the past 30 days", []any{30, 0}},
		{"/shootings/?days=abc&fatal=x", "There have been 2 nonfatal shootings in the past 90 days", []any{90, 0}},
		{"/shootings/?days=1000", "There have been 2 nonfatal shootings in the past 365 days", []any{365, 0}},
		{"/shootings/?fatal=2", "There have been 0 nonfatal shootings in the past 90 days", []any{90, 2}},
		{"/shootings/?fatal=-1", "There have been 0 nonfatal shootings in the past 90 days", []any{90, -1}},
		{"/shootings/?fatal=1.0", "There have been 2 nonfatal shootings in the past 90 days", []any{90, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			_, body := serve(t, app, tt.target)
			assert.Equal(t, tt.want, body)
			assert.Equal(t, tt.args, src.lastQuery().Args)
		})
	}
}

func TestHelloAPI_BarePathRedirects(t *testing.T) {
	src := &fakeSource{frame: fatalFrame(t)}
	app, err := Build(context.Background(), "hello-api", testDeps(t, src))
	require.NoError(t, err)

	resp, _ := serve(t, app, "/shootings?days=120&fatal=1")
	assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
	assert.Equal(t, "/shootings/?days=120&fatal=1", resp.Header.Get("Location"))

	resp, _ = serve(t, app, "/shootings")
	assert.Equal(t, "/shootings/", resp.Header.Get("Location"))
}

func TestHelloAPI_FetchErrorIsBadGateway(t *testing.T) {
	src := &fakeSource{err: errors.New("carto unavailable")}
	app, err := Build(context.Background(), "hello-api", testDeps(t, src))
	require.NoError(t, err)

	resp, body := serve(t, app, "/shootings/")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "carto unavailable")
}

func TestHelloAPI_EmptyResult(t *testing.T) {
	src := &fakeSource{frame: frame.Empty()}
	app, err := Build(context.Background(), "hello-api", testDeps(t, src))
	require.NoError(t, err)

	_, body := serve(t, app, "/shootings/")
	assert.Equal(t, "There have been 0 nonfatal shootings in the past 90 days", body)
}

func TestCountSentence(t *testing.T) {
	assert.Equal(t, "There have been 3 fatal shootings in the past 45 days", CountSentence(3, 45, 1))
	assert.Equal(t, "There have been 0 nonfatal shootings in the past 90 days", CountSentence(0, 90, 0))
}
