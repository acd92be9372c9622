package ui

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/internal/ui/features"
)

func TestNewServer_Defaults(t *testing.T) {
	s := NewServer(Config{App: features.SetupTestFixture(t, "hello").App})
	assert.Equal(t, "0.0.0.0:5000", s.Addr())

	s = NewServer(Config{Host: "127.0.0.1", Port: 8080})
	assert.Equal(t, "127.0.0.1:8080", s.Addr())
}

func TestServeListener_ShutsDownOnCancel(t *testing.T) {
	app := features.SetupTestFixture(t, "hello-api").App
	s := NewServer(Config{App: app, SessionSecret: "test-secret-key-32-bytes-long!!"})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz") //nolint:noctx // test
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestWatch_BroadcastsOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shootings.csv")
	require.NoError(t, os.WriteFile(file, []byte("fatal\n0\n"), 0600))

	s := NewServer(Config{WatchFiles: []string{file}})
	ch := s.Notifier().Subscribe()
	defer s.Notifier().Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(file, []byte("fatal\n1\n"), 0600))

	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("no refresh after the watched file changed")
	}
}
