package source

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	var created atomic.Int32
	stub := &stubSource{}
	Register("stub-set", func(*slog.Logger) Source {
		created.Add(1)
		return stub
	})

	set := NewSet(map[string]Config{
		"main":  {Type: "stub-set"},
		"other": {Type: "unknown-type"},
	}, nil)
	assert.Equal(t, []string{"main", "other"}, set.Names())

	first, err := set.Source(context.Background(), "main")
	require.NoError(t, err)
	second, err := set.Source(context.Background(), "main")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), created.Load())

	_, err = set.Source(context.Background(), "missing")
	assert.ErrorContains(t, err, "not configured")

	_, err = set.Source(context.Background(), "other")
	assert.Error(t, err)

	require.NoError(t, set.Close())
	assert.True(t, stub.closed)

	_, err = set.Source(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int32(2), created.Load(), "closed sources are reopened")
}
