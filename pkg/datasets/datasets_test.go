package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarsFrame(t *testing.T) {
	f, err := CarsFrame()
	require.NoError(t, err)

	assert.Equal(t, CarsColumns, f.Columns())
	assert.Equal(t, 33, f.Len())
	assert.Equal(t, "chevrolet chevelle malibu", f.Value(0, "Name"))
	assert.Equal(t, float64(18), f.Value(0, "Miles_per_Gallon"))

	noMPG, err := f.DropNA("Miles_per_Gallon")
	require.NoError(t, err)
	assert.Equal(t, 29, noMPG.Len())
}

func TestGet(t *testing.T) {
	assert.Equal(t, []string{"cars"}, Names())

	data, ok := Get("cars")
	require.True(t, ok)
	assert.Equal(t, Cars(), data)

	_, ok = Get("iris")
	assert.False(t, ok)
}
