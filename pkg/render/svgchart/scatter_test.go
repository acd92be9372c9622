package svgchart

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/geodash/pkg/datasets"
	"github.com/leapstack-labs/geodash/pkg/frame"
)

func TestScatterFromFrame(t *testing.T) {
	f, err := frame.New([]string{"x", "y", "Origin"}, [][]any{
		{1.0, 2.0, "USA"},
		{2.0, nil, "USA"},
		{3.0, 4.0, "Japan"},
		{5.0, 6.0, "USA"},
	})
	require.NoError(t, err)

	s, err := ScatterFromFrame(f, "x", "y", "Origin")
	require.NoError(t, err)
	require.Len(t, s.Groups, 2)
	assert.Equal(t, Group{Name: "Japan", X: []float64{3}, Y: []float64{4}}, s.Groups[0])
	assert.Equal(t, Group{Name: "USA", X: []float64{1, 5}, Y: []float64{2, 6}}, s.Groups[1])

	_, err = ScatterFromFrame(f, "x", "nope", "Origin")
	assert.Error(t, err)
}

func TestSVG_Cars(t *testing.T) {
	cars, err := datasets.CarsFrame()
	require.NoError(t, err)

	s, err := ScatterFromFrame(cars, "Acceleration", "Miles_per_Gallon", "Origin")
	require.NoError(t, err)
	s.Title = "Cars"

	svg, err := SVG(s)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(svg), "<svg"))
	assert.Contains(t, string(svg), "Acceleration")
}

func TestDocument_SinglePointAndEmpty(t *testing.T) {
	single := Scatter{Width: 320, Height: 240, Groups: []Group{{Name: "a", X: []float64{1}, Y: []float64{1}}}}
	doc, err := Document(single)
	require.NoError(t, err)
	assert.Contains(t, doc, "<svg")

	empty := Scatter{Title: "No rows", Width: 320, Height: 240}
	doc, err = Document(empty)
	require.NoError(t, err)
	assert.Contains(t, doc, "<title>No rows</title>")
	assert.Contains(t, doc, "<svg")
}

func TestSVG_EmptyFrame(t *testing.T) {
	s, err := ScatterFromFrame(frame.Empty("Acceleration", "Miles_per_Gallon", "Origin"),
		"Acceleration", "Miles_per_Gallon", "Origin")
	require.NoError(t, err)
	assert.Empty(t, s.Groups)

	svg, err := SVG(s)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(svg), "<svg"))
	assert.NotContains(t, string(svg), "<circle", "no points are drawn")
}

func TestPadded(t *testing.T) {
	r := padded(5, 5)
	assert.Less(t, r.Min, 5.0)
	assert.Greater(t, r.Max, 5.0)

	r = padded(0, 10)
	assert.InDelta(t, -0.5, r.Min, 1e-9)
	assert.InDelta(t, 10.5, r.Max, 1e-9)
}
