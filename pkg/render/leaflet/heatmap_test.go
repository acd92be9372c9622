package leaflet

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

func scriptData(t *testing.T, doc string) map[string]any {
	t.Helper()
	root, err := html.Parse(strings.NewReader(doc))
	require.NoError(t, err)

	var text string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == "heatmap-data" && n.FirstChild != nil {
					text = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	require.NotEmpty(t, text)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func TestPointsFromFrame(t *testing.T) {
	f, err := frame.New([]string{"lat", "lng"}, [][]any{
		{39.95, -75.16},
		{nil, -75.0},
		{40.0, -75.2},
	})
	require.NoError(t, err)

	points, err := PointsFromFrame(f, "lat", "lng")
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Lat: 39.95, Lng: -75.16, Intensity: 1},
		{Lat: 40.0, Lng: -75.2, Intensity: 1},
	}, points)

	_, err = PointsFromFrame(f, "latitude", "lng")
	assert.Error(t, err)
}

func TestDocument(t *testing.T) {
	doc, err := Document(Philadelphia([]Point{{Lat: 39.95, Lng: -75.16, Intensity: 1}}))
	require.NoError(t, err)

	assert.Contains(t, doc, LeafletHeat)
	assert.Contains(t, doc, `<div id="map"></div>`)

	data := scriptData(t, doc)
	assert.Equal(t, []any{39.99, -75.13}, data["center"])
	assert.Equal(t, float64(12), data["zoom"])
	assert.Equal(t, CartoPositron, data["tiles"])
	assert.Equal(t, []any{[]any{39.95, -75.16, float64(1)}}, data["points"])
}

func TestDocument_NoPoints(t *testing.T) {
	doc, err := Document(Philadelphia(nil))
	require.NoError(t, err)
	assert.Equal(t, []any{}, scriptData(t, doc)["points"])
}

func TestDocument_RequiresTiles(t *testing.T) {
	_, err := Document(HeatMap{})
	assert.Error(t, err)
}
