package vegalite

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/leapstack-labs/geodash/pkg/frame"
)

// embeddedSpec extracts and decodes the JSON spec from a rendered document.
func embeddedSpec(t *testing.T, doc string) map[string]any {
	t.Helper()
	root, err := html.Parse(strings.NewReader(doc))
	require.NoError(t, err)

	var text string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == "vega-spec" && n.FirstChild != nil {
					text = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	require.NotEmpty(t, text, "spec script not found")

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func TestDocument(t *testing.T) {
	f, err := frame.New([]string{"Origin", "Horsepower"}, [][]any{
		{"USA", float64(130)},
		{"Japan", math.NaN()},
	})
	require.NoError(t, err)

	spec := Spec{
		Title: "Cars </script><b>",
		Data:  DataFromFrame(f),
		HConcat: []Spec{
			{
				Mark:     &Mark{Type: "bar"},
				Encoding: &Encoding{X: &Channel{Field: "Horsepower", Type: Quantitative, Bin: &Bin{}}, Y: Count()},
				Params:   []Param{Interval("brush")},
			},
		},
	}
	doc, err := Document(spec)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, VegaEmbedURL)
	assert.NotContains(t, doc, "</script><b>", "title and spec are escaped")

	got := embeddedSpec(t, doc)
	assert.Equal(t, SchemaURL, got["$schema"])
	values := got["data"].(map[string]any)["values"].([]any)
	require.Len(t, values, 2)
	assert.Nil(t, values[1].(map[string]any)["Horsepower"], "NaN is encoded as null")

	hc := got["hconcat"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{}, hc["encoding"].(map[string]any)["x"].(map[string]any)["bin"])
	assert.Equal(t, "count", hc["encoding"].(map[string]any)["y"].(map[string]any)["aggregate"])
}

func TestDocument_EmptyData(t *testing.T) {
	spec := Spec{
		Data:     DataFromFrame(frame.Empty("a")),
		Mark:     &Mark{Type: "point"},
		Encoding: &Encoding{X: Field("a", Quantitative)},
	}
	doc, err := Document(spec)
	require.NoError(t, err)

	got := embeddedSpec(t, doc)
	assert.Equal(t, []any{}, got["data"].(map[string]any)["values"])
}

func TestFilterByAndCondition(t *testing.T) {
	spec := Spec{
		Transform: []Transform{FilterBy("brush")},
		Encoding: &Encoding{Color: &Channel{
			Condition: &Condition{Param: "brush", Field: "fatal", Type: Nominal},
			Value:     "lightgray",
		}},
	}
	raw, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"transform": [{"filter": {"param": "brush"}}],
		"encoding": {"color": {"condition": {"param": "brush", "field": "fatal", "type": "nominal"}, "value": "lightgray"}}
	}`, string(raw))
}
