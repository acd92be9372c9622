package vegalite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Script locations for the embedded runtime.
const (
	VegaURL      = "https://cdn.jsdelivr.net/npm/vega@5"
	VegaLiteURL  = "https://cdn.jsdelivr.net/npm/vega-lite@5"
	VegaEmbedURL = "https://cdn.jsdelivr.net/npm/vega-embed@6"
)

const embedScript = `(function(){var spec=JSON.parse(document.getElementById('vega-spec').textContent);` +
	`vegaEmbed('#vis',spec,{mode:'vega-lite'}).catch(function(err){` +
	`document.getElementById('vis').textContent=String(err);});})();`

// Page is a self-contained HTML page embedding the spec.
func Page(spec Spec) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if spec.Schema == "" {
			spec.Schema = SchemaURL
		}
		title := spec.Title
		if title == "" {
			title = "chart"
		}

		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+`</title><style>body{margin:0}#vis{width:100%}</style>`); err != nil {
			return err
		}
		for _, src := range []string{VegaURL, VegaLiteURL, VegaEmbedURL} {
			if _, err := io.WriteString(w, `<script src="`+src+`"></script>`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</head><body><div id="vis"></div>`); err != nil {
			return err
		}
		if err := templ.JSONScript("vega-spec", spec).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `<script>`+embedScript+`</script></body></html>`)
		return err
	})
}

// Document renders spec into a complete HTML document string.
func Document(spec Spec) (string, error) {
	if _, err := json.Marshal(spec); err != nil {
		return "", fmt.Errorf("failed to encode vega-lite spec: %w", err)
	}
	var b strings.Builder
	if err := Page(spec).Render(context.Background(), &b); err != nil {
		return "", fmt.Errorf("failed to render vega-lite document: %w", err)
	}
	return b.String(), nil
}
