// Package pages renders full dashboard pages.
package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/ui/features/dashboard/components"
	"github.com/leapstack-labs/geodash/internal/ui/resources"
)

// DashboardData is everything the first server render needs.
type DashboardData struct {
	Layout   apps.Layout
	Values   apps.Values
	Document string
	Status   string
	Failed   bool
	IsDev    bool
}

// DashboardPage renders the complete page with the current output inlined,
// so nothing waits on the first SSE round trip.
func DashboardPage(d DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		signals, err := json.Marshal(d.Values)
		if err != nil {
			return fmt.Errorf("failed to encode signals: %w", err)
		}

		if _, err := io.WriteString(w, `<!doctype html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1.0">`+
			`<title>`+templ.EscapeString(d.Layout.Title)+`</title>`); err != nil {
			return err
		}
		sheets := append(append([]string(nil), d.Layout.Stylesheets...), resources.StaticPath(resources.Stylesheet))
		for _, href := range sheets {
			if _, err := io.WriteString(w, `<link rel="stylesheet" href="`+templ.EscapeString(href)+`">`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `<script type="module" src="`+resources.DatastarJS+`"></script></head>`+
			`<body data-signals="`+templ.EscapeString(string(signals))+`">`+
			`<div id="updates" data-init="@get('/updates')"></div>`); err != nil {
			return err
		}
		if d.IsDev {
			if _, err := io.WriteString(w, `<div id="reload" data-init="@get('/reload')"></div>`); err != nil {
				return err
			}
		}
		if d.Layout.Heading != "" {
			if _, err := io.WriteString(w, `<h1>`+templ.EscapeString(d.Layout.Heading)+`</h1>`); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, `<div class="controls">`); err != nil {
			return err
		}
		status := components.Status(d.Status, d.Failed)
		above := d.Layout.ShowStatus && d.Layout.StatusAbove
		if above {
			if err := status.Render(ctx, w); err != nil {
				return err
			}
		}
		for _, c := range d.Layout.Controls {
			if err := components.Control(c, d.Values[c.Param]).Render(ctx, w); err != nil {
				return err
			}
		}
		// Apps without a summary still get the element so errors have a place.
		if !above {
			if err := status.Render(ctx, w); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</div><div class="output">`); err != nil {
			return err
		}
		if err := components.Output(d.Layout.Frame, d.Document).Render(ctx, w); err != nil {
			return err
		}
		_, err = io.WriteString(w, `</div><div id="`+components.RefreshID+`"></div></body></html>`)
		return err
	})
}
