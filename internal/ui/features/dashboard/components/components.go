// Package components holds the dashboard page fragments that are both
// server-rendered and patched over SSE.
package components

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/geodash/internal/apps"
)

// Element ids patched by the dashboard handlers.
const (
	OutputID  = "output"
	StatusID  = "status"
	RefreshID = "refresh"
)

// RenderAction is the Datastar action that re-runs the app's pipeline.
const RenderAction = "@get('/render')"

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

func attr(s string) string {
	return templ.EscapeString(s)
}

// Output is the iframe showing the rendered document.
func Output(frame apps.Frame, doc string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w,
			`<iframe id="`, OutputID, `" width="`, strconv.Itoa(frame.Width),
			`" height="`, strconv.Itoa(frame.Height),
			`" sandbox="allow-scripts" srcdoc="`, attr(doc), `"></iframe>`)
	})
}

// Status is the summary line. Errors are shown in the same place.
func Status(text string, failed bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		class := "status"
		if failed {
			class += " error"
		}
		return write(w, `<p id="`, StatusID, `" class="`, class, `">`, templ.EscapeString(text), `</p>`)
	})
}

// Refresh re-renders the output once it is attached to the page.
func Refresh(seq int) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return write(w, `<div id="`, RefreshID, `" data-seq="`, strconv.Itoa(seq),
			`" data-init="`, attr(RenderAction), `"></div>`)
	})
}

// Control renders one input bound to its parameter signal.
func Control(c apps.Control, value any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="control"><label for="` + attr(c.Param) + `">` + templ.EscapeString(c.Label) + `</label>`)

		switch c.Kind {
		case apps.Slider:
			list := ""
			if len(c.Marks) > 0 {
				list = c.Param + "-marks"
			}
			fmt.Fprintf(&b, `<input type="range" id="%s" min="%d" max="%d" step="%d" value="%s"`,
				attr(c.Param), c.Min, c.Max, max(c.Step, 1), attr(fmt.Sprint(value)))
			if list != "" {
				b.WriteString(` list="` + attr(list) + `"`)
			}
			b.WriteString(` data-bind:` + attr(c.Param) + ` data-on:change="` + attr(RenderAction) + `">`)
			if list != "" {
				b.WriteString(`<datalist id="` + attr(list) + `">`)
				for _, m := range c.Marks {
					fmt.Fprintf(&b, `<option value="%d" label="%d"></option>`, m, m)
				}
				b.WriteString(`</datalist>`)
			}
			b.WriteString(`<span class="value" data-text="$` + attr(c.Param) + `">` + templ.EscapeString(fmt.Sprint(value)) + `</span>`)

		case apps.Dropdown:
			b.WriteString(`<select id="` + attr(c.Param) + `" data-bind:` + attr(c.Param) +
				` data-on:change="` + attr(RenderAction) + `">`)
			for _, opt := range c.Options {
				selected := ""
				if opt == fmt.Sprint(value) {
					selected = " selected"
				}
				b.WriteString(`<option value="` + attr(opt) + `"` + selected + `>` + templ.EscapeString(opt) + `</option>`)
			}
			b.WriteString(`</select>`)

		default:
			return fmt.Errorf("unknown control kind %q", c.Kind)
		}

		b.WriteString(`</div>`)
		return write(w, b.String())
	})
}
