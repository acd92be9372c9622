package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMode(t *testing.T) {
	assert.Equal(t, ModeText, Mode("TEXT"))
	assert.Equal(t, ModeMarkdown, Mode("md"))
	assert.Equal(t, ModeJSON, Mode("json"))
	assert.Equal(t, ModeAuto, Mode(""))
	assert.Equal(t, ModeAuto, Mode("html"))
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{name: "auto tty", mode: ModeAuto, isTTY: true, want: ModeText},
		{name: "auto pipe", mode: ModeAuto, isTTY: false, want: ModeMarkdown},
		{name: "forced json", mode: ModeJSON, isTTY: true, want: ModeJSON},
		{name: "forced text", mode: ModeText, isTTY: false, want: ModeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestTable(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeMarkdown)
	r.Table([]string{"Name", "Dashboard"}, [][]any{{"hello", "no"}, {"shootings", "yes"}})

	s := out.String()
	assert.Contains(t, s, "| Name | Dashboard |")
	assert.Contains(t, s, "| shootings | yes |")

	out.Reset()
	r = NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeText)
	r.Table([]string{"Name"}, [][]any{{"hello"}})
	assert.Contains(t, out.String(), "┌")
	assert.Contains(t, out.String(), "hello")
}

func TestHeaderAndMessages(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeMarkdown)

	r.Header(2, "Apps")
	r.Success("done")
	r.Error("failed")

	assert.Equal(t, "## Apps\n\n", out.String())
	assert.Contains(t, errOut.String(), "✓ done")
	assert.Contains(t, errOut.String(), "✗ failed")
	assert.NotContains(t, errOut.String(), "\x1b[", "no color without a terminal")
}

func TestJSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"rows": 3}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 3, got["rows"])
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Sub", FormatHeader(3, "Sub"))
	assert.Equal(t, "- **Rows**: 3", FormatKeyValue("Rows", "3"))
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, true, ModeText)
	r.Header(1, "Apps")
	r.Success("done")

	assert.NotContains(t, out.String()+errOut.String(), "\x1b[")
}
