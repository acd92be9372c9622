package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/cli/config"
	"github.com/leapstack-labs/geodash/pkg/source"

	_ "github.com/leapstack-labs/geodash/pkg/sources/carto"
	_ "github.com/leapstack-labs/geodash/pkg/sources/duckdb"
	_ "github.com/leapstack-labs/geodash/pkg/sources/postgres"
)

// generateConfigDocs writes configuration.md: the built-in defaults, the
// registered source types and the apps they feed.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "geodash.yaml reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("geodash reads %s from the working directory or the nearest parent, "+
		"then applies %s environment variables and command-line flags.",
		InlineCode("geodash.yaml"), InlineCode(config.EnvPrefix)))

	w.Header(2, "Defaults")
	w.Paragraph("With no configuration file geodash behaves as if this were its geodash.yaml:")
	defaults, err := encodeYAML(config.Default())
	if err != nil {
		return err
	}
	w.CodeBlock("yaml", defaults)

	w.Header(2, "Source Types")
	var rows [][]string
	for _, name := range source.List() {
		rows = append(rows, []string{InlineCode(name)})
	}
	w.Table([]string{"Type"}, rows)

	w.Header(2, "Apps")
	w.Paragraph(fmt.Sprintf("Each app can be pointed at another source under %s.", InlineCode("apps.<name>")))
	infos := apps.List()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	rows = rows[:0]
	for _, info := range infos {
		kind := "routes"
		if info.Dashboard {
			kind = "dashboard"
		}
		rows = append(rows, []string{InlineCode(info.Name), kind, cleanDescription(info.Description)})
	}
	w.Table([]string{"App", "Kind", "Description"}, rows)

	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600)
}

func encodeYAML(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode defaults: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
