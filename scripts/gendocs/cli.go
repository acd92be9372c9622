package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/geodash/internal/cli"
	"github.com/leapstack-labs/geodash/internal/cli/config"
)

// commandPage is one documented command. Nested commands get their own
// page named after the full path, e.g. history-show.md.
type commandPage struct {
	cmd  *cobra.Command
	path []string
}

func (p commandPage) title() string { return "geodash " + strings.Join(p.path, " ") }
func (p commandPage) file() string  { return strings.Join(p.path, "-") + ".md" }
func (p commandPage) link() string {
	return fmt.Sprintf("[%s](/cli/%s)", InlineCode(strings.Join(p.path, " ")), strings.TrimSuffix(p.file(), ".md"))
}

// commandPages walks the tree depth first, parents before children.
func commandPages(root *cobra.Command) []commandPage {
	var pages []commandPage
	var walk func(c *cobra.Command, path []string)
	walk = func(c *cobra.Command, path []string) {
		for _, sub := range c.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			p := append(slices.Clone(path), sub.Name())
			pages = append(pages, commandPage{cmd: sub, path: p})
			walk(sub, p)
		}
	}
	walk(root, nil)
	return pages
}

// generateCLIDocs writes index.md plus one page per command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	pages := commandPages(root)

	if err := writePage(outDir, "index.md", cliIndex(root, pages)); err != nil {
		return err
	}
	for _, p := range pages {
		if err := writePage(outDir, p.file(), commandDoc(p)); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", p.title(), err)
		}
	}
	log.Printf("  Generated index.md and %d command pages", len(pages))
	return nil
}

func writePage(dir, name string, w *MarkdownWriter) error {
	return os.WriteFile(filepath.Join(dir, name), w.Bytes(), 0600)
}

func cliIndex(root *cobra.Command, pages []commandPage) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for geodash")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.CodeBlock("bash", "go install github.com/leapstack-labs/geodash/cmd/geodash@latest")

	w.Header(2, "Commands")
	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, []string{p.link(), cleanDescription(p.cmd.Short)})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Configuration Keys")
	w.Paragraph(fmt.Sprintf("Flags that mirror a geodash.yaml key override it. The same key can be set "+
		"with a %s environment variable, which sits between the file and the flag.", InlineCode(config.EnvPrefix)))
	w.Table([]string{"Flag", "Key", "Environment"}, configFlagRows(root, pages))

	w.Header(2, "Exit Codes")
	w.Paragraph(fmt.Sprintf("%s on success. Any error is printed to stderr and exits with %s.",
		InlineCode("0"), InlineCode("1")))
	return w
}

// configFlagRows lists every flag, global or local, that writes a config
// key, once, sorted by key.
func configFlagRows(root *cobra.Command, pages []commandPage) [][]string {
	seen := map[string]string{}
	collect := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if key, ok := config.FlagKey(f.Name); ok && !f.Hidden {
				seen[key] = f.Name
			}
		})
	}
	collect(root.PersistentFlags())
	for _, p := range pages {
		collect(p.cmd.LocalNonPersistentFlags())
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{InlineCode("--" + seen[k]), InlineCode(k), InlineCode(config.EnvVar(k))})
	}
	return rows
}

func commandDoc(p commandPage) *MarkdownWriter {
	c := p.cmd
	w := NewMarkdownWriter()
	w.Frontmatter(p.title(), c.Short)
	w.GeneratedMarker()

	w.Header(1, p.title())
	if c.Long != "" {
		w.Paragraph(c.Long)
	} else {
		w.Paragraph(c.Short)
	}

	w.Header(2, "Usage")
	use := c.UseLine()
	if c.HasAvailableSubCommands() && !c.Runnable() {
		use = c.CommandPath() + " <subcommand> [flags]"
	}
	w.CodeBlock("bash", use)

	if len(c.Aliases) > 0 {
		w.Paragraph("Aliases: " + strings.Join(mapStrings(c.Aliases, InlineCode), ", "))
	}

	if c.HasAvailableSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range c.Commands() {
			if !sub.IsAvailableCommand() {
				continue
			}
			child := commandPage{cmd: sub, path: append(slices.Clone(p.path), sub.Name())}
			rows = append(rows, []string{child.link(), cleanDescription(sub.Short)})
		}
		w.Table([]string{"Command", "Description"}, rows)
	}

	if c.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, c.LocalFlags())
	}
	if c.HasAvailableInheritedFlags() {
		w.Paragraph("Global options such as " + InlineCode("--config") + " and " + InlineCode("--output") +
			" also apply; see the [CLI reference](/cli/index).")
	}

	if c.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(c.Example))
	}
	return w
}

// writeFlagsTable writes one row per visible flag. Flags backed by a
// config key show it.
func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		option := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			option += ", " + InlineCode("-"+f.Shorthand)
		}

		def := f.DefValue
		switch f.Value.Type() {
		case "bool":
			if def == "false" {
				def = ""
			}
		case "stringSlice", "stringArray":
			if def == "[]" {
				def = ""
			}
		}
		if def != "" {
			def = InlineCode(def)
		}

		key := ""
		if k, ok := config.FlagKey(f.Name); ok {
			key = InlineCode(k)
		}
		rows = append(rows, []string{option, def, key, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Default", "Config", "Description"}, rows)
}

// dedent strips the indentation shared by every non-blank line.
func dedent(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	indent = max(indent, 0)
	for i, l := range lines {
		if len(l) >= indent {
			lines[i] = l[indent:]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func mapStrings(in []string, f func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = f(s)
	}
	return out
}
