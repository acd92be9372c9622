package commands

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

//go:embed templates/geodash.yaml
var templateFS embed.FS

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter geodash.yaml",
		Long: `Write a commented geodash.yaml with the default sources, server and
history settings, ready to edit.`,
		Example: `  # Initialize in current directory
  geodash init

  # Initialize in a new directory
  geodash init my-dashboards

  # Force overwrite existing config
  geodash init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			path, err := writeStarterConfig(dir, force)
			if err != nil {
				return err
			}

			r := NewCommandContext(cmd).Renderer
			r.Success("wrote " + path)
			r.Println("")
			r.Println("Next steps:")
			r.Println("  1. Run 'geodash apps' to see what can be served")
			r.Println("  2. Run 'geodash doctor' to check the data sources")
			r.Println("  3. Run 'geodash serve shootings' and open http://localhost:5000")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	return cmd
}

func writeStarterConfig(dir string, force bool) (string, error) {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	path := filepath.Join(dir, "geodash.yaml")
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("geodash.yaml already exists. Use --force to overwrite")
	}

	content, err := templateFS.ReadFile("templates/geodash.yaml")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
