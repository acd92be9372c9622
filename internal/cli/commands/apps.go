package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/cli/output"
)

// AppsOutput is the JSON output for the apps command.
type AppsOutput struct {
	Apps []apps.Info `json:"apps"`
}

// NewAppsCommand creates the apps command.
func NewAppsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List the available apps",
		Long: `List every app geodash can serve or render.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown table (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List apps
  geodash apps

  # List apps as JSON
  geodash apps --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApps(NewCommandContext(cmd).Renderer)
		},
	}
}

func runApps(r *output.Renderer) error {
	infos := apps.List()

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(AppsOutput{Apps: infos})
	}

	rows := make([][]any, 0, len(infos))
	for _, info := range infos {
		kind := "routes"
		if info.Dashboard {
			kind = "dashboard"
		}
		rows = append(rows, []any{info.Name, kind, info.Description})
	}
	r.Header(1, "Apps")
	r.Table([]string{"Name", "Kind", "Description"}, rows)
	return nil
}
