package commands

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/geodash/internal/cli/config"
	"github.com/leapstack-labs/geodash/internal/cli/output"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, geodash.yaml,
GEODASH_ environment variables and flags. Secrets are masked unless
--show-secrets is given.`,
		Example: `  # Effective configuration as YAML
  geodash config

  # See what an environment override does
  GEODASH_SERVER__PORT=8080 geodash config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			cfg := cmdCtx.Cfg
			if !showSecrets {
				cfg = cfg.Redacted()
			}
			return printConfig(cmdCtx.Renderer, cfg)
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secrets in clear text")
	return cmd
}

func printConfig(r *output.Renderer, cfg *config.Config) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(cfg)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if cfg.ConfigFile != "" {
		r.Muted("# " + cfg.ConfigFile)
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Printf("```yaml\n%s```\n", buf.String())
		return nil
	}
	r.Printf("%s", buf.String())
	return nil
}
