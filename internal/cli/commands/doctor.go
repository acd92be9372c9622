package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/geodash/internal/apps"
	"github.com/leapstack-labs/geodash/internal/cli/output"
	"github.com/leapstack-labs/geodash/pkg/geo"
	"github.com/leapstack-labs/geodash/pkg/source"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Timeout time.Duration
	Apps    bool
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks []HealthCheck `json:"checks"`
	Failed int           `json:"failed"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	Kind    string `json:"kind"` // "source", "app", "history"
	Name    string `json:"name"`
	Status  string `json:"status"` // "pass", "error"
	Detail  string `json:"detail,omitempty"`
	Elapsed string `json:"elapsed"`
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that sources, apps and history are reachable",
		Long: `Connect every configured source, build every app (which loads
boundary layers) and open the history database when enabled.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run all checks
  geodash doctor

  # Only sources, with a shorter timeout
  geodash doctor --apps=false --timeout 5s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Timeout for each check")
	cmd.Flags().BoolVar(&opts.Apps, "apps", true, "Also build every app")

	return cmd
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContext(cmd)
	report := diagnose(cmd.Context(), cmdCtx, opts)

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(report); err != nil {
			return err
		}
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, report)
	default:
		renderDoctorText(r, report)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d checks failed", report.Failed, len(report.Checks))
	}
	return nil
}

func diagnose(ctx context.Context, cmdCtx *CommandContext, opts *DoctorOptions) *DoctorOutput {
	cfg := cmdCtx.Cfg
	report := &DoctorOutput{}

	check := func(kind, name string, fn func(ctx context.Context) (string, error)) {
		ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		start := time.Now()
		detail, err := fn(ctx)
		hc := HealthCheck{
			Kind:    kind,
			Name:    name,
			Status:  "pass",
			Detail:  detail,
			Elapsed: time.Since(start).Round(time.Millisecond).String(),
		}
		if err != nil {
			hc.Status = "error"
			hc.Detail = err.Error()
			report.Failed++
		}
		report.Checks = append(report.Checks, hc)
	}

	for _, name := range source.NewSet(cfg.Sources, nil).Names() {
		sc := cfg.Sources[name]
		check("source", name, func(ctx context.Context) (string, error) {
			src, err := source.Open(ctx, sc, cmdCtx.Logger)
			if err != nil {
				return "", err
			}
			return sc.Type, src.Close()
		})
	}

	if opts.Apps {
		set := source.NewSet(cfg.Sources, cmdCtx.Logger)
		defer func() { _ = set.Close() }()
		deps := apps.Deps{
			Sources:   set,
			Settings:  cfg.Apps,
			LoadLayer: geo.LoadLayer,
			Logger:    cmdCtx.Logger,
		}
		for _, name := range apps.Names() {
			check("app", name, func(ctx context.Context) (string, error) {
				app, err := apps.Build(ctx, name, deps)
				if err != nil {
					return "", err
				}
				if app.IsDashboard() {
					return "dashboard", nil
				}
				return "routes", nil
			})
		}
	}

	if cfg.History.Enabled {
		check("history", cfg.History.Path, func(context.Context) (string, error) {
			store, err := OpenHistory(cfg, cmdCtx.Logger)
			if err != nil {
				return "", err
			}
			v, err := store.MigrationVersion()
			_ = store.Close()
			return fmt.Sprintf("schema version %d", v), err
		})
	}

	return report
}

func renderDoctorText(r *output.Renderer, report *DoctorOutput) {
	styles := r.Styles()
	r.Println(styles.Header1.Render("geodash doctor"))
	for _, hc := range report.Checks {
		mark := styles.Success.Render("✓")
		if hc.Status != "pass" {
			mark = styles.Error.Render("✗")
		}
		r.Printf("  %s %-8s %-16s %s %s\n", mark, hc.Kind, hc.Name, styles.Muted.Render(hc.Elapsed), hc.Detail)
	}
	r.Println("")
	if report.Failed == 0 {
		r.Println(styles.Success.Render(fmt.Sprintf("All %d checks passed", len(report.Checks))))
	}
}

func renderDoctorMarkdown(r *output.Renderer, report *DoctorOutput) {
	r.Println(output.FormatHeader(1, "geodash doctor"))
	r.Println("")
	rows := make([][]any, 0, len(report.Checks))
	for _, hc := range report.Checks {
		rows = append(rows, []any{hc.Kind, hc.Name, hc.Status, hc.Elapsed, hc.Detail})
	}
	r.Table([]string{"Kind", "Name", "Status", "Elapsed", "Detail"}, rows)
}
