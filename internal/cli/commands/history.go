package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/geodash/internal/cli/output"
	"github.com/leapstack-labs/geodash/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	App   string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [render-id]",
		Short: "Show recorded renders",
		Long: `List recent renders from the history database, or show one render.

Renders are recorded by 'geodash serve' and 'geodash render' when
history.enabled is true (or --history is passed to serve). The render id
is the X-Render-ID response header.`,
		Example: `  # Last 20 renders of any app
  geodash history

  # Last 5 shootings renders as JSON
  geodash history --app shootings --limit 5 --output json

  # One render
  geodash history 0b6f3c1e-6a52-4f0e-9f55-1d2a3b4c5d6e`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.App, "app", "", "Only show renders of this app")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", state.DefaultListLimit, "Maximum number of renders")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	if _, err := os.Stat(cfg.History.Path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no history at %s\nHint: set history.enabled: true in geodash.yaml or pass --history to serve", cfg.History.Path)
	}
	store, err := OpenHistory(cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if len(args) == 1 {
		render, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return showRender(r, render)
	}

	renders, err := store.List(cmd.Context(), state.ListOptions{App: opts.App, Limit: opts.Limit})
	if err != nil {
		return err
	}
	if r.EffectiveMode() == output.ModeJSON {
		if renders == nil {
			renders = []*state.Render{}
		}
		return r.JSON(renders)
	}
	if len(renders) == 0 {
		r.Muted("No renders recorded yet")
		return nil
	}

	rows := make([][]any, 0, len(renders))
	for _, rd := range renders {
		outcome := rd.Status
		if rd.Failed() {
			outcome = "error: " + rd.Error
		}
		rows = append(rows, []any{
			rd.ID,
			appLabel(rd),
			rd.StartedAt.Local().Format(time.DateTime),
			rd.Rows,
			rd.Elapsed.String(),
			truncate(outcome, 60),
		})
	}
	r.Header(1, fmt.Sprintf("Renders (%d)", len(renders)))
	r.Table([]string{"ID", "App", "Started", "Rows", "Elapsed", "Outcome"}, rows)
	return nil
}

func appLabel(rd *state.Render) string {
	if rd.Variant == "" {
		return rd.App
	}
	return rd.App + " (" + rd.Variant + ")"
}

func showRender(r *output.Renderer, rd *state.Render) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(rd)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Render "+rd.ID))
		r.Println("")
		r.Println(output.FormatKeyValue("App", appLabel(rd)))
		r.Println(output.FormatKeyValue("Started", rd.StartedAt.Local().Format(time.DateTime)))
		r.Println(output.FormatKeyValue("Elapsed", rd.Elapsed.String()))
		r.Println(output.FormatKeyValue("Parameters", "`"+string(rd.Params)+"`"))
		r.Println(output.FormatKeyValue("Rows", fmt.Sprintf("%d", rd.Rows)))
		if rd.Status != "" {
			r.Println(output.FormatKeyValue("Status", rd.Status))
		}
		if rd.Failed() {
			r.Println(output.FormatKeyValue("Error", rd.Error))
		}
		return nil
	default:
		styles := r.Styles()
		r.Println(styles.Header1.Render("Render " + rd.ID))
		r.Printf("  %s: %s\n", styles.Bold.Render("App"), appLabel(rd))
		r.Printf("  %s: %s\n", styles.Bold.Render("Started"), rd.StartedAt.Local().Format(time.DateTime))
		r.Printf("  %s: %s\n", styles.Bold.Render("Elapsed"), rd.Elapsed)
		r.Printf("  %s: %s\n", styles.Bold.Render("Parameters"), rd.Params)
		r.Printf("  %s: %d\n", styles.Bold.Render("Rows"), rd.Rows)
		if rd.Status != "" {
			r.Printf("  %s: %s\n", styles.Bold.Render("Status"), rd.Status)
		}
		if rd.Failed() {
			r.Printf("  %s: %s\n", styles.Error.Render("Error"), rd.Error)
		}
		return nil
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
