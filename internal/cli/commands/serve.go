package commands

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/geodash/internal/cli/config"
	"github.com/leapstack-labs/geodash/internal/ui"
)

// ServeOptions holds options for the serve command. Host, port and the
// toggles are read through the config so geodash.yaml and GEODASH_
// variables apply too.
type ServeOptions struct {
	Host    string
	Port    int
	Dev     bool
	Watch   bool
	History bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve <app>",
		Short: "Serve one app over HTTP",
		Long: `Start a web server for one app.

Plain apps answer on their own routes (for example / and /shootings/).
Dashboards serve a page at / whose controls re-render the chart or map
in place, plus /document for the bare rendered document.

Every app also serves /healthz.`,
		Example: `  # Serve the shootings dashboard on the default address (0.0.0.0:5000)
  geodash serve shootings

  # Serve the API demo on another port
  geodash serve hello-api --port 8080

  # Record every render in the history database
  geodash serve heatmap --history`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeAppNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "Host to listen on (default: 0.0.0.0)")
	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to serve on (default: 5000)")
	cmd.Flags().BoolVar(&opts.Dev, "dev", false, "Enable live reload of static assets")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Refresh dashboards when local data files change")
	cmd.Flags().BoolVar(&opts.History, "history", false, "Record renders in the history database")

	return cmd
}

func runServe(cmd *cobra.Command, name string) error {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	rt, err := NewRuntime(cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	app, err := rt.BuildApp(cmd.Context(), name)
	if err != nil {
		return err
	}

	var watch []string
	if cfg.Server.Watch && app.IsDashboard() {
		watch = cfg.WatchFiles()
	}

	server := ui.NewServer(ui.Config{
		App:           app,
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		SessionSecret: cfg.Server.SessionSecret,
		WatchFiles:    watch,
		Dev:           cfg.Server.Dev,
		Logger:        cmdCtx.Logger,
	})

	r.Println(serveBanner(r.Styles().Banner.Render, name, cfg))
	if cfg.Server.SessionSecret == config.DefaultSessionSecret && app.IsDashboard() {
		r.Warning("using the default session secret; set server.session_secret for shared deployments")
	}

	return server.Serve(cmd.Context())
}

func serveBanner(render func(...string) string, name string, cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
	return render(fmt.Sprintf("geodash · %s\n%s\nPress Ctrl+C to stop", name, url))
}
