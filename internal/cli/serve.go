package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/trustlane/internal/metrics"
	"github.com/matzehuels/trustlane/internal/server"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		noMetrics bool
		density   densityFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			runner, err := c.newRunner(ctx, cfg)
			if err != nil {
				return err
			}
			defer runner.Close()

			ext, err := c.newExtractor(cfg, runner.Cache)
			if err != nil {
				return err
			}

			var m *metrics.Metrics
			if cfg.Server.Metrics && !noMetrics {
				m = metrics.New()
				m.Install()
			}

			srv := server.New(server.Config{
				Runner:       runner,
				Extractor:    ext,
				Logger:       c.Logger,
				Metrics:      m,
				Defaults:     density.options(cmd, cfg, c.Logger),
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
			})
			c.Logger.Info("starting server", "addr", cfg.Server.Addr, "llm", ext.HasModel(), "metrics", m != nil)
			return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable /metrics and request instrumentation")
	density.register(cmd)
	return cmd
}
