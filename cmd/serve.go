package cmd

import (
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/fingerprint-cli/internal/metrics"
	"github.com/KaramelBytes/fingerprint-cli/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		addr := c.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		obs := metrics.NewPrometheus(reg)

		p, store, err := newPipeline(c, obs)
		if err != nil {
			return err
		}
		srv := server.New(server.Options{
			Pipeline:      p,
			Lister:        store,
			DefaultMethod: c.DefaultMethod,
			DefaultRadius: c.DefaultRadius,
			CORSOrigins:   c.CORSOrigins,
			RateLimit:     c.RateLimitRPS,
			Burst:         c.RateLimitBurst,
			Logger:        logger,
			Observer:      obs,
			Gatherer:      reg,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		logger.Info("serving", "addr", addr, "data_dir", c.DataDir, "strategy", c.NeighborStrategy)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config listen_addr)")
}
