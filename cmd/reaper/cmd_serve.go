package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/reaper/internal/server"
)

var serveAddr string

// serveCmd exposes the handler over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve invocations over HTTP",
	Long: `Run an HTTP server:

  POST /invoke   invocation request in, report out (status = result status)
  GET  /healthz  health, uptime and invocation count
  GET  /metrics  Prometheus metrics (when otel.metrics.prometheus is set)`,
	Example: `  reaper serve --addr :8080
  curl -XPOST localhost:8080/invoke -d '{"instance_ids":["i-1","i-2"]}'`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv := server.New(server.Config{
		Addr:    cfg.Server.Addr,
		Metrics: a.telemetry.MetricsHandler(),
	}, a.handler)

	var g run.Group
	g.Add(srv.Start, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info().Str("signal", sigErr.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
