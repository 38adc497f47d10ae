// ABOUTME: Main entry point for the attune MCP server with stdio transport
// ABOUTME: Loads config, opens the engine, and serves tools, sweep, and metrics
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/app"
	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/core"
	"github.com/harper/attune/internal/logging"
	"github.com/harper/attune/internal/mcp"
	"github.com/harper/attune/internal/metrics"
)

var version = "dev"

// setup loads configuration and builds the logger. Configuration errors are
// logged to w before being returned, since no configured logger exists yet.
func setup(w io.Writer) (*config.Config, zerolog.Logger, error) {
	// Load .env file if it exists (for API keys)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New(w, "info", logging.FormatConsole)
		boot.Error().Err(err).Msg("invalid configuration")
		return nil, boot, err
	}
	log := logging.New(w, cfg.LogLevel, cfg.LogFormat)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file found")
	}
	return cfg, log, nil
}

func main() {
	cfg, log, err := setup(os.Stderr)
	if err != nil {
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log, core.WithMetrics(metrics.New(reg)))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize engine")
	}

	err = mcp.Serve(ctx, a.Engine, log, mcp.ServeConfig{
		Version:          version,
		SweepSchedule:    cfg.SweepSchedule,
		SweepConcurrency: cfg.SweepConcurrency,
		MetricsAddr:      cfg.MetricsAddr,
		Gatherer:         reg,
	})
	if cerr := a.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("error closing storage")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
