// ABOUTME: Runs the stdio MCP server alongside the background sweep and metrics endpoint
// ABOUTME: Returns when the context is cancelled or the stdio transport ends
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/core"
)

// ServeConfig controls what runs next to the stdio transport
type ServeConfig struct {
	Name    string
	Version string

	// SweepSchedule is a cron spec; empty disables the sweep
	SweepSchedule    string
	SweepConcurrency int

	// MetricsAddr serves Gatherer on /metrics when both are set
	MetricsAddr string
	Gatherer    prometheus.Gatherer
}

// NewServer creates an MCP server with every tool registered
func NewServer(engine *core.Engine, log zerolog.Logger, cfg ServeConfig) *mcpserver.MCPServer {
	name := cfg.Name
	if name == "" {
		name = "attune"
	}
	server := mcpserver.NewMCPServer(name, cfg.Version)
	RegisterTools(server, engine, log)
	return server
}

// MetricsHandler exposes g in the Prometheus text format
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve blocks until ctx is done or stdin closes
func Serve(ctx context.Context, engine *core.Engine, log zerolog.Logger, cfg ServeConfig) error {
	server := NewServer(engine, log, cfg)

	if cfg.SweepSchedule != "" {
		sweeper := engine.NewSweeper(cfg.SweepSchedule, cfg.SweepConcurrency)
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("starting sweeper: %w", err)
		}
		defer sweeper.Stop()
		log.Info().Str("schedule", cfg.SweepSchedule).Msg("habit sweep scheduled")
	}

	if cfg.MetricsAddr != "" && cfg.Gatherer != nil {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           MetricsHandler(cfg.Gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}

	log.Info().Msg("attune MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
