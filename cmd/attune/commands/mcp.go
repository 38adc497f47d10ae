// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Exposes every engine operation to LLM agents over stdio
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/core"
	"github.com/harper/attune/internal/mcp"
	"github.com/harper/attune/internal/metrics"
)

var mcpNoSweep bool

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs attune as an MCP (Model Context Protocol) server so LLM agents
can record events, learn habits, predict tasks, resolve references,
detect mood, and recognize voices over stdio.

Habit learning for every user also runs on ATTUNE_SWEEP_SCHEDULE,
and ATTUNE_METRICS_ADDR serves Prometheus metrics on /metrics.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by the agent host)
  attune mcp

  # Configure in the host's MCP config:
  # {
  #   "mcpServers": {
  #     "attune": {
  #       "command": "attune",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	cmd.Flags().BoolVar(&mcpNoSweep, "no-sweep", false, "Do not run the scheduled habit sweep")
	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := openApp(cmd, core.WithMetrics(metrics.New(reg)))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("error closing storage")
		}
	}()

	if a.cfg.OpenAIKey == "" {
		a.Log.Warn().Msg("OPENAI_API_KEY not set, intent classification disabled")
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedule := a.cfg.SweepSchedule
	if mcpNoSweep {
		schedule = ""
	}
	return mcp.Serve(ctx, a.engine, a.Log, mcp.ServeConfig{
		Version:          versionInfo.Version,
		SweepSchedule:    schedule,
		SweepConcurrency: a.cfg.SweepConcurrency,
		MetricsAddr:      a.cfg.MetricsAddr,
		Gatherer:         reg,
	})
}
