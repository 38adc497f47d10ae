// ABOUTME: Loads configuration and opens the engine for one command
// ABOUTME: Global flags override the environment before anything is opened
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harper/attune/internal/app"
	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/core"
	"github.com/harper/attune/internal/logging"
)

type cliApp struct {
	*app.App
	cfg    *config.Config
	engine *core.Engine
}

func loadConfig() (*config.Config, error) {
	// Load .env for API keys
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.StorageBackend = "sqlite"
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	switch {
	case verbose:
		level = "debug"
	case quiet:
		level = "error"
	}
	return logging.New(os.Stderr, level, cfg.LogFormat)
}

// openApp wires the same stack the MCP server runs
func openApp(cmd *cobra.Command, extra ...core.Option) (*cliApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfg, newLogger(cfg), extra...)
	if err != nil {
		return nil, err
	}
	return &cliApp{App: a, cfg: cfg, engine: a.Engine}, nil
}
