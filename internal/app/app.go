// ABOUTME: Wires storage, locking, the intent classifier, and the engine from config
// ABOUTME: Shared by the CLI and the MCP server so both run the same stack
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/core"
	"github.com/harper/attune/internal/llm"
	"github.com/harper/attune/internal/lock"
	"github.com/harper/attune/internal/storage"
)

// App owns everything opened for one process
type App struct {
	Config *config.Config
	Store  storage.Store
	Engine *core.Engine
	Log    zerolog.Logger

	closers []func() error
}

// Open builds the engine described by cfg. Extra options are applied after
// the ones derived from cfg.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, extra ...core.Option) (*App, error) {
	a := &App{Config: cfg, Log: log}

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	opts := []core.Option{core.WithLogger(log)}

	if cfg.LockBackend == "redis" {
		rl, err := lock.NewRedis(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("initializing redis lock: %w", err)
		}
		a.closers = append(a.closers, rl.Close)
		// Other processes mutate voiceprints we would never see invalidated
		opts = append(opts, core.WithLocker(rl), core.WithVoiceCache(0))
	}

	if cfg.OpenAIKey != "" {
		client, err := llm.NewOpenAIClientWithConfig(&llm.ClientConfig{
			APIKey:            cfg.OpenAIKey,
			ChatModel:         cfg.ChatModel,
			Timeout:           cfg.Timeout,
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.RetryDelay,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			log.Warn().Err(err).Msg("intent classifier disabled")
		} else {
			opts = append(opts, core.WithClassifier(client))
		}
	} else {
		log.Debug().Msg("OPENAI_API_KEY not set, context entries keep caller-supplied intents")
	}

	engine, err := core.New(store, cfg.Learning, append(opts, extra...)...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Engine = engine
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
