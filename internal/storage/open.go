// ABOUTME: Backend factory selecting SQLite or Charm KV storage from config
// ABOUTME: Both backends satisfy the same Store contract
package storage

import (
	"fmt"

	"github.com/harper/attune/internal/charm"
	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/storage/kv"
	"github.com/harper/attune/internal/storage/sqlite"
)

var (
	_ Store = (*sqlite.Storage)(nil)
	_ Store = (*kv.Storage)(nil)
)

// Open returns the store selected by cfg.StorageBackend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case "", "sqlite":
		return sqlite.NewStorageWithPath(cfg.DBPath)
	case "charm":
		client, err := charm.NewClient(&charm.Config{
			Host:     cfg.CharmHost,
			DBName:   cfg.CharmDBName,
			AutoSync: cfg.AutoSync,
		})
		if err != nil {
			return nil, fmt.Errorf("opening charm storage: %w", err)
		}
		return kv.New(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
