// ABOUTME: Tests for wiring the engine from configuration
// ABOUTME: Uses a temporary SQLite file so the full stack is exercised

package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StorageBackend:   "sqlite",
		DBPath:           filepath.Join(t.TempDir(), "attune.db"),
		LockBackend:      "local",
		SweepConcurrency: 1,
		Learning:         config.DefaultLearning(),
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	p, err := a.Engine.Events.RegisterProfile(ctx, &models.Profile{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.DisplayName)

	stored, err := a.Store.GetProfile(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestOpenPersistsAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = a.Engine.Events.RegisterProfile(ctx, &models.Profile{UserID: "bob", Timezone: "Asia/Karachi"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	p, err := b.Engine.Events.GetProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Karachi", p.Timezone)
}

func TestOpenRejectsInvalidLearningConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Learning.ConfidenceThreshold = 2

	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageBackend = "postgres"

	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := Open(context.Background(), testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
