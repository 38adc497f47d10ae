// ABOUTME: Tests for profile registration and event appends
// ABOUTME: Covers validation, synthetic profiles, and in-place profile updates
package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/models"
	"github.com/harper/attune/internal/storage"
)

func TestRegisterProfile(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	p, err := e.Events.RegisterProfile(ctx, &models.Profile{UserID: "alice", Timezone: "Asia/Karachi"})
	require.NoError(t, err)
	assert.Equal(t, "alice", p.DisplayName)
	assert.False(t, p.CreatedAt.IsZero())

	p, err = e.Events.RegisterProfile(ctx, &models.Profile{UserID: "alice", DisplayName: "Alice", PreferredLanguage: "ur"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, "ur", p.PreferredLanguage)
	assert.Equal(t, "Asia/Karachi", p.Timezone)

	all, err := e.Events.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegisterProfileValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Events.RegisterProfile(ctx, &models.Profile{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = e.Events.RegisterProfile(ctx, &models.Profile{UserID: "bob", Timezone: "Mars/Olympus"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Events.UpdateProfile(context.Background(), "ghost", &models.Profile{DisplayName: "Ghost"})

	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "profile", nf.Kind)
}

func TestAppendCreatesSyntheticProfile(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	ev, err := e.Events.Append(ctx, &models.Event{
		UserID:  "carol",
		Kind:    models.EventCommandRun,
		Payload: map[string]interface{}{"command": "list tasks"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.EventID)
	assert.True(t, ev.Timestamp.Equal(clock.Now()))

	p, err := e.Events.GetProfile(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, p.Synthetic)

	p, err = e.Events.UpdateProfile(ctx, "carol", &models.Profile{DisplayName: "Carol"})
	require.NoError(t, err)
	assert.False(t, p.Synthetic)
}

// stallingProfiles blocks the first profile miss until resume is closed
type stallingProfiles struct {
	storage.Store
	stalled atomic.Bool
	missed  chan struct{}
	resume  chan struct{}
}

func (s *stallingProfiles) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.Store.GetProfile(ctx, userID)
	if p == nil && err == nil && s.stalled.CompareAndSwap(false, true) {
		close(s.missed)
		<-s.resume
	}
	return p, err
}

func TestAppendKeepsConcurrentlyRegisteredProfile(t *testing.T) {
	store := &stallingProfiles{
		Store:  newTestStore(t),
		missed: make(chan struct{}),
		resume: make(chan struct{}),
	}
	e, _ := newTestEngineWithStore(t, store)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.Events.Append(ctx, &models.Event{
			UserID:  "alice",
			Kind:    models.EventMessage,
			Payload: map[string]interface{}{"text": "hello"},
		})
		done <- err
	}()

	<-store.missed
	_, err := e.Events.RegisterProfile(ctx, &models.Profile{
		UserID:      "alice",
		DisplayName: "Alice",
		Timezone:    "Asia/Karachi",
	})
	require.NoError(t, err)
	close(store.resume)
	require.NoError(t, <-done)

	p, err := e.Events.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, "Asia/Karachi", p.Timezone)
	assert.False(t, p.Synthetic)
}

func TestAppendWithoutAutoCreate(t *testing.T) {
	e, _ := newTestEngine(t, func(c *config.LearningConfig) { c.AutoCreateProfiles = false })
	_, err := e.Events.Append(context.Background(), &models.Event{
		UserID:  "dave",
		Kind:    models.EventMessage,
		Payload: map[string]interface{}{"text": "hi"},
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAppendValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		event *models.Event
	}{
		{"nil event", nil},
		{"missing user", &models.Event{Kind: models.EventMessage}},
		{"unknown kind", &models.Event{UserID: "u", Kind: "dance"}},
		{"task without title", &models.Event{UserID: "u", Kind: models.EventTaskCreated}},
		{"command without name", &models.Event{UserID: "u", Kind: models.EventCommandRun}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Events.Append(ctx, tt.event)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}

	profiles, err := e.Events.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles, "rejected events must not create profiles")
}

func TestListEventsPaging(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		appendTask(t, e, "erin", "task", monday.Add(-time.Duration(i)*time.Hour))
	}

	first, err := e.Events.ListEvents(ctx, "erin", models.EventCursor{}, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	rest, err := e.Events.ListEvents(ctx, "erin", first[2].Cursor(), 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.True(t, first[0].Timestamp.Before(first[1].Timestamp))
}
