// ABOUTME: Tests for habit mining: scoring, thresholds, idempotence, and checkpointing
// ABOUTME: Uses a fixed clock and in-memory storage
package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/models"
	"github.com/harper/attune/internal/storage"
)

func findHabit(habits []*models.Habit, t models.HabitType) *models.Habit {
	for _, h := range habits {
		if h.HabitType == t {
			return h
		}
	}
	return nil
}

func TestLearnWeeklyTask(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	registerUser(t, e, "alice")
	groceryWeeks(t, e, "alice")

	res, err := e.Habits.Learn(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, res.EventsScanned)
	assert.True(t, res.Complete)

	h := findHabit(res.Habits, models.HabitRecurringTask)
	require.NotNil(t, h)
	assert.Equal(t, "buy groceries", h.PatternKey)
	assert.Equal(t, 3, h.OccurrenceCount)
	assert.False(t, h.LowConfidence)
	// f=0.6, r=(0.5+0.707+1)/3, g=1
	assert.InDelta(t, 0.7607, h.Confidence, 0.001)
	assert.GreaterOrEqual(t, h.Confidence, e.Config().ConfidenceThreshold)

	d := h.PatternData
	assert.Equal(t, "Buy groceries", d.Title)
	assert.Equal(t, []int{int(time.Monday)}, d.Weekdays)
	assert.Equal(t, 9, d.Hour)
	assert.Equal(t, 0, d.Minute)
	assert.Equal(t, BucketMorning, d.TimeOfDay)
	assert.Contains(t, d.Keywords, "groceries")

	tb := findHabit(res.Habits, models.HabitTimeBased)
	require.NotNil(t, tb)
	assert.Equal(t, "monday:morning", tb.PatternKey)
}

func TestLearnIsIdempotent(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()
	registerUser(t, e, "alice")
	groceryWeeks(t, e, "alice")

	first, err := e.Habits.Learn(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, len(first.Habits), first.Created)

	clock.Advance(48 * time.Hour)
	second, err := e.Habits.Learn(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)

	all, err := e.Habits.Habits(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, all, len(first.Habits))

	byKey := map[string]float64{}
	for _, h := range first.Habits {
		byKey[h.Key().String()] = h.Confidence
	}
	for _, h := range all {
		assert.InDelta(t, byKey[h.Key().String()], h.Confidence, 1e-9, h.Key().String())
	}
}

func TestLearnBelowMinimumCreatesNothing(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	registerUser(t, e, "bob")
	appendTask(t, e, "bob", "water plants", monday)
	appendTask(t, e, "bob", "water plants", monday.AddDate(0, 0, 7))

	res, err := e.Habits.Learn(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, res.Habits)
}

func TestLearnUnknownUser(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Habits.Learn(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLearnEmptyHistory(t *testing.T) {
	e, _ := newTestEngine(t)
	registerUser(t, e, "quiet")
	res, err := e.Habits.Learn(context.Background(), "quiet")
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Zero(t, res.EventsScanned)
}

func TestLearnBatchedMatchesSinglePass(t *testing.T) {
	build := func(batch int) []*models.Habit {
		e, _ := newTestEngine(t, func(c *config.LearningConfig) { c.LearnBatchSize = batch })
		registerUser(t, e, "alice")
		for week := 0; week < 6; week++ {
			appendTask(t, e, "alice", "Buy groceries", monday.AddDate(0, 0, 7*week))
			appendTask(t, e, "alice", "gym", monday.AddDate(0, 0, 7*week+2).Add(9*time.Hour))
		}
		_, err := e.Habits.Learn(context.Background(), "alice")
		require.NoError(t, err)
		all, err := e.Habits.Habits(context.Background(), "alice", "")
		require.NoError(t, err)
		return all
	}

	single := build(500)
	batched := build(4)
	require.Len(t, batched, len(single))
	want := map[string]float64{}
	for _, h := range single {
		want[h.Key().String()] = h.Confidence
	}
	for _, h := range batched {
		assert.InDelta(t, want[h.Key().String()], h.Confidence, 1e-9, h.Key().String())
	}
}

func TestLearnPreferenceHabits(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	registerUser(t, e, "sara")
	for i := 0; i < 4; i++ {
		_, err := e.Events.Append(ctx, &models.Event{
			UserID:    "sara",
			Kind:      models.EventMessage,
			Timestamp: monday.Add(time.Duration(i) * 24 * time.Hour),
			Language:  "ur",
			Channel:   "whatsapp",
			Payload:   map[string]interface{}{"text": "kaam ki list dikhao"},
		})
		require.NoError(t, err)
	}

	_, err := e.Habits.Learn(ctx, "sara")
	require.NoError(t, err)

	langs, err := e.Habits.Habits(ctx, "sara", models.HabitLanguagePreference)
	require.NoError(t, err)
	require.Len(t, langs, 1)
	assert.Equal(t, "ur", langs[0].PatternData.Value)
	assert.Equal(t, 1.0, langs[0].PatternData.Share)

	channels, err := e.Habits.Habits(ctx, "sara", models.HabitChannelPreference)
	require.NoError(t, err)
	assert.Len(t, channels, 1)

	_, err = e.Habits.Habits(ctx, "sara", "bogus")
	assert.ErrorIs(t, err, models.ErrValidation)
}

// cancelAfterCheckpoint cancels the learn context once the first batch is saved
type cancelAfterCheckpoint struct {
	storage.Store
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancelAfterCheckpoint) SaveLearnState(ctx context.Context, s *models.LearnState) error {
	err := c.Store.SaveLearnState(ctx, s)
	c.once.Do(c.cancel)
	return err
}

func TestLearnCancellationKeepsCommittedBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancelAfterCheckpoint{Store: newTestStore(t), cancel: cancel}
	e, _ := newTestEngineWithStore(t, store, func(c *config.LearningConfig) { c.LearnBatchSize = 3 })
	registerUser(t, e, "alice")
	groceryWeeks(t, e, "alice")
	appendTask(t, e, "alice", "Buy groceries", monday.AddDate(0, 0, 21))

	res, err := e.Habits.Learn(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.False(t, res.Complete)
	assert.Equal(t, 3, res.EventsScanned)

	state, err := store.GetLearnState(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.False(t, state.Complete)
	assert.Equal(t, 3, state.EventsScanned)

	habits, err := e.Habits.Habits(context.Background(), "alice", models.HabitRecurringTask)
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, 3, habits[0].OccurrenceCount)

	// a fresh pass finishes the job
	res, err = e.Habits.Learn(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, 4, findHabit(res.Habits, models.HabitRecurringTask).OccurrenceCount)
}

func TestInsights(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	registerUser(t, e, "alice")
	groceryWeeks(t, e, "alice")
	_, err := e.Habits.Learn(ctx, "alice")
	require.NoError(t, err)

	ins, err := e.Habits.Insights(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, ins.TotalHabits)
	assert.Equal(t, 1, ins.ByType[models.HabitRecurringTask])
	assert.Equal(t, 1, ins.ByType[models.HabitTimeBased])
	assert.Len(t, ins.TopHabits, 1)
	assert.Equal(t, 2, ins.TimeOfDay[BucketMorning])
	assert.Equal(t, 2, ins.Weekdays["monday"])
	assert.True(t, ins.LearnCompleted)
	require.NotNil(t, ins.LastLearnRun)

	_, err = e.Habits.Insights(ctx, "ghost", 5)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegularityScore(t *testing.T) {
	even := []time.Time{monday, monday.Add(24 * time.Hour), monday.Add(48 * time.Hour)}
	assert.InDelta(t, 1.0, regularityScore(even), 1e-9)

	uneven := []time.Time{monday, monday.Add(time.Hour), monday.Add(48 * time.Hour)}
	assert.Less(t, regularityScore(uneven), 0.6)

	assert.Equal(t, 0.5, regularityScore(even[:2]))
}
