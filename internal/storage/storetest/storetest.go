// ABOUTME: Backend-independent conformance checks for storage.Store implementations
// ABOUTME: Each backend's tests call Run with a constructor for a fresh store
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/harper/attune/internal/models"
	"github.com/harper/attune/internal/storage"
)

// Run exercises every Store operation against stores produced by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("EventPaging", func(t *testing.T) { testEventPaging(t, newStore(t)) })
	t.Run("HabitUpsert", func(t *testing.T) { testHabitUpsert(t, newStore(t)) })
	t.Run("LearnState", func(t *testing.T) { testLearnState(t, newStore(t)) })
	t.Run("Predictions", func(t *testing.T) { testPredictions(t, newStore(t)) })
	t.Run("ContextEntries", func(t *testing.T) { testContextEntries(t, newStore(t)) })
	t.Run("MoodSamples", func(t *testing.T) { testMoodSamples(t, newStore(t)) })
	t.Run("Voiceprints", func(t *testing.T) { testVoiceprints(t, newStore(t)) })
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seedProfiles(t *testing.T, s storage.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := s.SaveProfile(context.Background(), &models.Profile{UserID: id, DisplayName: id, CreatedAt: base}); err != nil {
			t.Fatalf("SaveProfile(%s) error = %v", id, err)
		}
	}
}

func testProfiles(t *testing.T, s storage.Store) {
	ctx := context.Background()
	got, err := s.GetProfile(ctx, "nobody")
	if err != nil || got != nil {
		t.Fatalf("GetProfile(missing) = %v, %v; want nil, nil", got, err)
	}

	seedProfiles(t, s, "b", "a")
	p, err := s.GetProfile(ctx, "a")
	if err != nil || p == nil {
		t.Fatalf("GetProfile(a) = %v, %v", p, err)
	}
	p.Timezone = "Asia/Karachi"
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile update error = %v", err)
	}
	p, _ = s.GetProfile(ctx, "a")
	if p.Timezone != "Asia/Karachi" {
		t.Errorf("Timezone = %q, want Asia/Karachi", p.Timezone)
	}

	all, err := s.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListProfiles() len = %d, want 2", len(all))
	}
	if all[0].UserID != "a" {
		t.Errorf("ListProfiles() first = %q, want a", all[0].UserID)
	}
}

func testEventPaging(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedProfiles(t, s, "u1", "u2")

	for i := 0; i < 5; i++ {
		e := &models.Event{
			EventID:   models.NewEventID(),
			UserID:    "u1",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Kind:      models.EventTaskCreated,
			Payload:   map[string]interface{}{"title": "buy groceries"},
			Language:  "en",
		}
		if err := s.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent() error = %v", err)
		}
	}
	other := &models.Event{EventID: models.NewEventID(), UserID: "u2", Timestamp: base, Kind: models.EventMessage}
	if err := s.AppendEvent(ctx, other); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}

	first, err := s.ListEvents(ctx, "u1", models.EventCursor{}, 3)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first page len = %d, want 3", len(first))
	}
	rest, err := s.ListEvents(ctx, "u1", first[2].Cursor(), 10)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("second page len = %d, want 2", len(rest))
	}
	if !rest[0].Timestamp.After(first[2].Timestamp) {
		t.Error("pages must be time ordered")
	}
	if rest[1].Title() != "buy groceries" {
		t.Errorf("payload lost: %v", rest[1].Payload)
	}

	latest, err := s.LatestEvent(ctx, "u1")
	if err != nil || latest == nil {
		t.Fatalf("LatestEvent() = %v, %v", latest, err)
	}
	if !latest.Timestamp.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("LatestEvent ts = %v", latest.Timestamp)
	}

	none, err := s.LatestEvent(ctx, "u3")
	if err != nil || none != nil {
		t.Errorf("LatestEvent(unknown) = %v, %v", none, err)
	}
}

func testHabitUpsert(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedProfiles(t, s, "u1")

	key := models.PatternKey{Type: models.HabitRecurringTask, Key: "buy groceries"}
	h := &models.Habit{
		HabitID:         models.NewHabitID(),
		UserID:          "u1",
		HabitType:       key.Type,
		PatternKey:      key.Key,
		PatternData:     models.PatternData{Title: "Buy groceries", Weekdays: []int{1}, Hour: 9},
		BaseConfidence:  0.7,
		Confidence:      0.7,
		OccurrenceCount: 3,
		FirstSeen:       base,
		LastSeen:        base.Add(14 * 24 * time.Hour),
		CreatedAt:       base,
		UpdatedAt:       base,
	}
	if err := s.SaveHabit(ctx, h); err != nil {
		t.Fatalf("SaveHabit() error = %v", err)
	}

	found, err := s.FindHabit(ctx, "u1", key)
	if err != nil || found == nil {
		t.Fatalf("FindHabit() = %v, %v", found, err)
	}
	if found.PatternData.Hour != 9 || !found.PatternData.OnWeekday(time.Monday) {
		t.Errorf("PatternData = %+v", found.PatternData)
	}

	confirmed := base.Add(15 * 24 * time.Hour)
	found.OccurrenceCount = 4
	found.LastConfirmed = &confirmed
	if err := s.SaveHabit(ctx, found); err != nil {
		t.Fatalf("SaveHabit() update error = %v", err)
	}

	all, err := s.ListHabits(ctx, "u1")
	if err != nil {
		t.Fatalf("ListHabits() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ListHabits() len = %d, want 1 (upsert must not duplicate)", len(all))
	}
	if all[0].OccurrenceCount != 4 || all[0].LastConfirmed == nil {
		t.Errorf("update lost: %+v", all[0])
	}

	byID, err := s.GetHabit(ctx, h.HabitID)
	if err != nil || byID == nil {
		t.Fatalf("GetHabit() = %v, %v", byID, err)
	}

	other, err := s.FindHabit(ctx, "u1", models.PatternKey{Type: models.HabitTimeBased, Key: "buy groceries"})
	if err != nil || other != nil {
		t.Errorf("FindHabit(other type) = %v, %v; want nil", other, err)
	}
}

func testLearnState(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedProfiles(t, s, "u1")

	st, err := s.GetLearnState(ctx, "u1")
	if err != nil || st != nil {
		t.Fatalf("GetLearnState(missing) = %v, %v", st, err)
	}

	want := &models.LearnState{
		UserID:        "u1",
		Cursor:        models.EventCursor{Timestamp: base, EventID: "evt_1"},
		EventsScanned: 10,
		StartedAt:     base,
		LastLearnRun:  base.Add(time.Minute),
		Complete:      true,
	}
	if err := s.SaveLearnState(ctx, want); err != nil {
		t.Fatalf("SaveLearnState() error = %v", err)
	}
	got, err := s.GetLearnState(ctx, "u1")
	if err != nil || got == nil {
		t.Fatalf("GetLearnState() = %v, %v", got, err)
	}
	if got.Cursor.EventID != "evt_1" || !got.Cursor.Timestamp.Equal(base) || !got.Complete {
		t.Errorf("GetLearnState() = %+v", got)
	}
}

func testPredictions(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedProfiles(t, s, "u1")

	older := &models.Prediction{
		PredictionID:    models.NewPredictionID(),
		UserID:          "u1",
		PredictedAction: "buy groceries",
		Confidence:      0.6,
		TimeOfDayBucket: "morning",
		Status:          models.PredictionPending,
		CreatedAt:       base,
	}
	newer := &models.Prediction{
		PredictionID:    models.NewPredictionID(),
		UserID:          "u1",
		PredictedAction: "call mom",
		Confidence:      0.7,
		Status:          models.PredictionPending,
		CreatedAt:       base.Add(time.Hour),
	}
	for _, p := range []*models.Prediction{older, newer} {
		if err := s.SavePrediction(ctx, p); err != nil {
			t.Fatalf("SavePrediction() error = %v", err)
		}
	}

	resolved := base.Add(2 * time.Hour)
	older.Status = models.PredictionAccepted
	older.ResolvedAt = &resolved
	if err := s.SavePrediction(ctx, older); err != nil {
		t.Fatalf("SavePrediction() update error = %v", err)
	}

	got, err := s.GetPrediction(ctx, older.PredictionID)
	if err != nil || got == nil {
		t.Fatalf("GetPrediction() = %v, %v", got, err)
	}
	if got.Status != models.PredictionAccepted || got.ResolvedAt == nil || got.HabitID != "" {
		t.Errorf("GetPrediction() = %+v", got)
	}

	all, err := s.ListPredictions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListPredictions() error = %v", err)
	}
	if len(all) != 2 || all[0].PredictionID != newer.PredictionID {
		t.Errorf("ListPredictions() should be newest first, got %d items", len(all))
	}
}

func testContextEntries(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedProfiles(t, s, "u1", "u2")

	for i := 0; i < 4; i++ {
		e := &models.ContextEntry{
			EntryID:     models.NewEntryID(),
			UserID:      "u1",
			UserMessage: "message",
			Intent:      "create_task",
			Entities:    map[string]string{"task": "call the dentist"},
			Timestamp:   base.Add(time.Duration(i) * 10 * time.Minute),
		}
		if err := s.AppendContextEntry(ctx, e); err != nil {
			t.Fatalf("AppendContextEntry() error = %v", err)
		}
	}
	if err := s.AppendContextEntry(ctx, &models.ContextEntry{
		EntryID: models.NewEntryID(), UserID: "u2", UserMessage: "hi", Timestamp: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("AppendContextEntry() error = %v", err)
	}

	window, err := s.ListContextEntries(ctx, "u1", base.Add(10*time.Minute), 2)
	if err != nil {
		t.Fatalf("ListContextEntries() error = %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window len = %d, want 2", len(window))
	}
	if !window[0].Timestamp.Equal(base.Add(30 * time.Minute)) {
		t.Errorf("window must be newest first, got %v", window[0].Timestamp)
	}
	if window[0].Entities["task"] != "call the dentist" {
		t.Errorf("entities lost: %v", window[0].Entities)
	}

	all, _ := s.ListContextEntries(ctx, "u1", time.Time{}, 0)
	if len(all) != 4 {
		t.Errorf("unbounded list len = %d, want 4", len(all))
	}

	n, err := s.DeleteContextEntries(ctx, "u1", base.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("DeleteContextEntries() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	others, _ := s.ListContextEntries(ctx, "u2", time.Time{}, 0)
	if len(others) != 1 {
		t.Error("pruning one user must not touch another")
	}
}

func testMoodSamples(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedProfiles(t, s, "u1")

	labels := []models.MoodLabel{models.MoodSad, models.MoodNeutral, models.MoodHappy}
	for i, l := range labels {
		m := &models.MoodSample{
			SampleID:   models.NewMoodSampleID(),
			UserID:     "u1",
			Timestamp:  base.Add(time.Duration(i) * 24 * time.Hour),
			Source:     models.MoodSourceText,
			MoodLabel:  l,
			MoodScores: models.MoodScores{l: 1},
			Confidence: 1,
		}
		if err := s.AppendMoodSample(ctx, m); err != nil {
			t.Fatalf("AppendMoodSample() error = %v", err)
		}
	}

	got, err := s.ListMoodSamples(ctx, "u1", base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListMoodSamples() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].MoodLabel != models.MoodNeutral || got[1].MoodLabel != models.MoodHappy {
		t.Errorf("samples must be oldest first: %s, %s", got[0].MoodLabel, got[1].MoodLabel)
	}
	if got[1].MoodScores[models.MoodHappy] != 1 {
		t.Errorf("scores lost: %v", got[1].MoodScores)
	}
}

func testVoiceprints(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedProfiles(t, s, "u1", "u2")

	trained := base.Add(time.Hour)
	a := &models.Voiceprint{ProfileID: "vp_aaaaaaaaaaaa", UserID: "u1", ProfileName: "home", IsPrimary: true, CreatedAt: base}
	b := &models.Voiceprint{
		ProfileID: "vp_bbbbbbbbbbbb", UserID: "u2", ProfileName: "office", CreatedAt: base.Add(time.Minute),
		Centroid: []float64{0.1, -0.2, 0.3}, SampleCount: 3, TrainedAt: &trained,
	}
	for _, v := range []*models.Voiceprint{a, b} {
		if err := s.SaveVoiceprint(ctx, v); err != nil {
			t.Fatalf("SaveVoiceprint() error = %v", err)
		}
	}

	got, err := s.GetVoiceprint(ctx, b.ProfileID)
	if err != nil || got == nil {
		t.Fatalf("GetVoiceprint() = %v, %v", got, err)
	}
	if len(got.Centroid) != 3 || got.Centroid[1] != -0.2 || !got.Trained() {
		t.Errorf("GetVoiceprint() = %+v", got)
	}

	all, err := s.ListVoiceprints(ctx, nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListVoiceprints(all) = %d, %v", len(all), err)
	}
	if all[0].ProfileID != a.ProfileID {
		t.Error("voiceprints should be oldest first")
	}

	mine, _ := s.ListVoiceprints(ctx, []string{"u1"})
	if len(mine) != 1 || mine[0].ProfileID != a.ProfileID {
		t.Errorf("ListVoiceprints(u1) = %v", mine)
	}

	if err := s.DeleteVoiceprint(ctx, a.ProfileID); err != nil {
		t.Fatalf("DeleteVoiceprint() error = %v", err)
	}
	gone, err := s.GetVoiceprint(ctx, a.ProfileID)
	if err != nil || gone != nil {
		t.Errorf("GetVoiceprint(deleted) = %v, %v", gone, err)
	}
}
