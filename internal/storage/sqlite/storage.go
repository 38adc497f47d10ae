// ABOUTME: Unified Storage layer that wraps all SQLite stores
// ABOUTME: Implements the engine's Store contract and tags driver failures as storage errors
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/attune/internal/models"
)

// Storage manages all persistent learning data using SQLite
type Storage struct {
	db          *DB
	profiles    *ProfileStore
	events      *EventStore
	habits      *HabitStore
	learnState  *LearnStateStore
	predictions *PredictionStore
	contexts    *ContextStore
	moods       *MoodStore
	voiceprints *VoiceprintStore
}

// NewStorageWithPath initializes storage with a custom database path
func NewStorageWithPath(dbPath string) (*Storage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db), nil
}

// NewStorageInMemory creates an in-memory storage (for testing)
func NewStorageInMemory() (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return newStorage(db), nil
}

func newStorage(db *DB) *Storage {
	return &Storage{
		db:          db,
		profiles:    NewProfileStore(db),
		events:      NewEventStore(db),
		habits:      NewHabitStore(db),
		learnState:  NewLearnStateStore(db),
		predictions: NewPredictionStore(db),
		contexts:    NewContextStore(db),
		moods:       NewMoodStore(db),
		voiceprints: NewVoiceprintStore(db),
	}
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database wrapper
func (s *Storage) DB() *DB {
	return s.db
}

func (s *Storage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	return p, models.WrapStorage("get profile", err)
}

func (s *Storage) SaveProfile(ctx context.Context, p *models.Profile) error {
	return models.WrapStorage("save profile", s.profiles.Save(ctx, p))
}

func (s *Storage) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	ps, err := s.profiles.List(ctx)
	return ps, models.WrapStorage("list profiles", err)
}

func (s *Storage) AppendEvent(ctx context.Context, e *models.Event) error {
	return models.WrapStorage("append event", s.events.Append(ctx, e))
}

func (s *Storage) ListEvents(ctx context.Context, userID string, after models.EventCursor, limit int) ([]*models.Event, error) {
	es, err := s.events.List(ctx, userID, after, limit)
	return es, models.WrapStorage("list events", err)
}

func (s *Storage) LatestEvent(ctx context.Context, userID string) (*models.Event, error) {
	e, err := s.events.Latest(ctx, userID)
	return e, models.WrapStorage("latest event", err)
}

func (s *Storage) GetHabit(ctx context.Context, habitID string) (*models.Habit, error) {
	h, err := s.habits.Get(ctx, habitID)
	return h, models.WrapStorage("get habit", err)
}

func (s *Storage) FindHabit(ctx context.Context, userID string, key models.PatternKey) (*models.Habit, error) {
	h, err := s.habits.Find(ctx, userID, key)
	return h, models.WrapStorage("find habit", err)
}

func (s *Storage) SaveHabit(ctx context.Context, h *models.Habit) error {
	return models.WrapStorage("save habit", s.habits.Save(ctx, h))
}

func (s *Storage) ListHabits(ctx context.Context, userID string) ([]*models.Habit, error) {
	hs, err := s.habits.List(ctx, userID)
	return hs, models.WrapStorage("list habits", err)
}

func (s *Storage) GetLearnState(ctx context.Context, userID string) (*models.LearnState, error) {
	st, err := s.learnState.Get(ctx, userID)
	return st, models.WrapStorage("get learn state", err)
}

func (s *Storage) SaveLearnState(ctx context.Context, st *models.LearnState) error {
	return models.WrapStorage("save learn state", s.learnState.Save(ctx, st))
}

func (s *Storage) GetPrediction(ctx context.Context, predictionID string) (*models.Prediction, error) {
	p, err := s.predictions.Get(ctx, predictionID)
	return p, models.WrapStorage("get prediction", err)
}

func (s *Storage) SavePrediction(ctx context.Context, p *models.Prediction) error {
	return models.WrapStorage("save prediction", s.predictions.Save(ctx, p))
}

func (s *Storage) ListPredictions(ctx context.Context, userID string) ([]*models.Prediction, error) {
	ps, err := s.predictions.List(ctx, userID)
	return ps, models.WrapStorage("list predictions", err)
}

func (s *Storage) AppendContextEntry(ctx context.Context, e *models.ContextEntry) error {
	return models.WrapStorage("append context", s.contexts.Append(ctx, e))
}

func (s *Storage) ListContextEntries(ctx context.Context, userID string, since time.Time, limit int) ([]*models.ContextEntry, error) {
	es, err := s.contexts.List(ctx, userID, since, limit)
	return es, models.WrapStorage("list context", err)
}

func (s *Storage) DeleteContextEntries(ctx context.Context, userID string, before time.Time) (int, error) {
	n, err := s.contexts.DeleteBefore(ctx, userID, before)
	return n, models.WrapStorage("prune context", err)
}

func (s *Storage) AppendMoodSample(ctx context.Context, m *models.MoodSample) error {
	return models.WrapStorage("append mood", s.moods.Append(ctx, m))
}

func (s *Storage) ListMoodSamples(ctx context.Context, userID string, since time.Time) ([]*models.MoodSample, error) {
	ms, err := s.moods.List(ctx, userID, since)
	return ms, models.WrapStorage("list mood", err)
}

func (s *Storage) GetVoiceprint(ctx context.Context, profileID string) (*models.Voiceprint, error) {
	v, err := s.voiceprints.Get(ctx, profileID)
	return v, models.WrapStorage("get voiceprint", err)
}

func (s *Storage) SaveVoiceprint(ctx context.Context, v *models.Voiceprint) error {
	return models.WrapStorage("save voiceprint", s.voiceprints.Save(ctx, v))
}

func (s *Storage) ListVoiceprints(ctx context.Context, userIDs []string) ([]*models.Voiceprint, error) {
	vs, err := s.voiceprints.List(ctx, userIDs)
	return vs, models.WrapStorage("list voiceprints", err)
}

func (s *Storage) DeleteVoiceprint(ctx context.Context, profileID string) error {
	return models.WrapStorage("delete voiceprint", s.voiceprints.Delete(ctx, profileID))
}
