// ABOUTME: Store implementation over a byte-level KV such as Charm
// ABOUTME: Values are JSON; secondary indexes map ids back to their owning user
package kv

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/harper/attune/internal/models"
)

// KV is the byte-level contract satisfied by the charm client and MemoryKV.
// Get returns (nil, nil) for a missing key.
type KV interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	ListKeys(prefix string) ([]string, error)
	Close() error
}

// Storage persists learning data in a KV
type Storage struct {
	kv KV
	mu sync.RWMutex // keeps index and record writes paired
}

// New wraps a KV as a Store
func New(kv KV) *Storage {
	return &Storage{kv: kv}
}

// NewInMemory creates a Storage over a fresh MemoryKV (for testing)
func NewInMemory() *Storage {
	return New(NewMemoryKV())
}

// Close closes the underlying KV
func (s *Storage) Close() error {
	return s.kv.Close()
}

func (s *Storage) put(op, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return models.WrapStorage(op, err)
	}
	return models.WrapStorage(op, s.kv.Set(key, data))
}

// load decodes key into dest, reporting whether it existed
func (s *Storage) load(op, key string, dest interface{}) (bool, error) {
	data, err := s.kv.Get(key)
	if err != nil {
		return false, models.WrapStorage(op, err)
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, models.WrapStorage(op, err)
	}
	return true, nil
}

func (s *Storage) keys(op, prefix string) ([]string, error) {
	keys, err := s.kv.ListKeys(prefix)
	return keys, models.WrapStorage(op, err)
}

func (s *Storage) owner(op, indexKey string) (string, error) {
	data, err := s.kv.Get(indexKey)
	if err != nil {
		return "", models.WrapStorage(op, err)
	}
	return string(data), nil
}

func (s *Storage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p models.Profile
	ok, err := s.load("get profile", ProfileKey(userID), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) SaveProfile(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	return s.put("save profile", ProfileKey(p.UserID), p)
}

func (s *Storage) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keys("list profiles", ProfilePrefix)
	if err != nil {
		return nil, err
	}
	var out []*models.Profile
	for _, k := range keys {
		var p models.Profile
		if ok, err := s.load("list profiles", k, &p); err != nil {
			return nil, err
		} else if ok {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Storage) AppendEvent(ctx context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put("append event", EventKey(e.UserID, e.Timestamp, e.EventID), e)
}

func (s *Storage) ListEvents(ctx context.Context, userID string, after models.EventCursor, limit int) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keys("list events", EventUserPrefix(userID))
	if err != nil {
		return nil, err
	}
	var cursorKey string
	if !after.IsZero() {
		cursorKey = EventKey(userID, after.Timestamp, after.EventID)
	}

	var out []*models.Event
	for _, k := range keys {
		if cursorKey != "" && k <= cursorKey {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e models.Event
		if ok, err := s.load("list events", k, &e); err != nil {
			return nil, err
		} else if ok {
			out = append(out, &e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Storage) LatestEvent(ctx context.Context, userID string) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keys("latest event", EventUserPrefix(userID))
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	var e models.Event
	ok, err := s.load("latest event", keys[len(keys)-1], &e)
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}

func (s *Storage) GetHabit(ctx context.Context, habitID string) (*models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, err := s.owner("get habit", HabitIDKey(habitID))
	if err != nil || userID == "" {
		return nil, err
	}
	return s.habitAt(HabitKey(userID, habitID))
}

func (s *Storage) habitAt(key string) (*models.Habit, error) {
	var h models.Habit
	ok, err := s.load("get habit", key, &h)
	if err != nil || !ok {
		return nil, err
	}
	return &h, nil
}

func (s *Storage) FindHabit(ctx context.Context, userID string, key models.PatternKey) (*models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	habitID, err := s.owner("find habit", HabitPatternKey(userID, key))
	if err != nil || habitID == "" {
		return nil, err
	}
	return s.habitAt(HabitKey(userID, habitID))
}

func (s *Storage) SaveHabit(ctx context.Context, h *models.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The pattern key is the identity; reuse the stored id on conflict
	indexKey := HabitPatternKey(h.UserID, h.Key())
	existing, err := s.owner("save habit", indexKey)
	if err != nil {
		return err
	}
	if existing != "" && existing != h.HabitID {
		h.HabitID = existing
	}
	if err := s.put("save habit", HabitKey(h.UserID, h.HabitID), h); err != nil {
		return err
	}
	if err := models.WrapStorage("save habit", s.kv.Set(indexKey, []byte(h.HabitID))); err != nil {
		return err
	}
	return models.WrapStorage("save habit", s.kv.Set(HabitIDKey(h.HabitID), []byte(h.UserID)))
}

func (s *Storage) ListHabits(ctx context.Context, userID string) ([]*models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keys("list habits", HabitUserPrefix(userID))
	if err != nil {
		return nil, err
	}
	var out []*models.Habit
	for _, k := range keys {
		h, err := s.habitAt(k)
		if err != nil {
			return nil, err
		}
		if h != nil {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].HabitID < out[j].HabitID
	})
	return out, nil
}

func (s *Storage) GetLearnState(ctx context.Context, userID string) (*models.LearnState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st models.LearnState
	ok, err := s.load("get learn state", LearnStateKey(userID), &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

func (s *Storage) SaveLearnState(ctx context.Context, st *models.LearnState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put("save learn state", LearnStateKey(st.UserID), st)
}

func (s *Storage) GetPrediction(ctx context.Context, predictionID string) (*models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, err := s.owner("get prediction", PredictionIDKey(predictionID))
	if err != nil || userID == "" {
		return nil, err
	}
	var p models.Prediction
	ok, err := s.load("get prediction", PredictionKey(userID, predictionID), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) SavePrediction(ctx context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.put("save prediction", PredictionKey(p.UserID, p.PredictionID), p); err != nil {
		return err
	}
	return models.WrapStorage("save prediction", s.kv.Set(PredictionIDKey(p.PredictionID), []byte(p.UserID)))
}

func (s *Storage) ListPredictions(ctx context.Context, userID string) ([]*models.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keys("list predictions", PredictionUserPrefix(userID))
	if err != nil {
		return nil, err
	}
	var out []*models.Prediction
	for _, k := range keys {
		var p models.Prediction
		if ok, err := s.load("list predictions", k, &p); err != nil {
			return nil, err
		} else if ok {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PredictionID < out[j].PredictionID
	})
	return out, nil
}

func (s *Storage) AppendContextEntry(ctx context.Context, e *models.ContextEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put("append context", ContextKey(e.UserID, e.Timestamp, e.EntryID), e)
}

func (s *Storage) ListContextEntries(ctx context.Context, userID string, since time.Time, limit int) ([]*models.ContextEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keys("list context", ContextUserPrefix(userID))
	if err != nil {
		return nil, err
	}
	floor := ContextUserPrefix(userID) + stamp(since)

	var out []*models.ContextEntry
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] < floor {
			break
		}
		var e models.ContextEntry
		if ok, err := s.load("list context", keys[i], &e); err != nil {
			return nil, err
		} else if ok {
			out = append(out, &e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Storage) DeleteContextEntries(ctx context.Context, userID string, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.keys("prune context", ContextUserPrefix(userID))
	if err != nil {
		return 0, err
	}
	ceiling := ContextUserPrefix(userID) + stamp(before)
	n := 0
	for _, k := range keys {
		if k >= ceiling {
			break
		}
		if err := s.kv.Delete(k); err != nil {
			return n, models.WrapStorage("prune context", err)
		}
		n++
	}
	return n, nil
}

func (s *Storage) AppendMoodSample(ctx context.Context, m *models.MoodSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put("append mood", MoodKey(m.UserID, m.Timestamp, m.SampleID), m)
}

func (s *Storage) ListMoodSamples(ctx context.Context, userID string, since time.Time) ([]*models.MoodSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.keys("list mood", MoodUserPrefix(userID))
	if err != nil {
		return nil, err
	}
	floor := MoodUserPrefix(userID) + stamp(since)

	var out []*models.MoodSample
	for _, k := range keys {
		if k < floor {
			continue
		}
		var m models.MoodSample
		if ok, err := s.load("list mood", k, &m); err != nil {
			return nil, err
		} else if ok {
			out = append(out, &m)
		}
	}
	return out, nil
}

func (s *Storage) GetVoiceprint(ctx context.Context, profileID string) (*models.Voiceprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, err := s.owner("get voiceprint", VoiceprintIDKey(profileID))
	if err != nil || userID == "" {
		return nil, err
	}
	var v models.Voiceprint
	ok, err := s.load("get voiceprint", VoiceprintKey(userID, profileID), &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func (s *Storage) SaveVoiceprint(ctx context.Context, v *models.Voiceprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.put("save voiceprint", VoiceprintKey(v.UserID, v.ProfileID), v); err != nil {
		return err
	}
	return models.WrapStorage("save voiceprint", s.kv.Set(VoiceprintIDKey(v.ProfileID), []byte(v.UserID)))
}

func (s *Storage) ListVoiceprints(ctx context.Context, userIDs []string) ([]*models.Voiceprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefixes := []string{VoiceprintPrefix}
	if len(userIDs) > 0 {
		prefixes = prefixes[:0]
		for _, id := range userIDs {
			prefixes = append(prefixes, VoiceprintUserPrefix(id))
		}
	}

	var out []*models.Voiceprint
	for _, prefix := range prefixes {
		keys, err := s.keys("list voiceprints", prefix)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			var v models.Voiceprint
			if ok, err := s.load("list voiceprints", k, &v); err != nil {
				return nil, err
			} else if ok {
				out = append(out, &v)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ProfileID < out[j].ProfileID
	})
	return out, nil
}

func (s *Storage) DeleteVoiceprint(ctx context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(VoiceprintIDKey(profileID))
	if err != nil {
		return models.WrapStorage("delete voiceprint", err)
	}
	if data == nil {
		return nil
	}
	if err := s.kv.Delete(VoiceprintKey(string(data), profileID)); err != nil {
		return models.WrapStorage("delete voiceprint", err)
	}
	return models.WrapStorage("delete voiceprint", s.kv.Delete(VoiceprintIDKey(profileID)))
}
