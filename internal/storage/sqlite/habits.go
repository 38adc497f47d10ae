// ABOUTME: Habit storage operations for SQLite
// ABOUTME: Habits are unique per (user_id, habit_type, pattern_key) and upserted in place
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/harper/attune/internal/models"
)

// HabitStore handles habit persistence
type HabitStore struct {
	db *DB
}

// NewHabitStore creates a new HabitStore
func NewHabitStore(db *DB) *HabitStore {
	return &HabitStore{db: db}
}

const habitColumns = `id, user_id, habit_type, pattern_key, pattern_data, confidence, base_confidence,
	feedback_adjust, occurrence_count, low_confidence, first_seen, last_seen, last_confirmed, created_at, updated_at`

// Get retrieves a habit by id, returning nil if not found
func (s *HabitStore) Get(ctx context.Context, habitID string) (*models.Habit, error) {
	h, err := scanHabit(s.db.QueryRow(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, habitID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return h, err
}

// Find retrieves a habit by its tagged pattern key, returning nil if not found
func (s *HabitStore) Find(ctx context.Context, userID string, key models.PatternKey) (*models.Habit, error) {
	h, err := scanHabit(s.db.QueryRow(ctx, `
		SELECT `+habitColumns+`
		FROM habits
		WHERE user_id = ? AND habit_type = ? AND pattern_key = ?
	`, userID, string(key.Type), key.Key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return h, err
}

// Save inserts or updates a habit (upsert on the pattern key)
func (s *HabitStore) Save(ctx context.Context, h *models.Habit) error {
	dataJSON, err := json.Marshal(h.PatternData)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, habit_type, pattern_key) DO UPDATE SET
			pattern_data = excluded.pattern_data,
			confidence = excluded.confidence,
			base_confidence = excluded.base_confidence,
			feedback_adjust = excluded.feedback_adjust,
			occurrence_count = excluded.occurrence_count,
			low_confidence = excluded.low_confidence,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			last_confirmed = excluded.last_confirmed,
			updated_at = excluded.updated_at
	`, h.HabitID, h.UserID, string(h.HabitType), h.PatternKey, string(dataJSON),
		h.Confidence, h.BaseConfidence, h.FeedbackAdjust, h.OccurrenceCount, boolToInt(h.LowConfidence),
		toNanos(h.FirstSeen), toNanos(h.LastSeen), nullableNanos(h.LastConfirmed),
		toNanos(h.CreatedAt), toNanos(h.UpdatedAt))
	return err
}

// List returns every habit for a user, highest confidence first
func (s *HabitStore) List(ctx context.Context, userID string) ([]*models.Habit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+habitColumns+`
		FROM habits
		WHERE user_id = ?
		ORDER BY confidence DESC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var habits []*models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func scanHabit(row scanner) (*models.Habit, error) {
	var (
		h                    models.Habit
		habitType            string
		dataJSON             sql.NullString
		low                  int
		firstSeen, lastSeen  int64
		lastConfirmed        sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&h.HabitID, &h.UserID, &habitType, &h.PatternKey, &dataJSON,
		&h.Confidence, &h.BaseConfidence, &h.FeedbackAdjust, &h.OccurrenceCount, &low,
		&firstSeen, &lastSeen, &lastConfirmed, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	h.HabitType = models.HabitType(habitType)
	h.LowConfidence = low != 0
	h.FirstSeen = fromNanos(firstSeen)
	h.LastSeen = fromNanos(lastSeen)
	h.LastConfirmed = fromNullNanos(lastConfirmed)
	h.CreatedAt = fromNanos(createdAt)
	h.UpdatedAt = fromNanos(updatedAt)
	if dataJSON.Valid && dataJSON.String != "" {
		_ = json.Unmarshal([]byte(dataJSON.String), &h.PatternData)
	}
	return &h, nil
}
