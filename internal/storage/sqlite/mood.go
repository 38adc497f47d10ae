// ABOUTME: Mood history storage operations for SQLite
// ABOUTME: Samples are append-only and read back in time order
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/harper/attune/internal/models"
)

// MoodStore handles mood sample persistence
type MoodStore struct {
	db *DB
}

// NewMoodStore creates a new MoodStore
func NewMoodStore(db *DB) *MoodStore {
	return &MoodStore{db: db}
}

// Append inserts a mood sample
func (s *MoodStore) Append(ctx context.Context, m *models.MoodSample) error {
	scoresJSON, err := json.Marshal(m.MoodScores)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO mood_samples (id, user_id, ts, source, mood_label, mood_scores, confidence, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.SampleID, m.UserID, toNanos(m.Timestamp), string(m.Source), string(m.MoodLabel),
		string(scoresJSON), m.Confidence, m.Text)
	return err
}

// List returns samples at or after since, oldest first
func (s *MoodStore) List(ctx context.Context, userID string, since time.Time) ([]*models.MoodSample, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, ts, source, mood_label, mood_scores, confidence, text
		FROM mood_samples
		WHERE user_id = ? AND ts >= ?
		ORDER BY ts ASC, id ASC
	`, userID, toNanos(since))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var samples []*models.MoodSample
	for rows.Next() {
		var (
			m                models.MoodSample
			ts               int64
			source, label    string
			scoresJSON, text sql.NullString
		)
		if err := rows.Scan(&m.SampleID, &m.UserID, &ts, &source, &label, &scoresJSON, &m.Confidence, &text); err != nil {
			return nil, err
		}
		m.Timestamp = fromNanos(ts)
		m.Source = models.MoodSource(source)
		m.MoodLabel = models.MoodLabel(label)
		m.Text = text.String
		if scoresJSON.Valid && scoresJSON.String != "" {
			_ = json.Unmarshal([]byte(scoresJSON.String), &m.MoodScores)
		}
		samples = append(samples, &m)
	}
	return samples, rows.Err()
}
