// ABOUTME: Prediction storage operations for SQLite
// ABOUTME: Status transitions are written back with the same upsert
package sqlite

import (
	"context"
	"database/sql"

	"github.com/harper/attune/internal/models"
)

// PredictionStore handles prediction persistence
type PredictionStore struct {
	db *DB
}

// NewPredictionStore creates a new PredictionStore
func NewPredictionStore(db *DB) *PredictionStore {
	return &PredictionStore{db: db}
}

const predictionColumns = `id, user_id, habit_id, predicted_action, reason, confidence, time_of_day, status, created_at, resolved_at`

// Get retrieves a prediction by id, returning nil if not found
func (s *PredictionStore) Get(ctx context.Context, predictionID string) (*models.Prediction, error) {
	p, err := scanPrediction(s.db.QueryRow(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = ?`, predictionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// Save inserts or updates a prediction
func (s *PredictionStore) Save(ctx context.Context, p *models.Prediction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO predictions (`+predictionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			predicted_action = excluded.predicted_action,
			reason = excluded.reason,
			confidence = excluded.confidence,
			time_of_day = excluded.time_of_day,
			status = excluded.status,
			resolved_at = excluded.resolved_at
	`, p.PredictionID, p.UserID, nullString(p.HabitID), p.PredictedAction, p.Reason, p.Confidence,
		p.TimeOfDayBucket, string(p.Status), toNanos(p.CreatedAt), nullableNanos(p.ResolvedAt))
	return err
}

// List returns every prediction for a user, newest first
func (s *PredictionStore) List(ctx context.Context, userID string) ([]*models.Prediction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+predictionColumns+`
		FROM predictions
		WHERE user_id = ?
		ORDER BY created_at DESC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var preds []*models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

func scanPrediction(row scanner) (*models.Prediction, error) {
	var (
		p                 models.Prediction
		habitID, reason   sql.NullString
		timeOfDay, status sql.NullString
		createdAt         int64
		resolvedAt        sql.NullInt64
	)
	err := row.Scan(&p.PredictionID, &p.UserID, &habitID, &p.PredictedAction, &reason, &p.Confidence,
		&timeOfDay, &status, &createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	p.HabitID = habitID.String
	p.Reason = reason.String
	p.TimeOfDayBucket = timeOfDay.String
	p.Status = models.PredictionStatus(status.String)
	p.CreatedAt = fromNanos(createdAt)
	p.ResolvedAt = fromNullNanos(resolvedAt)
	return &p, nil
}
