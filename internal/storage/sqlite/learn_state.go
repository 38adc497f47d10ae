// ABOUTME: Learn checkpoint storage for SQLite
// ABOUTME: Records the cursor of the latest committed batch per user
package sqlite

import (
	"context"
	"database/sql"

	"github.com/harper/attune/internal/models"
)

// LearnStateStore handles learn pass checkpoints
type LearnStateStore struct {
	db *DB
}

// NewLearnStateStore creates a new LearnStateStore
func NewLearnStateStore(db *DB) *LearnStateStore {
	return &LearnStateStore{db: db}
}

// Get retrieves the checkpoint for a user, returning nil if none exists
func (s *LearnStateStore) Get(ctx context.Context, userID string) (*models.LearnState, error) {
	var (
		st                           models.LearnState
		cursorTS, startedAt, lastRun sql.NullInt64
		cursorID                     sql.NullString
		complete                     int
	)
	err := s.db.QueryRow(ctx, `
		SELECT user_id, cursor_ts, cursor_id, events_scanned, habits_updated, started_at, last_learn_run, complete
		FROM learn_state
		WHERE user_id = ?
	`, userID).Scan(&st.UserID, &cursorTS, &cursorID, &st.EventsScanned, &st.HabitsUpdated, &startedAt, &lastRun, &complete)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.Cursor = models.EventCursor{Timestamp: fromNanos(cursorTS.Int64), EventID: cursorID.String}
	st.StartedAt = fromNanos(startedAt.Int64)
	st.LastLearnRun = fromNanos(lastRun.Int64)
	st.Complete = complete != 0
	return &st, nil
}

// Save upserts the checkpoint for a user
func (s *LearnStateStore) Save(ctx context.Context, st *models.LearnState) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO learn_state (user_id, cursor_ts, cursor_id, events_scanned, habits_updated, started_at, last_learn_run, complete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			cursor_ts = excluded.cursor_ts,
			cursor_id = excluded.cursor_id,
			events_scanned = excluded.events_scanned,
			habits_updated = excluded.habits_updated,
			started_at = excluded.started_at,
			last_learn_run = excluded.last_learn_run,
			complete = excluded.complete
	`, st.UserID, toNanos(st.Cursor.Timestamp), st.Cursor.EventID, st.EventsScanned, st.HabitsUpdated,
		toNanos(st.StartedAt), toNanos(st.LastLearnRun), boolToInt(st.Complete))
	return err
}
