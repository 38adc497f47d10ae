// ABOUTME: Conversation context storage operations for SQLite
// ABOUTME: Entries stay stored after they fall out of the active window
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/harper/attune/internal/models"
)

// ContextStore handles conversational context entries
type ContextStore struct {
	db *DB
}

// NewContextStore creates a new ContextStore
func NewContextStore(db *DB) *ContextStore {
	return &ContextStore{db: db}
}

const contextColumns = `id, user_id, session_window_id, user_message, assistant_response, intent, entities, language, channel, ts`

// Append inserts a context entry
func (s *ContextStore) Append(ctx context.Context, e *models.ContextEntry) error {
	entitiesJSON := []byte("{}")
	if e.Entities != nil {
		var err error
		entitiesJSON, err = json.Marshal(e.Entities)
		if err != nil {
			return err
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO context_entries (`+contextColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.EntryID, e.UserID, e.SessionWindowID, e.UserMessage, e.AssistantResponse, e.Intent,
		string(entitiesJSON), e.Language, e.Channel, toNanos(e.Timestamp))
	return err
}

// List returns entries at or after since, newest first
func (s *ContextStore) List(ctx context.Context, userID string, since time.Time, limit int) ([]*models.ContextEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+contextColumns+`
		FROM context_entries
		WHERE user_id = ? AND ts >= ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, userID, toNanos(since), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.ContextEntry
	for rows.Next() {
		var (
			e                    models.ContextEntry
			session, response    sql.NullString
			intent, entitiesJSON sql.NullString
			language, channel    sql.NullString
			ts                   int64
		)
		err := rows.Scan(&e.EntryID, &e.UserID, &session, &e.UserMessage, &response, &intent,
			&entitiesJSON, &language, &channel, &ts)
		if err != nil {
			return nil, err
		}
		e.SessionWindowID = session.String
		e.AssistantResponse = response.String
		e.Intent = intent.String
		e.Language = language.String
		e.Channel = channel.String
		e.Timestamp = fromNanos(ts)
		if entitiesJSON.Valid && entitiesJSON.String != "" {
			if err := json.Unmarshal([]byte(entitiesJSON.String), &e.Entities); err != nil {
				e.Entities = map[string]string{}
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// DeleteBefore removes entries older than before and reports how many went
func (s *ContextStore) DeleteBefore(ctx context.Context, userID string, before time.Time) (int, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM context_entries WHERE user_id = ? AND ts < ?`, userID, toNanos(before))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
