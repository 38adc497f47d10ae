// ABOUTME: Event log storage operations for SQLite
// ABOUTME: Append-only inserts and cursor-paged reads in (ts, id) order
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/harper/attune/internal/models"
)

// EventStore handles the interaction log
type EventStore struct {
	db *DB
}

// NewEventStore creates a new EventStore
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

const eventColumns = `id, user_id, ts, kind, payload, language, channel`

// Append inserts an event. Events are never updated.
func (s *EventStore) Append(ctx context.Context, e *models.Event) error {
	payloadJSON := []byte("{}")
	if e.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(e.Payload)
		if err != nil {
			return err
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.EventID, e.UserID, toNanos(e.Timestamp), string(e.Kind), string(payloadJSON), e.Language, e.Channel)
	return err
}

// List returns up to limit events after the cursor in time order
func (s *EventStore) List(ctx context.Context, userID string, after models.EventCursor, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	ts := toNanos(after.Timestamp)

	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE user_id = ? AND (ts > ? OR (ts = ? AND id > ?))
		ORDER BY ts ASC, id ASC
		LIMIT ?
	`, userID, ts, ts, after.EventID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Latest returns the user's most recent event, or nil
func (s *EventStore) Latest(ctx context.Context, userID string) (*models.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE user_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT 1
	`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func scanEvent(row scanner) (*models.Event, error) {
	var (
		e                      models.Event
		ts                     int64
		kind                   string
		payload, lang, channel sql.NullString
	)
	if err := row.Scan(&e.EventID, &e.UserID, &ts, &kind, &payload, &lang, &channel); err != nil {
		return nil, err
	}
	e.Timestamp = fromNanos(ts)
	e.Kind = models.EventKind(kind)
	e.Language = lang.String
	e.Channel = channel.String
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
			e.Payload = map[string]interface{}{}
		}
	}
	return &e, nil
}
