// ABOUTME: Event is one immutable entry of a user's interaction log
// ABOUTME: Events feed habit mining and are ordered by timestamp then id
package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the interaction types recorded in the log.
type EventKind string

const (
	EventTaskCreated  EventKind = "task_created"
	EventCommandRun   EventKind = "command_run"
	EventMessage      EventKind = "message"
	EventVoiceCapture EventKind = "voice_capture"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventTaskCreated, EventCommandRun, EventMessage, EventVoiceCapture:
		return true
	}
	return false
}

// Event is an append-only interaction record.
type Event struct {
	EventID   string                 `json:"event_id"`
	UserID    string                 `json:"user_id"`
	Timestamp time.Time              `json:"timestamp"`
	Kind      EventKind              `json:"kind"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Language  string                 `json:"language,omitempty"`
	Channel   string                 `json:"channel,omitempty"`
}

// Cursor returns the position just after this event.
func (e *Event) Cursor() EventCursor {
	return EventCursor{Timestamp: e.Timestamp, EventID: e.EventID}
}

// PayloadString returns payload[key] when it is a string.
func (e *Event) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// Title returns the task title carried by a task_created event.
func (e *Event) Title() string {
	for _, k := range []string{"title", "task", "description"} {
		if s := e.PayloadString(k); s != "" {
			return s
		}
	}
	return ""
}

// Command returns the command name carried by a command_run event.
func (e *Event) Command() string {
	for _, k := range []string{"command", "name"} {
		if s := e.PayloadString(k); s != "" {
			return s
		}
	}
	return ""
}

// NewEventID generates a unique event identifier
func NewEventID() string {
	return "evt_" + uuid.New().String()
}

// EventCursor marks a position in a user's time-ordered event log.
// The zero value is the beginning of the log.
type EventCursor struct {
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
}

// IsZero reports whether the cursor points at the start of the log.
func (c EventCursor) IsZero() bool {
	return c.Timestamp.IsZero() && c.EventID == ""
}

// LearnState records progress of the most recent learning pass for a user.
type LearnState struct {
	UserID        string      `json:"user_id"`
	Cursor        EventCursor `json:"cursor"`
	EventsScanned int         `json:"events_scanned"`
	HabitsUpdated int         `json:"habits_updated"`
	StartedAt     time.Time   `json:"started_at"`
	LastLearnRun  time.Time   `json:"last_learn_run,omitempty"`
	Complete      bool        `json:"complete"`
}
