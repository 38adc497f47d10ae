// ABOUTME: ContextEntry is one conversational exchange kept for reference resolution
// ABOUTME: Entities come pre-classified from the external intent parser
package models

import (
	"time"

	"github.com/google/uuid"
)

// ContextEntry represents a single exchange in a user's conversation
type ContextEntry struct {
	EntryID           string            `json:"entry_id"`
	UserID            string            `json:"user_id"`
	SessionWindowID   string            `json:"session_window_id"`
	UserMessage       string            `json:"user_message"`
	AssistantResponse string            `json:"assistant_response,omitempty"`
	Intent            string            `json:"intent,omitempty"`
	Entities          map[string]string `json:"entities,omitempty"`
	Language          string            `json:"language,omitempty"`
	Channel           string            `json:"channel,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}

// NewEntryID generates a unique context entry identifier
func NewEntryID() string {
	return "ctx_" + uuid.New().String()
}

// NewSessionWindowID generates a conversation session identifier
func NewSessionWindowID() string {
	return "sess_" + uuid.New().String()[:12]
}

// Utterance is the intent parser's reading of one user message
type Utterance struct {
	Intent   string            `json:"intent"`
	Entities map[string]string `json:"entities"`
	Language string            `json:"language"`
}
