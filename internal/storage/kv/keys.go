// ABOUTME: Key layout for the KV-backed store
// ABOUTME: Time-ordered keys embed zero-padded unix nanoseconds so lexical order is time order
package kv

import (
	"fmt"
	"net/url"
	"time"

	"github.com/harper/attune/internal/models"
)

// Key prefixes for different entity types
const (
	ProfilePrefix      = "profile:"
	EventPrefix        = "event:"
	HabitPrefix        = "habit:"
	HabitKeyPrefix     = "habitkey:"
	HabitIDPrefix      = "habitid:"
	LearnStatePrefix   = "learn:"
	PredictionPrefix   = "prediction:"
	PredictionIDPrefix = "predid:"
	ContextPrefix      = "context:"
	MoodPrefix         = "mood:"
	VoiceprintPrefix   = "voiceprint:"
	VoiceprintIDPrefix = "vpid:"
)

// esc keeps user supplied ids from introducing separators
func esc(s string) string {
	return url.QueryEscape(s)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return fmt.Sprintf("%020d", 0)
	}
	return fmt.Sprintf("%020d", t.UnixNano())
}

// ProfileKey generates a key for a Profile
func ProfileKey(userID string) string {
	return ProfilePrefix + esc(userID)
}

// EventUserPrefix scopes event keys to one user
func EventUserPrefix(userID string) string {
	return EventPrefix + esc(userID) + ":"
}

// EventKey generates a time-ordered key for an Event
func EventKey(userID string, ts time.Time, eventID string) string {
	return EventUserPrefix(userID) + stamp(ts) + ":" + esc(eventID)
}

// HabitUserPrefix scopes habit keys to one user
func HabitUserPrefix(userID string) string {
	return HabitPrefix + esc(userID) + ":"
}

// HabitKey generates a key for a Habit
func HabitKey(userID, habitID string) string {
	return HabitUserPrefix(userID) + esc(habitID)
}

// HabitPatternKey indexes a habit by its tagged pattern key
func HabitPatternKey(userID string, key models.PatternKey) string {
	return HabitKeyPrefix + esc(userID) + ":" + esc(string(key.Type)) + ":" + esc(key.Key)
}

// HabitIDKey maps a habit id to its owner
func HabitIDKey(habitID string) string {
	return HabitIDPrefix + esc(habitID)
}

// LearnStateKey generates a key for a user's learn checkpoint
func LearnStateKey(userID string) string {
	return LearnStatePrefix + esc(userID)
}

// PredictionUserPrefix scopes prediction keys to one user
func PredictionUserPrefix(userID string) string {
	return PredictionPrefix + esc(userID) + ":"
}

// PredictionKey generates a key for a Prediction
func PredictionKey(userID, predictionID string) string {
	return PredictionUserPrefix(userID) + esc(predictionID)
}

// PredictionIDKey maps a prediction id to its owner
func PredictionIDKey(predictionID string) string {
	return PredictionIDPrefix + esc(predictionID)
}

// ContextUserPrefix scopes context keys to one user
func ContextUserPrefix(userID string) string {
	return ContextPrefix + esc(userID) + ":"
}

// ContextKey generates a time-ordered key for a ContextEntry
func ContextKey(userID string, ts time.Time, entryID string) string {
	return ContextUserPrefix(userID) + stamp(ts) + ":" + esc(entryID)
}

// MoodUserPrefix scopes mood keys to one user
func MoodUserPrefix(userID string) string {
	return MoodPrefix + esc(userID) + ":"
}

// MoodKey generates a time-ordered key for a MoodSample
func MoodKey(userID string, ts time.Time, sampleID string) string {
	return MoodUserPrefix(userID) + stamp(ts) + ":" + esc(sampleID)
}

// VoiceprintUserPrefix scopes voiceprint keys to one user
func VoiceprintUserPrefix(userID string) string {
	return VoiceprintPrefix + esc(userID) + ":"
}

// VoiceprintKey generates a key for a Voiceprint
func VoiceprintKey(userID, profileID string) string {
	return VoiceprintUserPrefix(userID) + esc(profileID)
}

// VoiceprintIDKey maps a voiceprint id to its owner
func VoiceprintIDKey(profileID string) string {
	return VoiceprintIDPrefix + esc(profileID)
}
