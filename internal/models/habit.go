// ABOUTME: Habit is a confirmed recurring pattern mined from the event log
// ABOUTME: PatternKey is the tagged grouping key that identifies a habit per user
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HabitType classifies the pattern a habit captures.
type HabitType string

const (
	HabitRecurringTask      HabitType = "recurring_task"
	HabitCommandUsage       HabitType = "command_usage"
	HabitTimeBased          HabitType = "time_based"
	HabitLanguagePreference HabitType = "language_preference"
	HabitChannelPreference  HabitType = "channel_preference"
)

// HabitTypes lists every habit type in reporting order.
var HabitTypes = []HabitType{
	HabitRecurringTask,
	HabitCommandUsage,
	HabitTimeBased,
	HabitLanguagePreference,
	HabitChannelPreference,
}

// Valid reports whether t is a known habit type.
func (t HabitType) Valid() bool {
	for _, ht := range HabitTypes {
		if ht == t {
			return true
		}
	}
	return false
}

// Predictive reports whether habits of this type can produce task predictions.
func (t HabitType) Predictive() bool {
	return t == HabitRecurringTask || t == HabitTimeBased
}

// PatternKey groups events into candidate habits. Keys of different types never
// collide even when their raw strings are equal.
type PatternKey struct {
	Type HabitType `json:"habit_type"`
	Key  string    `json:"pattern_key"`
}

func (k PatternKey) String() string {
	return fmt.Sprintf("%s/%s", k.Type, k.Key)
}

// PatternData describes the observed shape of a habit.
type PatternData struct {
	Title      string   `json:"title,omitempty"`
	Command    string   `json:"command,omitempty"`
	Value      string   `json:"value,omitempty"`
	Weekdays   []int    `json:"weekdays,omitempty"`
	Hour       int      `json:"hour"`
	Minute     int      `json:"minute"`
	TimeOfDay  string   `json:"time_of_day,omitempty"`
	Samples    []string `json:"samples,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Share      float64  `json:"share,omitempty"`
	Frequency  float64  `json:"frequency"`
	Recency    float64  `json:"recency"`
	Regularity float64  `json:"regularity"`
}

// Daily reports whether the pattern occurs on every day of the week.
func (d PatternData) Daily() bool {
	return len(d.Weekdays) == 7
}

// OnWeekday reports whether wd is one of the pattern's typical weekdays.
func (d PatternData) OnWeekday(wd time.Weekday) bool {
	for _, w := range d.Weekdays {
		if time.Weekday(w) == wd {
			return true
		}
	}
	return false
}

// Habit is a durable learned pattern for one user.
type Habit struct {
	HabitID         string      `json:"habit_id"`
	UserID          string      `json:"user_id"`
	HabitType       HabitType   `json:"habit_type"`
	PatternKey      string      `json:"pattern_key"`
	PatternData     PatternData `json:"pattern_data"`
	Confidence      float64     `json:"confidence"`
	BaseConfidence  float64     `json:"base_confidence"`
	FeedbackAdjust  float64     `json:"feedback_adjust"`
	OccurrenceCount int         `json:"occurrence_count"`
	LowConfidence   bool        `json:"low_confidence"`
	FirstSeen       time.Time   `json:"first_seen"`
	LastSeen        time.Time   `json:"last_seen"`
	LastConfirmed   *time.Time  `json:"last_confirmed,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Key returns the habit's tagged pattern key.
func (h *Habit) Key() PatternKey {
	return PatternKey{Type: h.HabitType, Key: h.PatternKey}
}

// Recompute derives Confidence from the learned base plus feedback.
func (h *Habit) Recompute(threshold float64) {
	h.Confidence = Clamp01(h.BaseConfidence + h.FeedbackAdjust)
	h.LowConfidence = h.Confidence < threshold
}

// Reinforce shifts the feedback adjustment by delta, keeping confidence in [0,1].
func (h *Habit) Reinforce(delta, threshold float64) {
	adj := h.FeedbackAdjust + delta
	if hi := 1 - h.BaseConfidence; adj > hi {
		adj = hi
	}
	if lo := -h.BaseConfidence; adj < lo {
		adj = lo
	}
	h.FeedbackAdjust = adj
	h.Recompute(threshold)
}

// Anchor returns the most recent of LastSeen and LastConfirmed.
func (h *Habit) Anchor() time.Time {
	if h.LastConfirmed != nil && h.LastConfirmed.After(h.LastSeen) {
		return *h.LastConfirmed
	}
	return h.LastSeen
}

// NewHabitID generates a unique habit identifier
func NewHabitID() string {
	return "hab_" + uuid.New().String()
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
