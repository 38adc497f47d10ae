// ABOUTME: MoodSample records one emotional-state estimate for a user
// ABOUTME: Labels form a fixed closed set scored as a distribution
package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// MoodLabel is one of the recognized emotional states.
type MoodLabel string

const (
	MoodHappy   MoodLabel = "happy"
	MoodExcited MoodLabel = "excited"
	MoodSad     MoodLabel = "sad"
	MoodAngry   MoodLabel = "angry"
	MoodAnxious MoodLabel = "anxious"
	MoodTired   MoodLabel = "tired"
	MoodNeutral MoodLabel = "neutral"
)

// MoodLabels lists every label in tie-break order.
var MoodLabels = []MoodLabel{MoodExcited, MoodHappy, MoodAngry, MoodSad, MoodAnxious, MoodTired, MoodNeutral}

// MoodSource identifies which signal produced a sample.
type MoodSource string

const (
	MoodSourceText     MoodSource = "text"
	MoodSourceVoice    MoodSource = "voice"
	MoodSourceCombined MoodSource = "combined"
)

// MoodScores is a distribution over mood labels.
type MoodScores map[MoodLabel]float64

// Normalize scales the scores to sum to 1. An empty distribution becomes neutral.
func (s MoodScores) Normalize() MoodScores {
	var total float64
	for _, v := range s {
		if v > 0 {
			total += v
		}
	}
	out := MoodScores{}
	if total == 0 {
		out[MoodNeutral] = 1
		return out
	}
	for k, v := range s {
		if v > 0 {
			out[k] = v / total
		}
	}
	return out
}

// Top returns the highest-scoring label. Ties follow MoodLabels order.
func (s MoodScores) Top() (MoodLabel, float64) {
	best, score := MoodNeutral, -1.0
	for _, l := range MoodLabels {
		if v, ok := s[l]; ok && v > score {
			best, score = l, v
		}
	}
	if score < 0 {
		return MoodNeutral, 0
	}
	return best, score
}

// Labels returns the labels present, highest score first.
func (s MoodScores) Labels() []MoodLabel {
	labels := make([]MoodLabel, 0, len(s))
	for l := range s {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if s[labels[i]] != s[labels[j]] {
			return s[labels[i]] > s[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

// MoodSample is an append-only mood estimate.
type MoodSample struct {
	SampleID   string     `json:"sample_id"`
	UserID     string     `json:"user_id"`
	Timestamp  time.Time  `json:"timestamp"`
	Source     MoodSource `json:"source"`
	MoodLabel  MoodLabel  `json:"mood_label"`
	MoodScores MoodScores `json:"mood_scores"`
	Confidence float64    `json:"confidence"`
	Text       string     `json:"text,omitempty"`
}

// NewMoodSampleID generates a unique mood sample identifier
func NewMoodSampleID() string {
	return "mood_" + uuid.New().String()
}
