// ABOUTME: Prediction is a suggested next action derived from a habit
// ABOUTME: Status moves from pending to exactly one terminal state
package models

import (
	"time"

	"github.com/google/uuid"
)

// PredictionStatus tracks the prediction lifecycle.
type PredictionStatus string

const (
	PredictionPending   PredictionStatus = "pending"
	PredictionAccepted  PredictionStatus = "accepted"
	PredictionDismissed PredictionStatus = "dismissed"
	PredictionExpired   PredictionStatus = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s PredictionStatus) Terminal() bool {
	return s == PredictionAccepted || s == PredictionDismissed || s == PredictionExpired
}

// Prediction is a forward-looking suggestion subject to user feedback.
type Prediction struct {
	PredictionID    string           `json:"prediction_id"`
	UserID          string           `json:"user_id"`
	HabitID         string           `json:"habit_id,omitempty"`
	PredictedAction string           `json:"predicted_action"`
	Reason          string           `json:"reason"`
	Confidence      float64          `json:"confidence"`
	TimeOfDayBucket string           `json:"time_of_day_bucket"`
	Status          PredictionStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
}

// ExpireIfStale transitions a pending prediction older than ttl to expired.
// It reports whether the status changed.
func (p *Prediction) ExpireIfStale(now time.Time, ttl time.Duration) bool {
	if p.Status != PredictionPending || ttl <= 0 {
		return false
	}
	if now.Sub(p.CreatedAt) < ttl {
		return false
	}
	p.Status = PredictionExpired
	at := p.CreatedAt.Add(ttl)
	p.ResolvedAt = &at
	return true
}

// NewPredictionID generates a unique prediction identifier
func NewPredictionID() string {
	return "pred_" + uuid.New().String()
}

// Accuracy aggregates terminal prediction outcomes for a user.
type Accuracy struct {
	Total     int     `json:"total"`
	Accepted  int     `json:"accepted"`
	Dismissed int     `json:"dismissed"`
	Expired   int     `json:"expired"`
	Accuracy  float64 `json:"accuracy"`
}

// ComputeAccuracy tallies terminal predictions. Pending ones are ignored.
func ComputeAccuracy(preds []*Prediction) Accuracy {
	var a Accuracy
	for _, p := range preds {
		switch p.Status {
		case PredictionAccepted:
			a.Accepted++
		case PredictionDismissed:
			a.Dismissed++
		case PredictionExpired:
			a.Expired++
		default:
			continue
		}
		a.Total++
	}
	if decided := a.Accepted + a.Dismissed; decided > 0 {
		a.Accuracy = float64(a.Accepted) / float64(decided)
	}
	return a
}
