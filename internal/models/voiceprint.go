// ABOUTME: Voiceprint is a trained acoustic representation of a user's voice
// ABOUTME: Stored as a running centroid over extracted feature vectors
package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Voiceprint is an enrolled voice profile owned by a user.
type Voiceprint struct {
	ProfileID           string     `json:"profile_id"`
	UserID              string     `json:"user_id"`
	ProfileName         string     `json:"profile_name"`
	Description         string     `json:"description,omitempty"`
	Centroid            []float64  `json:"feature_vector,omitempty"`
	SampleCount         int        `json:"sample_count"`
	IsPrimary           bool       `json:"is_primary"`
	RecognitionCount    int        `json:"recognition_count"`
	RecognitionAccuracy float64    `json:"recognition_accuracy"`
	CreatedAt           time.Time  `json:"created_at"`
	TrainedAt           *time.Time `json:"trained_at,omitempty"`
	LastUsed            *time.Time `json:"last_used,omitempty"`
}

// Trained reports whether the voiceprint can take part in recognition.
func (v *Voiceprint) Trained() bool {
	return v.TrainedAt != nil && len(v.Centroid) > 0
}

// NewVoiceprintID generates a "vp_" identifier with 12 hex characters
func NewVoiceprintID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return "vp_" + hex.EncodeToString(b)
}

// VoiceMatch scores one voiceprint against a query sample.
type VoiceMatch struct {
	ProfileID   string  `json:"profile_id"`
	UserID      string  `json:"user_id"`
	ProfileName string  `json:"profile_name"`
	Similarity  float64 `json:"similarity"`
}

// Recognition is the outcome of matching a query sample against enrolled voiceprints.
// RecognizedUserID is nil when no match clears the threshold.
type Recognition struct {
	RecognizedUserID *string      `json:"recognized_user_id"`
	ProfileID        *string      `json:"profile_id"`
	ProfileName      string       `json:"profile_name,omitempty"`
	Confidence       float64      `json:"confidence"`
	Threshold        float64      `json:"threshold"`
	Compared         int          `json:"compared"`
	Alternatives     []VoiceMatch `json:"alternatives"`
}
