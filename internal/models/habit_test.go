// ABOUTME: Tests for Habit confidence math and PatternKey identity
// ABOUTME: Verifies feedback reinforcement stays bounded and monotonic

package models

import (
	"testing"
	"time"
)

func TestPatternKey_NoCrossTypeCollision(t *testing.T) {
	a := PatternKey{Type: HabitLanguagePreference, Key: "en"}
	b := PatternKey{Type: HabitChannelPreference, Key: "en"}
	if a == b {
		t.Fatal("keys with different types must differ")
	}
	if a.String() == b.String() {
		t.Errorf("String() collides: %q", a.String())
	}
}

func TestHabit_Reinforce(t *testing.T) {
	tests := []struct {
		name      string
		base      float64
		adjust    float64
		delta     float64
		want      float64
		wantLow   bool
		threshold float64
	}{
		{"accept bumps", 0.7, 0, 0.05, 0.75, false, 0.6},
		{"accept capped at one", 0.98, 0, 0.05, 1.0, false, 0.6},
		{"dismiss decays", 0.62, 0, -0.05, 0.57, true, 0.6},
		{"dismiss floored at zero", 0.02, 0, -0.05, 0, true, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Habit{BaseConfidence: tt.base, FeedbackAdjust: tt.adjust}
			h.Recompute(tt.threshold)
			before := h.Confidence
			h.Reinforce(tt.delta, tt.threshold)

			if diff := h.Confidence - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Confidence = %v, want %v", h.Confidence, tt.want)
			}
			if h.LowConfidence != tt.wantLow {
				t.Errorf("LowConfidence = %v, want %v", h.LowConfidence, tt.wantLow)
			}
			if tt.delta > 0 && h.Confidence < before {
				t.Error("positive feedback decreased confidence")
			}
			if tt.delta < 0 && h.Confidence > before {
				t.Error("negative feedback increased confidence")
			}
		})
	}
}

func TestHabit_ReinforceAfterCapStillResponds(t *testing.T) {
	h := &Habit{BaseConfidence: 0.98}
	h.Reinforce(0.05, 0.6)
	h.Reinforce(0.05, 0.6)
	h.Reinforce(-0.05, 0.6)
	if h.Confidence >= 1.0 {
		t.Errorf("dismiss after saturation should lower confidence, got %v", h.Confidence)
	}
}

func TestHabit_Anchor(t *testing.T) {
	seen := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	h := &Habit{LastSeen: seen}
	if !h.Anchor().Equal(seen) {
		t.Errorf("Anchor() = %v, want LastSeen", h.Anchor())
	}
	confirmed := seen.Add(48 * time.Hour)
	h.LastConfirmed = &confirmed
	if !h.Anchor().Equal(confirmed) {
		t.Errorf("Anchor() = %v, want LastConfirmed", h.Anchor())
	}
}
