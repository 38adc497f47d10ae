// ABOUTME: SuggestionEngine merges predictions, command habits, routines, context follow-ups, and mood
// ABOUTME: It adds no scoring of its own beyond ranking by the sources' confidence
package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harper/attune/internal/models"
)

// Suggestion sources
const (
	SuggestionTask     = "task"
	SuggestionCommand  = "command"
	SuggestionResponse = "response"
	SuggestionMood     = "mood"
	SuggestionRoutine  = "routine"
)

// Suggestion is one ranked item
type Suggestion struct {
	Type         string  `json:"type"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason,omitempty"`
	PredictionID string  `json:"prediction_id,omitempty"`
	HabitID      string  `json:"habit_id,omitempty"`

	// Routine suggestions only
	Items         []string `json:"items,omitempty"`
	PreferredTime string   `json:"preferred_time,omitempty"`
}

// SuggestionEngine composes the other components
type SuggestionEngine struct {
	*deps
	predictor *TaskPredictor
	context   *ContextManager
	mood      *MoodDetector
}

// Fixed confidences for sources that carry no score of their own
const (
	responseConfidence = 0.5
	routineConfidence  = 0.75
	maxRoutineItems    = 5
)

// Suggest returns one list ranked by confidence. When message is set, context
// follow-ups are resolved against it and command habits sharing its keywords
// rank first among equals.
func (s *SuggestionEngine) Suggest(ctx context.Context, userID, message string) ([]Suggestion, error) {
	profile, err := s.predictor.events.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	bucket := timeOfDay(now.In(profile.Location()).Hour())
	out := []Suggestion{}

	preds, err := s.predictor.Predict(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	for _, p := range preds {
		out = append(out, Suggestion{
			Type:         SuggestionTask,
			Text:         p.PredictedAction,
			Confidence:   p.Confidence,
			Reason:       p.Reason,
			PredictionID: p.PredictionID,
			HabitID:      p.HabitID,
		})
	}

	commands, err := s.predictor.activeCommandHabits(ctx, userID, bucket, now)
	if err != nil {
		return nil, err
	}
	words := extractKeywords([]string{message}, 10)
	for _, c := range commands {
		out = append(out, Suggestion{
			Type:       SuggestionCommand,
			Text:       c.action,
			Confidence: c.confidence,
			Reason:     "You often run this in the " + bucket,
			HabitID:    c.habit.HabitID,
		})
	}

	routine, err := s.morningRoutine(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if routine != nil {
		out = append(out, *routine)
	}

	if message != "" {
		res, err := s.context.ResolveReference(ctx, userID, message)
		if err != nil {
			return nil, err
		}
		for _, a := range res.SuggestedActions {
			out = append(out, Suggestion{
				Type:       SuggestionResponse,
				Text:       a,
				Confidence: responseConfidence,
				Reason:     "Follows your last " + res.PriorIntent + " request",
			})
		}
	}

	mood, err := s.mood.latest(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	if mood != nil {
		out = append(out, Suggestion{
			Type:       SuggestionMood,
			Text:       s.lexicon.RecommendationIn(mood.MoodLabel, profile.PreferredLanguage),
			Confidence: mood.Confidence,
			Reason:     "You recently seemed " + string(mood.MoodLabel),
		})
	}

	relevance := func(sg Suggestion) float64 {
		if sg.Type != SuggestionCommand || len(words) == 0 {
			return 0
		}
		return keywordOverlap(words, tokenize(sg.Text))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return relevance(out[i]) > relevance(out[j])
	})
	return out, nil
}

// morningRoutine proposes a routine built from active morning time_based
// habits, strongest first. Nil when there are none.
func (s *SuggestionEngine) morningRoutine(ctx context.Context, userID string, now time.Time) (*Suggestion, error) {
	habits, err := s.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	var morning []scoredHabit
	for _, h := range habits {
		if h.HabitType != models.HabitTimeBased || h.PatternData.TimeOfDay != BucketMorning || h.PatternData.Title == "" {
			continue
		}
		if conf, ok := s.predictor.active(h, now); ok {
			morning = append(morning, scoredHabit{habit: h, action: h.PatternData.Title, confidence: conf})
		}
	}
	if len(morning) == 0 {
		return nil, nil
	}
	sort.SliceStable(morning, func(i, j int) bool {
		return morning[i].confidence > morning[j].confidence
	})

	seen := map[string]bool{}
	var items []string
	earliest := -1
	for _, m := range morning {
		key := normalizeText(m.action)
		if seen[key] || len(items) == maxRoutineItems {
			continue
		}
		seen[key] = true
		items = append(items, m.action)
		at := m.habit.PatternData.Hour*60 + m.habit.PatternData.Minute
		if earliest < 0 || at < earliest {
			earliest = at
		}
	}
	return &Suggestion{
		Type:          SuggestionRoutine,
		Text:          "Create a morning routine",
		Confidence:    routineConfidence,
		Reason:        "Based on your morning habits",
		Items:         items,
		PreferredTime: fmt.Sprintf("%02d:%02d", earliest/60, earliest%60),
	}, nil
}
