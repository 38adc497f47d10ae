// ABOUTME: TaskPredictor ranks likely next tasks from active habits and tracks feedback
// ABOUTME: Pending predictions expire lazily on read after the configured window
package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/models"
)

// TaskPredictor emits predictions and folds feedback back into habits
type TaskPredictor struct {
	*deps
	events *EventLog
	log    zerolog.Logger
}

type scoredHabit struct {
	habit      *models.Habit
	action     string
	confidence float64
}

// decay returns the inactivity factor for a habit at now
func (p *TaskPredictor) decay(h *models.Habit, now time.Time) float64 {
	age := now.Sub(h.Anchor())
	if age < 0 {
		age = 0
	}
	return math.Exp2(-float64(age) / float64(p.cfg.DecayHalfLife))
}

// active reports whether a habit still drives predictions, and its decayed confidence
func (p *TaskPredictor) active(h *models.Habit, now time.Time) (float64, bool) {
	if h.LowConfidence {
		return 0, false
	}
	conf := models.Clamp01(h.Confidence * p.decay(h, now))
	return conf, conf >= p.cfg.ActiveFloor
}

// matches reports whether local time falls in the habit's usual window
func (p *TaskPredictor) matches(h *models.Habit, local time.Time) bool {
	d := h.PatternData
	if !d.Daily() && !d.OnWeekday(local.Weekday()) {
		return false
	}
	if h.HabitType == models.HabitTimeBased {
		return d.TimeOfDay == timeOfDay(local.Hour())
	}
	usual := d.Hour*60 + d.Minute
	return circularMinutes(minuteOfDay(local), usual) <= p.cfg.MatchWindowHours*60
}

// Predict returns up to limit pending predictions for the current time,
// highest confidence first. A non-positive limit, or one above the configured
// cap, uses the configured limit.
func (p *TaskPredictor) Predict(ctx context.Context, userID string, limit int) ([]*models.Prediction, error) {
	profile, err := p.events.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > p.cfg.PredictionLimit {
		limit = p.cfg.PredictionLimit
	}

	var out []*models.Prediction
	err = p.withUser(ctx, userID, func() error {
		var perr error
		out, perr = p.predict(ctx, profile, limit)
		return perr
	})
	if err != nil {
		return nil, err
	}
	p.metrics.PredictionsEmitted.Add(float64(len(out)))
	return out, nil
}

func (p *TaskPredictor) predict(ctx context.Context, profile *models.Profile, limit int) ([]*models.Prediction, error) {
	now := p.now()
	local := now.In(profile.Location())

	habits, err := p.store.ListHabits(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}

	best := map[string]*scoredHabit{}
	for _, h := range habits {
		if !h.HabitType.Predictive() {
			continue
		}
		conf, ok := p.active(h, now)
		if !ok || !p.matches(h, local) {
			continue
		}
		action := h.PatternData.Title
		if action == "" {
			action = h.PatternKey
		}
		key := normalizeText(action)
		if cur, seen := best[key]; seen && !better(conf, h, cur) {
			continue
		}
		best[key] = &scoredHabit{habit: h, action: action, confidence: conf}
	}

	ranked := make([]*scoredHabit, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].confidence != ranked[j].confidence {
			return ranked[i].confidence > ranked[j].confidence
		}
		ci, cj := confirmedAt(ranked[i].habit), confirmedAt(ranked[j].habit)
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return ranked[i].action < ranked[j].action
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	pending, err := p.pendingByAction(ctx, profile.UserID, now)
	if err != nil {
		return nil, err
	}

	bucket := timeOfDay(local.Hour())
	out := make([]*models.Prediction, 0, len(ranked))
	for _, s := range ranked {
		pred, ok := pending[normalizeText(s.action)]
		if !ok {
			pred = &models.Prediction{
				PredictionID: models.NewPredictionID(),
				UserID:       profile.UserID,
				Status:       models.PredictionPending,
				CreatedAt:    now.UTC(),
			}
		}
		pred.HabitID = s.habit.HabitID
		pred.PredictedAction = s.action
		pred.Confidence = s.confidence
		pred.TimeOfDayBucket = bucket
		pred.Reason = reasonFor(s.habit, s.action)
		if err := p.store.SavePrediction(ctx, pred); err != nil {
			return nil, err
		}
		out = append(out, pred)
	}
	return out, nil
}

// better reports whether a candidate at conf from h beats cur
func better(conf float64, h *models.Habit, cur *scoredHabit) bool {
	if conf != cur.confidence {
		return conf > cur.confidence
	}
	return confirmedAt(h).After(confirmedAt(cur.habit))
}

func confirmedAt(h *models.Habit) time.Time {
	if h.LastConfirmed == nil {
		return time.Time{}
	}
	return *h.LastConfirmed
}

// pendingByAction expires stale predictions and indexes the live ones by action
func (p *TaskPredictor) pendingByAction(ctx context.Context, userID string, now time.Time) (map[string]*models.Prediction, error) {
	preds, err := p.expireStale(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	out := map[string]*models.Prediction{}
	for _, pred := range preds {
		if pred.Status != models.PredictionPending {
			continue
		}
		key := normalizeText(pred.PredictedAction)
		if _, seen := out[key]; !seen {
			out[key] = pred
		}
	}
	return out, nil
}

// expireStale loads a user's predictions, persisting any that have expired
func (p *TaskPredictor) expireStale(ctx context.Context, userID string, now time.Time) ([]*models.Prediction, error) {
	preds, err := p.store.ListPredictions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, pred := range preds {
		if pred.ExpireIfStale(now, p.cfg.PredictionExpiry) {
			if err := p.store.SavePrediction(ctx, pred); err != nil {
				return nil, err
			}
		}
	}
	return preds, nil
}

// reasonFor explains which pattern produced a prediction
func reasonFor(h *models.Habit, action string) string {
	d := h.PatternData
	days := make([]string, 0, len(d.Weekdays))
	for _, wd := range d.Weekdays {
		days = append(days, time.Weekday(wd).String())
	}

	if h.HabitType == models.HabitTimeBased {
		return fmt.Sprintf("You often create %q on %s %ss", action, joinWords(days), d.TimeOfDay)
	}
	if d.Daily() {
		return fmt.Sprintf("You usually create %q every %s around %02d:%02d", action, d.TimeOfDay, d.Hour, d.Minute)
	}
	return fmt.Sprintf("You usually create %q on %s %ss around %02d:%02d", action, joinWords(days), d.TimeOfDay, d.Hour, d.Minute)
}

// Feedback records whether the user accepted a pending prediction and
// reinforces or weakens the habit behind it.
func (p *TaskPredictor) Feedback(ctx context.Context, userID, predictionID string, accepted bool) (*models.Prediction, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if predictionID == "" {
		return nil, models.Invalid("prediction_id", "is required")
	}

	var out *models.Prediction
	err := p.withUser(ctx, userID, func() error {
		pred, err := p.store.GetPrediction(ctx, predictionID)
		if err != nil {
			return err
		}
		if pred == nil || pred.UserID != userID {
			return models.NotFound("prediction", predictionID)
		}

		now := p.now().UTC()
		if pred.ExpireIfStale(now, p.cfg.PredictionExpiry) {
			if err := p.store.SavePrediction(ctx, pred); err != nil {
				return err
			}
		}
		if pred.Status != models.PredictionPending {
			return models.NotFound("pending prediction", predictionID)
		}

		pred.Status = models.PredictionDismissed
		delta := -p.cfg.FeedbackStep
		if accepted {
			pred.Status = models.PredictionAccepted
			delta = p.cfg.FeedbackStep
		}
		pred.ResolvedAt = &now
		if err := p.store.SavePrediction(ctx, pred); err != nil {
			return err
		}
		out = pred

		if pred.HabitID == "" {
			return nil
		}
		habit, err := p.store.GetHabit(ctx, pred.HabitID)
		if err != nil {
			return err
		}
		if habit == nil || habit.UserID != userID {
			p.log.Warn().Str("user_id", userID).Str("habit_id", pred.HabitID).Msg("prediction source habit missing")
			return nil
		}
		habit.Reinforce(delta, p.cfg.ConfidenceThreshold)
		if accepted {
			habit.LastConfirmed = &now
		}
		habit.UpdatedAt = now
		return p.store.SaveHabit(ctx, habit)
	})
	if err != nil {
		return nil, err
	}

	p.metrics.Feedback.WithLabelValues(string(out.Status)).Inc()
	p.log.Debug().
		Str("user_id", userID).
		Str("prediction_id", predictionID).
		Str("status", string(out.Status)).
		Msg("prediction feedback")
	return out, nil
}

// Accuracy aggregates terminal predictions, expiring stale ones first
func (p *TaskPredictor) Accuracy(ctx context.Context, userID string) (*models.Accuracy, error) {
	if _, err := p.events.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	var acc models.Accuracy
	err := p.withUser(ctx, userID, func() error {
		preds, err := p.expireStale(ctx, userID, p.now())
		if err != nil {
			return err
		}
		acc = models.ComputeAccuracy(preds)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Predictions lists a user's predictions newest first. Terminal ones are
// skipped unless includeTerminal is set.
func (p *TaskPredictor) Predictions(ctx context.Context, userID string, includeTerminal bool) ([]*models.Prediction, error) {
	if _, err := p.events.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	var out []*models.Prediction
	err := p.withUser(ctx, userID, func() error {
		preds, err := p.expireStale(ctx, userID, p.now())
		if err != nil {
			return err
		}
		for _, pred := range preds {
			if includeTerminal || pred.Status == models.PredictionPending {
				out = append(out, pred)
			}
		}
		return nil
	})
	return out, err
}

// activeCommandHabits returns command habits usable in the given bucket
func (p *TaskPredictor) activeCommandHabits(ctx context.Context, userID string, bucket string, now time.Time) ([]scoredHabit, error) {
	habits, err := p.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []scoredHabit
	for _, h := range habits {
		if h.HabitType != models.HabitCommandUsage || !strings.HasSuffix(h.PatternKey, "@"+bucket) {
			continue
		}
		conf, ok := p.active(h, now)
		if !ok {
			continue
		}
		out = append(out, scoredHabit{habit: h, action: h.PatternData.Command, confidence: conf})
	}
	return out, nil
}
