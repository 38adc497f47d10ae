// ABOUTME: HabitLearner mines a user's event log into scored, durable habits
// ABOUTME: Learning runs in checkpointed batches and is idempotent over unchanged history
package core

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/models"
)

// HabitLearner turns event groups into habits
type HabitLearner struct {
	*deps
	events *EventLog
	log    zerolog.Logger
}

// LearnResult summarizes one learn pass
type LearnResult struct {
	UserID        string          `json:"user_id"`
	EventsScanned int             `json:"events_scanned"`
	Created       int             `json:"habits_created"`
	Updated       int             `json:"habits_updated"`
	Habits        []*models.Habit `json:"habits"`
	Complete      bool            `json:"complete"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// candidate accumulates the occurrences of one pattern key
type candidate struct {
	key    models.PatternKey
	times  []time.Time
	labels []string
}

// learnPass holds the working state of a single pass
type learnPass struct {
	userID string
	loc    *time.Location
	ref    time.Time
	groups map[models.PatternKey]*candidate

	// comparable event counts for preference shares
	langTotal int
	chanTotal int

	touched map[models.PatternKey]*models.Habit
	created int
}

// Learn scans the user's full history and creates or refreshes habits. It
// holds the per-user lock for the duration of the pass. A cancelled context
// stops between batches; habits committed by earlier batches are kept.
func (h *HabitLearner) Learn(ctx context.Context, userID string) (*LearnResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	profile, err := h.events.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var result *LearnResult
	err = h.withUser(ctx, userID, func() error {
		var lerr error
		result, lerr = h.learn(ctx, profile)
		return lerr
	})

	switch {
	case err == nil:
		h.metrics.LearnRuns.WithLabelValues("ok").Inc()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		h.metrics.LearnRuns.WithLabelValues("cancelled").Inc()
	default:
		h.metrics.LearnRuns.WithLabelValues("error").Inc()
	}
	return result, err
}

func (h *HabitLearner) learn(ctx context.Context, profile *models.Profile) (*LearnResult, error) {
	started := h.now().UTC()
	timer := time.Now()
	defer func() { h.metrics.LearnDuration.Observe(time.Since(timer).Seconds()) }()

	log := h.log.With().Str("user_id", profile.UserID).Logger()
	result := &LearnResult{UserID: profile.UserID, StartedAt: started}
	state := &models.LearnState{UserID: profile.UserID, StartedAt: started}

	latest, err := h.store.LatestEvent(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	pass := &learnPass{
		userID:  profile.UserID,
		loc:     profile.Location(),
		groups:  map[models.PatternKey]*candidate{},
		touched: map[models.PatternKey]*models.Habit{},
	}
	if latest != nil {
		pass.ref = latest.Timestamp
	}

	var cursor models.EventCursor
	for latest != nil {
		if err := ctx.Err(); err != nil {
			log.Warn().Int("events_scanned", state.EventsScanned).Msg("learn cancelled")
			return h.finish(result, pass, state, false), err
		}

		batch, err := h.store.ListEvents(ctx, profile.UserID, cursor, h.cfg.LearnBatchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		dirty := map[models.PatternKey]bool{}
		for _, e := range batch {
			for _, key := range pass.observe(e) {
				dirty[key] = true
			}
		}
		for key := range dirty {
			if err := h.commit(ctx, pass, pass.groups[key]); err != nil {
				return nil, err
			}
		}

		cursor = batch[len(batch)-1].Cursor()
		state.Cursor = cursor
		state.EventsScanned += len(batch)
		state.HabitsUpdated = len(pass.touched)
		if err := h.store.SaveLearnState(ctx, state); err != nil {
			return nil, err
		}
		h.metrics.EventsScanned.Add(float64(len(batch)))
		log.Debug().Int("batch", len(batch)).Int("events_scanned", state.EventsScanned).Msg("learn batch committed")

		if len(batch) < h.cfg.LearnBatchSize {
			break
		}
	}

	// Preference shares depend on totals that grow across batches
	for key, c := range pass.groups {
		if key.Type == models.HabitLanguagePreference || key.Type == models.HabitChannelPreference {
			if err := h.commit(ctx, pass, c); err != nil {
				return nil, err
			}
		}
	}

	state.Complete = true
	state.LastLearnRun = h.now().UTC()
	state.HabitsUpdated = len(pass.touched)
	if err := h.store.SaveLearnState(ctx, state); err != nil {
		return nil, err
	}

	h.finish(result, pass, state, true)
	log.Info().
		Int("events_scanned", result.EventsScanned).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Msg("learn complete")
	return result, nil
}

func (h *HabitLearner) finish(result *LearnResult, pass *learnPass, state *models.LearnState, complete bool) *LearnResult {
	result.EventsScanned = state.EventsScanned
	result.Complete = complete
	result.FinishedAt = h.now().UTC()
	result.Created = pass.created
	result.Updated = len(pass.touched) - pass.created
	result.Habits = make([]*models.Habit, 0, len(pass.touched))
	for _, hb := range pass.touched {
		result.Habits = append(result.Habits, hb)
	}
	sortHabits(result.Habits)
	h.metrics.HabitsCreated.Add(float64(result.Created))
	h.metrics.HabitsUpdated.Add(float64(result.Updated))
	return result
}

// observe files an event under every pattern key it supports
func (p *learnPass) observe(e *models.Event) []models.PatternKey {
	local := e.Timestamp.In(p.loc)
	bucket := timeOfDay(local.Hour())
	var keys []models.PatternKey

	add := func(t models.HabitType, key, label string) {
		if key == "" {
			return
		}
		pk := models.PatternKey{Type: t, Key: key}
		c, ok := p.groups[pk]
		if !ok {
			c = &candidate{key: pk}
			p.groups[pk] = c
		}
		c.times = append(c.times, e.Timestamp)
		c.labels = append(c.labels, label)
		keys = append(keys, pk)
	}

	switch e.Kind {
	case models.EventTaskCreated:
		title := strings.TrimSpace(e.Title())
		add(models.HabitRecurringTask, normalizeText(title), title)
		if title != "" {
			add(models.HabitTimeBased, weekdayKey(local.Weekday())+":"+bucket, title)
		}
	case models.EventCommandRun:
		cmd := strings.TrimSpace(e.Command())
		if norm := normalizeText(cmd); norm != "" {
			add(models.HabitCommandUsage, norm+"@"+bucket, cmd)
		}
	}
	if lang := strings.ToLower(strings.TrimSpace(e.Language)); lang != "" {
		p.langTotal++
		add(models.HabitLanguagePreference, lang, e.Language)
	}
	if ch := strings.ToLower(strings.TrimSpace(e.Channel)); ch != "" {
		p.chanTotal++
		add(models.HabitChannelPreference, ch, e.Channel)
	}
	return keys
}

// commit scores a candidate and creates or refreshes its habit
func (h *HabitLearner) commit(ctx context.Context, pass *learnPass, c *candidate) error {
	n := len(c.times)
	data := pass.patternData(c, h)
	base := h.baseConfidence(data)

	existing, err := h.store.FindHabit(ctx, pass.userID, c.key)
	if err != nil {
		return err
	}
	now := h.now().UTC()
	hb := existing
	if hb == nil {
		if n < h.cfg.MinPatternOccurrences || models.Clamp01(base) < h.cfg.ConfidenceThreshold {
			return nil
		}
		hb = &models.Habit{
			HabitID:    models.NewHabitID(),
			UserID:     pass.userID,
			HabitType:  c.key.Type,
			PatternKey: c.key.Key,
			CreatedAt:  now,
		}
		if _, seen := pass.touched[c.key]; !seen {
			pass.created++
		}
	}

	hb.PatternData = data
	hb.BaseConfidence = base
	hb.OccurrenceCount = n
	hb.FirstSeen = c.times[0]
	hb.LastSeen = c.times[n-1]
	hb.UpdatedAt = now
	hb.Recompute(h.cfg.ConfidenceThreshold)

	if err := h.store.SaveHabit(ctx, hb); err != nil {
		return err
	}
	pass.touched[c.key] = hb
	return nil
}

// baseConfidence blends the evidence scores by the configured weights
func (h *HabitLearner) baseConfidence(d models.PatternData) float64 {
	wF, wR, wG := h.cfg.FrequencyWeight, h.cfg.RecencyWeight, h.cfg.RegularityWeight
	sum := wF + wR + wG
	if sum == 0 {
		return 0
	}
	return models.Clamp01((wF*d.Frequency + wR*d.Recency + wG*d.Regularity) / sum)
}

// patternData describes the candidate's shape and fills in its evidence scores
func (p *learnPass) patternData(c *candidate, h *HabitLearner) models.PatternData {
	n := len(c.times)
	d := models.PatternData{
		Frequency: math.Min(1, float64(n)/float64(h.cfg.FrequencySaturation)),
		Recency:   recencyScore(c.times, p.ref, h.cfg.RecencyHalfLife),
	}

	var weekdayCounts [7]int
	minutes := make([]int, 0, n)
	for _, t := range c.times {
		local := t.In(p.loc)
		weekdayCounts[local.Weekday()]++
		minutes = append(minutes, minuteOfDay(local))
	}
	floor := int(math.Max(1, math.Round(0.2*float64(n))))
	for wd, count := range weekdayCounts {
		if count >= floor {
			d.Weekdays = append(d.Weekdays, wd)
		}
	}
	sort.Ints(minutes)
	median := minutes[len(minutes)/2]
	d.Hour, d.Minute = median/60, median%60
	d.TimeOfDay = timeOfDay(d.Hour)

	latest := c.labels[n-1]
	d.Samples = recentDistinct(c.labels, 5)
	d.Keywords = extractKeywords(c.labels, 5)

	switch c.key.Type {
	case models.HabitRecurringTask:
		d.Title = latest
		d.Regularity = regularityScore(c.times)
	case models.HabitTimeBased:
		d.Title = mostCommon(c.labels)
		d.Regularity = regularityScore(c.times)
	case models.HabitCommandUsage:
		d.Command = latest
		d.Regularity = regularityScore(c.times)
	case models.HabitLanguagePreference:
		d.Value = c.key.Key
		d.Share = share(n, p.langTotal)
		d.Regularity = d.Share
	case models.HabitChannelPreference:
		d.Value = c.key.Key
		d.Share = share(n, p.chanTotal)
		d.Regularity = d.Share
	}
	return d
}

// recencyScore averages exponential recency weights relative to ref
func recencyScore(times []time.Time, ref time.Time, halfLife time.Duration) float64 {
	if len(times) == 0 || halfLife <= 0 {
		return 0
	}
	var sum float64
	for _, t := range times {
		age := ref.Sub(t)
		if age < 0 {
			age = 0
		}
		sum += math.Exp2(-float64(age) / float64(halfLife))
	}
	return sum / float64(len(times))
}

// regularityScore is 1/(1+cv) of the inter-occurrence gaps
func regularityScore(times []time.Time) float64 {
	if len(times) < 3 {
		return 0.5
	}
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, 0, len(sorted)-1)
	var mean float64
	for i := 1; i < len(sorted); i++ {
		g := sorted[i].Sub(sorted[i-1]).Seconds()
		gaps = append(gaps, g)
		mean += g
	}
	mean /= float64(len(gaps))
	if mean == 0 {
		return 0.5
	}
	var variance float64
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))
	cv := math.Sqrt(variance) / mean
	return 1 / (1 + cv)
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// mostCommon returns the most frequent label, preferring the latest on ties
func mostCommon(labels []string) string {
	counts := map[string]int{}
	best, bestCount := "", 0
	for _, l := range labels {
		counts[l]++
		if counts[l] >= bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best
}

// recentDistinct returns up to max distinct labels, newest first
func recentDistinct(labels []string, max int) []string {
	seen := map[string]bool{}
	var out []string
	for i := len(labels) - 1; i >= 0 && len(out) < max; i-- {
		if labels[i] == "" || seen[labels[i]] {
			continue
		}
		seen[labels[i]] = true
		out = append(out, labels[i])
	}
	return out
}

func sortHabits(habits []*models.Habit) {
	sort.Slice(habits, func(i, j int) bool {
		if habits[i].Confidence != habits[j].Confidence {
			return habits[i].Confidence > habits[j].Confidence
		}
		return habits[i].HabitID < habits[j].HabitID
	})
}

// Insights aggregates a user's habits without side effects
type Insights struct {
	UserID         string                   `json:"user_id"`
	TotalHabits    int                      `json:"total_habits"`
	ByType         map[models.HabitType]int `json:"habits_by_type"`
	TopHabits      []*models.Habit          `json:"top_habits"`
	LowConfidence  int                      `json:"low_confidence_count"`
	TimeOfDay      map[string]int           `json:"time_of_day_preferences"`
	Weekdays       map[string]int           `json:"weekday_preferences"`
	RecentlySeen   []*models.Habit          `json:"recent_habits"`
	LastLearnRun   *time.Time               `json:"last_learn_run,omitempty"`
	EventsScanned  int                      `json:"events_scanned"`
	LearnCompleted bool                     `json:"learn_completed"`
}

// Insights reports habit counts per type and the top-K habits by confidence.
// A non-positive topK defaults to 5.
func (h *HabitLearner) Insights(ctx context.Context, userID string, topK int) (*Insights, error) {
	if _, err := h.events.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	habits, err := h.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortHabits(habits)

	ins := &Insights{
		UserID:       userID,
		TotalHabits:  len(habits),
		ByType:       map[models.HabitType]int{},
		TimeOfDay:    map[string]int{},
		Weekdays:     map[string]int{},
		TopHabits:    []*models.Habit{},
		RecentlySeen: []*models.Habit{},
	}
	recentCutoff := h.now().Add(-7 * 24 * time.Hour)
	for _, hb := range habits {
		ins.ByType[hb.HabitType]++
		if hb.LowConfidence {
			ins.LowConfidence++
		}
		if hb.HabitType.Predictive() || hb.HabitType == models.HabitCommandUsage {
			if hb.PatternData.TimeOfDay != "" {
				ins.TimeOfDay[hb.PatternData.TimeOfDay]++
			}
			for _, wd := range hb.PatternData.Weekdays {
				ins.Weekdays[weekdayKey(time.Weekday(wd))]++
			}
		}
		if len(ins.TopHabits) < topK {
			ins.TopHabits = append(ins.TopHabits, hb)
		}
		if hb.LastSeen.After(recentCutoff) {
			ins.RecentlySeen = append(ins.RecentlySeen, hb)
		}
	}

	state, err := h.store.GetLearnState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		if !state.LastLearnRun.IsZero() {
			last := state.LastLearnRun
			ins.LastLearnRun = &last
		}
		ins.EventsScanned = state.EventsScanned
		ins.LearnCompleted = state.Complete
	}
	return ins, nil
}

// Habits lists a user's habits, optionally filtered by type
func (h *HabitLearner) Habits(ctx context.Context, userID string, habitType models.HabitType) ([]*models.Habit, error) {
	if _, err := h.events.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	if habitType != "" && !habitType.Valid() {
		return nil, models.Invalid("habit_type", "is not a known habit type")
	}
	habits, err := h.store.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	if habitType == "" {
		return habits, nil
	}
	out := make([]*models.Habit, 0, len(habits))
	for _, hb := range habits {
		if hb.HabitType == habitType {
			out = append(out, hb)
		}
	}
	return out, nil
}
