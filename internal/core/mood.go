// ABOUTME: MoodDetector scores text and voice signals into a mood distribution
// ABOUTME: Every detection appends a sample that feeds trend analysis
package core

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/models"
)

// Trend classifications
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// MoodDetector classifies utterances and keeps mood history
type MoodDetector struct {
	*deps
	events *EventLog
	log    zerolog.Logger
}

// VoiceFeatures are prosodic measurements of one utterance. Non-positive
// values are treated as not measured.
type VoiceFeatures struct {
	Pitch        float64 `json:"pitch"`
	Energy       float64 `json:"energy"`
	SpeakingRate float64 `json:"speaking_rate"`
}

func (v *VoiceFeatures) empty() bool {
	return v == nil || (v.Pitch <= 0 && v.Energy <= 0 && v.SpeakingRate <= 0)
}

// LabelScore is a single-source estimate
type LabelScore struct {
	Label      models.MoodLabel  `json:"label"`
	Confidence float64           `json:"confidence"`
	Scores     models.MoodScores `json:"scores"`
}

// MoodResult is what Detect returns to callers
type MoodResult struct {
	*models.MoodSample
	Recommendation string      `json:"recommendation"`
	TextMood       *LabelScore `json:"text_mood,omitempty"`
	VoiceMood      *LabelScore `json:"voice_mood,omitempty"`
}

// MoodTrend summarizes mood samples over a window of days
type MoodTrend struct {
	UserID           string                   `json:"user_id"`
	Days             int                      `json:"days"`
	Trend            string                   `json:"trend"`
	AvgConfidence    float64                  `json:"avg_confidence"`
	DominantMood     models.MoodLabel         `json:"dominant_mood"`
	MoodStability    float64                  `json:"mood_stability"`
	MoodDistribution map[models.MoodLabel]int `json:"mood_distribution"`
	TotalSamples     int                      `json:"total_samples"`
}

// Detect classifies text and/or voice features and records the sample. At
// least one signal is required.
func (m *MoodDetector) Detect(ctx context.Context, userID, text string, voice *VoiceFeatures) (*MoodResult, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" && voice.empty() {
		return nil, models.Invalid("input", "text or voice features required")
	}
	profile, err := m.events.ensureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &MoodResult{}
	var scores models.MoodScores
	var source models.MoodSource

	if text != "" {
		ts := m.scoreText(text)
		res.TextMood = labelScore(ts)
		scores, source = ts, models.MoodSourceText
	}
	if !voice.empty() {
		vs := scoreVoice(voice)
		res.VoiceMood = labelScore(vs)
		scores, source = vs, models.MoodSourceVoice
	}
	if res.TextMood != nil && res.VoiceMood != nil {
		scores = combineScores(res.TextMood.Scores, res.VoiceMood.Scores, m.cfg.TextMoodWeight, m.cfg.VoiceMoodWeight)
		source = models.MoodSourceCombined
	}

	label, conf := scores.Top()
	sample := &models.MoodSample{
		SampleID:   models.NewMoodSampleID(),
		UserID:     userID,
		Timestamp:  m.now().UTC(),
		Source:     source,
		MoodLabel:  label,
		MoodScores: scores,
		Confidence: conf,
		Text:       text,
	}
	err = m.withUser(ctx, userID, func() error {
		return m.store.AppendMoodSample(ctx, sample)
	})
	if err != nil {
		return nil, err
	}

	m.metrics.MoodDetections.WithLabelValues(string(label)).Inc()
	res.MoodSample = sample
	res.Recommendation = m.lexicon.RecommendationIn(label, profile.PreferredLanguage)
	return res, nil
}

func labelScore(s models.MoodScores) *LabelScore {
	label, conf := s.Top()
	return &LabelScore{Label: label, Confidence: conf, Scores: s}
}

// scoreText counts lexicon hits with intensifier, exclamation, and shouting boosts
func (m *MoodDetector) scoreText(text string) models.MoodScores {
	lx := m.lexicon
	tokens := tokenize(text)
	raw := models.MoodScores{}

	for i, tok := range tokens {
		labels, ok := lx.words[tok]
		if !ok {
			continue
		}
		weight := 1.0
		if i > 0 && lx.intensifiers[tokens[i-1]] {
			weight = 1.5
		}
		for _, l := range labels {
			raw[l] += weight
		}
	}

	padded := " " + strings.Join(tokens, " ") + " "
	for _, label := range models.MoodLabels {
		for _, phrase := range lx.Labels[label].Phrases {
			norm := normalizeText(phrase)
			if norm == "" {
				continue
			}
			if n := strings.Count(padded, " "+norm+" "); n > 0 {
				raw[label] += float64(n)
			}
		}
	}

	if strings.Contains(text, "!") {
		boost(raw, 1.25, models.MoodExcited, models.MoodAngry)
	}
	if capsRatio(text) > 0.3 {
		boost(raw, 1.5, models.MoodExcited, models.MoodAngry)
	}
	return raw.Normalize()
}

func boost(s models.MoodScores, factor float64, labels ...models.MoodLabel) {
	for _, l := range labels {
		if v, ok := s[l]; ok {
			s[l] = v * factor
		}
	}
}

// capsRatio is the share of upper-case letters, ignoring very short input
func capsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < 4 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// scoreVoice maps prosody bands into the label space
func scoreVoice(v *VoiceFeatures) models.MoodScores {
	s := models.MoodScores{models.MoodNeutral: 0.5}
	if v.Pitch > 200 {
		s[models.MoodHappy] += 0.3
		s[models.MoodExcited] += 0.4
	} else if v.Pitch > 0 && v.Pitch < 120 {
		s[models.MoodSad] += 0.4
	}
	if v.Energy > 0.7 {
		s[models.MoodExcited] += 0.3
		s[models.MoodAngry] += 0.2
	} else if v.Energy > 0 && v.Energy < 0.3 {
		s[models.MoodSad] += 0.3
		s[models.MoodTired] += 0.3
	}
	if v.SpeakingRate > 150 {
		s[models.MoodExcited] += 0.3
		s[models.MoodAnxious] += 0.2
	} else if v.SpeakingRate > 0 && v.SpeakingRate < 100 {
		s[models.MoodSad] += 0.3
		s[models.MoodTired] += 0.2
	}
	return s.Normalize()
}

// combineScores takes the weighted average of two distributions
func combineScores(text, voice models.MoodScores, wText, wVoice float64) models.MoodScores {
	out := models.MoodScores{}
	for l, v := range text {
		out[l] += wText * v
	}
	for l, v := range voice {
		out[l] += wVoice * v
	}
	return out.Normalize()
}

// AnalyzeTrend compares the dominant mood of the first and second half of the
// last days (default 7) on a fixed valence scale.
func (m *MoodDetector) AnalyzeTrend(ctx context.Context, userID string, days int) (*MoodTrend, error) {
	samples, days, err := m.history(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	t := &MoodTrend{
		UserID:           userID,
		Days:             days,
		Trend:            TrendInsufficientData,
		DominantMood:     models.MoodNeutral,
		MoodStability:    1.0,
		MoodDistribution: map[models.MoodLabel]int{},
		TotalSamples:     len(samples),
	}
	if len(samples) == 0 {
		return t, nil
	}

	var confSum float64
	switches := 0
	for i, s := range samples {
		t.MoodDistribution[s.MoodLabel]++
		confSum += s.Confidence
		if i > 0 && s.MoodLabel != samples[i-1].MoodLabel {
			switches++
		}
	}
	t.AvgConfidence = confSum / float64(len(samples))
	t.DominantMood = dominant(samples)
	if len(samples) < 2 {
		return t, nil
	}
	t.MoodStability = 1 - float64(switches)/float64(len(samples)-1)

	half := len(samples) / 2
	first := m.lexicon.Valence[dominant(samples[:half])]
	second := m.lexicon.Valence[dominant(samples[half:])]
	switch {
	case second > first:
		t.Trend = TrendImproving
	case second < first:
		t.Trend = TrendDeclining
	default:
		t.Trend = TrendStable
	}
	return t, nil
}

// History returns mood samples from the last days (default 7), oldest first
func (m *MoodDetector) History(ctx context.Context, userID string, days int) ([]*models.MoodSample, error) {
	samples, _, err := m.history(ctx, userID, days)
	return samples, err
}

func (m *MoodDetector) history(ctx context.Context, userID string, days int) ([]*models.MoodSample, int, error) {
	if _, err := m.events.GetProfile(ctx, userID); err != nil {
		return nil, 0, err
	}
	if days <= 0 {
		days = 7
	}
	since := m.now().Add(-time.Duration(days) * 24 * time.Hour)
	samples, err := m.store.ListMoodSamples(ctx, userID, since)
	if err != nil {
		return nil, 0, err
	}
	return samples, days, nil
}

// latest returns the most recent sample newer than since, if any
func (m *MoodDetector) latest(ctx context.Context, userID string, since time.Time) (*models.MoodSample, error) {
	samples, err := m.store.ListMoodSamples(ctx, userID, since)
	if err != nil || len(samples) == 0 {
		return nil, err
	}
	return samples[len(samples)-1], nil
}

// dominant returns the most frequent label; ties follow label order
func dominant(samples []*models.MoodSample) models.MoodLabel {
	counts := map[models.MoodLabel]int{}
	for _, s := range samples {
		counts[s.MoodLabel]++
	}
	best, bestN := models.MoodNeutral, 0
	for _, l := range models.MoodLabels {
		if counts[l] > bestN {
			best, bestN = l, counts[l]
		}
	}
	return best
}
