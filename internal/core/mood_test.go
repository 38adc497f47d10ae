// ABOUTME: Tests for text, voice, and combined mood detection plus trend analysis
// ABOUTME: Expected scores are derived by hand from the embedded lexicon
package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/attune/internal/models"
)

func TestDetectTextExcited(t *testing.T) {
	e, _ := newTestEngine(t)
	registerUser(t, e, "alice")

	res, err := e.Mood.Detect(context.Background(), "alice", "I am feeling great today! Very excited about the new project.", nil)
	require.NoError(t, err)
	assert.Equal(t, models.MoodExcited, res.MoodLabel)
	assert.Equal(t, models.MoodSourceText, res.Source)
	// excited 1.5 * 1.25 against happy 1
	assert.InDelta(t, 1.875/2.875, res.Confidence, 1e-9)
	assert.InDelta(t, 1/2.875, res.MoodScores[models.MoodHappy], 1e-9)
	for _, v := range res.MoodScores {
		assert.LessOrEqual(t, v, res.Confidence)
	}
	assert.Equal(t, "That's wonderful energy! Let's channel that into getting things done.", res.Recommendation)
	assert.Nil(t, res.VoiceMood)
	require.NotNil(t, res.TextMood)
	assert.Equal(t, models.MoodExcited, res.TextMood.Label)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().MoodDetections.WithLabelValues("excited")))
}

func TestDetectNoHitsIsNeutral(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.Mood.Detect(context.Background(), "alice", "schedule the quarterly review", nil)
	require.NoError(t, err)
	assert.Equal(t, models.MoodNeutral, res.MoodLabel)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestDetectRomanUrdu(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.Mood.Detect(context.Background(), "alice", "aaj bohat pareshan hoon", nil)
	require.NoError(t, err)
	assert.Equal(t, models.MoodAnxious, res.MoodLabel)
}

func TestDetectRequiresSignal(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Mood.Detect(ctx, "alice", "   ", nil)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = e.Mood.Detect(ctx, "alice", "", &VoiceFeatures{})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = e.Mood.Detect(ctx, "", "happy", nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDetectVoice(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	high, err := e.Mood.Detect(ctx, "alice", "", &VoiceFeatures{Pitch: 250, Energy: 0.8, SpeakingRate: 170})
	require.NoError(t, err)
	assert.Equal(t, models.MoodSourceVoice, high.Source)
	assert.Equal(t, models.MoodExcited, high.MoodLabel)
	assert.InDelta(t, 1.0/2.2, high.Confidence, 1e-9)

	low, err := e.Mood.Detect(ctx, "alice", "", &VoiceFeatures{Pitch: 100, Energy: 0.2, SpeakingRate: 80})
	require.NoError(t, err)
	assert.Equal(t, models.MoodSad, low.MoodLabel)
	assert.InDelta(t, 0.5, low.Confidence, 1e-9)

	plain, err := e.Mood.Detect(ctx, "alice", "", &VoiceFeatures{Pitch: 150})
	require.NoError(t, err)
	assert.Equal(t, models.MoodNeutral, plain.MoodLabel)
}

func TestDetectCombined(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Mood.Detect(context.Background(), "alice", "I am so sad", &VoiceFeatures{Pitch: 100, Energy: 0.2, SpeakingRate: 80})
	require.NoError(t, err)
	assert.Equal(t, models.MoodSourceCombined, res.Source)
	assert.Equal(t, models.MoodSad, res.MoodLabel)
	assert.InDelta(t, 0.75, res.Confidence, 1e-9)
	require.NotNil(t, res.TextMood)
	require.NotNil(t, res.VoiceMood)
	assert.InDelta(t, 1.0, res.TextMood.Confidence, 1e-9)

	var total float64
	for _, v := range res.MoodScores {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestCombineScoresWeights(t *testing.T) {
	text := models.MoodScores{models.MoodHappy: 1}
	voice := models.MoodScores{models.MoodSad: 1}
	got := combineScores(text, voice, 3, 1)
	assert.InDelta(t, 0.75, got[models.MoodHappy], 1e-9)
	assert.InDelta(t, 0.25, got[models.MoodSad], 1e-9)
}

func detectAt(t *testing.T, e *Engine, clock *testClock, at time.Time, text string) {
	t.Helper()
	clock.Set(at)
	_, err := e.Mood.Detect(context.Background(), "alice", text, nil)
	require.NoError(t, err)
}

func TestAnalyzeTrend(t *testing.T) {
	cases := []struct {
		name  string
		texts []string
		trend string
	}{
		{"improving", []string{"I am so sad", "feeling low and lonely", "so happy now", "great and happy"}, TrendImproving},
		{"declining", []string{"so happy now", "great and happy", "I am so sad", "feeling low and lonely"}, TrendDeclining},
		{"stable", []string{"happy", "happy", "happy", "happy"}, TrendStable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, clock := newTestEngine(t)
			registerUser(t, e, "alice")
			for i, text := range tc.texts {
				detectAt(t, e, clock, monday.Add(time.Duration(i)*time.Hour), text)
			}
			clock.Set(monday.Add(24 * time.Hour))

			trend, err := e.Mood.AnalyzeTrend(context.Background(), "alice", 7)
			require.NoError(t, err)
			assert.Equal(t, tc.trend, trend.Trend)
			assert.Equal(t, 4, trend.TotalSamples)
		})
	}
}

func TestAnalyzeTrendStability(t *testing.T) {
	e, clock := newTestEngine(t)
	registerUser(t, e, "alice")
	for i, text := range []string{"I am so sad", "I am so sad", "so happy now", "so happy now"} {
		detectAt(t, e, clock, monday.Add(time.Duration(i)*time.Minute), text)
	}

	trend, err := e.Mood.AnalyzeTrend(context.Background(), "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, trend.Days)
	assert.InDelta(t, 1-1.0/3.0, trend.MoodStability, 1e-9)
	assert.Equal(t, map[models.MoodLabel]int{models.MoodSad: 2, models.MoodHappy: 2}, trend.MoodDistribution)
	// ties resolve by label order
	assert.Equal(t, models.MoodHappy, trend.DominantMood)
	assert.InDelta(t, 1.0, trend.AvgConfidence, 1e-9)
}

func TestAnalyzeTrendInsufficientData(t *testing.T) {
	e, clock := newTestEngine(t)
	registerUser(t, e, "alice")
	ctx := context.Background()

	trend, err := e.Mood.AnalyzeTrend(ctx, "alice", 7)
	require.NoError(t, err)
	assert.Equal(t, TrendInsufficientData, trend.Trend)
	assert.Equal(t, 0, trend.TotalSamples)

	detectAt(t, e, clock, monday, "happy")
	trend, err = e.Mood.AnalyzeTrend(ctx, "alice", 7)
	require.NoError(t, err)
	assert.Equal(t, TrendInsufficientData, trend.Trend)
	assert.Equal(t, 1.0, trend.MoodStability)

	// samples older than the window are ignored
	clock.Set(monday.AddDate(0, 0, 10))
	trend, err = e.Mood.AnalyzeTrend(ctx, "alice", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, trend.TotalSamples)

	_, err = e.Mood.AnalyzeTrend(ctx, "ghost", 7)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMoodHistoryOrder(t *testing.T) {
	e, clock := newTestEngine(t)
	registerUser(t, e, "alice")
	detectAt(t, e, clock, monday, "I am so sad")
	detectAt(t, e, clock, monday.Add(time.Hour), "so happy now")

	history, err := e.Mood.History(context.Background(), "alice", 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.MoodSad, history[0].MoodLabel)
	assert.Equal(t, models.MoodHappy, history[1].MoodLabel)
}

func TestRecommendationIn(t *testing.T) {
	lx, err := DefaultLexicon()
	require.NoError(t, err)

	assert.Equal(t, lx.Recommendation(models.MoodTired), lx.RecommendationIn(models.MoodTired, ""))
	assert.Equal(t, lx.Recommendation(models.MoodSad), lx.RecommendationIn(models.MoodSad, "fr"))
	for _, lang := range []string{"ur", "UR", "ur-PK", "urdu"} {
		assert.Equal(t, lx.Localized["ur"][models.MoodSad], lx.RecommendationIn(models.MoodSad, lang), lang)
	}
	for _, label := range models.MoodLabels {
		assert.NotEmpty(t, lx.Localized["ur"][label], label)
	}
}
