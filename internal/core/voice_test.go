// ABOUTME: Tests for voiceprint enrollment, training, recognition, and deletion
// ABOUTME: Uses precomputed feature vectors so similarities are exact
package core

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/attune/internal/config"
	"github.com/harper/attune/internal/models"
)

func features(v ...float64) AudioSample {
	return AudioSample{Features: v}
}

// trainedVoice enrolls and fully trains a voiceprint around vec
func trainedVoice(t *testing.T, e *Engine, userID, name string, vec ...float64) *models.Voiceprint {
	t.Helper()
	ctx := context.Background()
	vp, err := e.Voice.Enroll(ctx, userID, name, "")
	require.NoError(t, err)
	samples := []AudioSample{features(vec...), features(vec...), features(vec...)}
	vp, err = e.Voice.Train(ctx, vp.ProfileID, samples)
	require.NoError(t, err)
	require.True(t, vp.Trained())
	return vp
}

func TestEnrollFirstIsPrimary(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Voice.Enroll(ctx, "alice", "home", "kitchen mic")
	require.NoError(t, err)
	assert.True(t, first.IsPrimary)
	assert.Regexp(t, `^vp_[0-9a-f]{12}$`, first.ProfileID)
	assert.False(t, first.Trained())

	second, err := e.Voice.Enroll(ctx, "alice", "car", "")
	require.NoError(t, err)
	assert.False(t, second.IsPrimary)

	_, err = e.Voice.Enroll(ctx, "alice", " ", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestTrainBelowMinimum(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	vp, err := e.Voice.Enroll(ctx, "alice", "home", "")
	require.NoError(t, err)

	got, err := e.Voice.Train(ctx, vp.ProfileID, []AudioSample{features(1, 0, 0), features(0, 1, 0)})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.SampleCount)
	assert.False(t, got.Trained())
	assert.Equal(t, []float64{0.5, 0.5, 0}, got.Centroid)

	got, err = e.Voice.Train(ctx, vp.ProfileID, []AudioSample{features(0, 0, 3)})
	require.NoError(t, err)
	assert.Equal(t, 3, got.SampleCount)
	assert.True(t, got.Trained())
	assert.InDeltaSlice(t, []float64{1.0 / 3, 1.0 / 3, 1}, got.Centroid, 1e-9)
}

func TestTrainValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	vp, err := e.Voice.Enroll(ctx, "alice", "home", "")
	require.NoError(t, err)

	_, err = e.Voice.Train(ctx, vp.ProfileID, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = e.Voice.Train(ctx, vp.ProfileID, []AudioSample{features(1, 2), features(1, 2, 3)})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = e.Voice.Train(ctx, "vp_000000000000", []AudioSample{features(1, 2)})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = e.Voice.Train(ctx, vp.ProfileID, []AudioSample{features(1, 2)})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	_, err = e.Voice.Train(ctx, vp.ProfileID, []AudioSample{features(1, 2, 3)})
	assert.ErrorIs(t, err, models.ErrValidation, "dimension must match the stored centroid")
}

func TestRecognize(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	alice := trainedVoice(t, e, "alice", "home", 1, 0.1, 0)
	bob := trainedVoice(t, e, "bob", "office", 0, 1, 0.1)

	rec, err := e.Voice.Recognize(ctx, features(1, 0, 0), nil)
	require.NoError(t, err)
	require.NotNil(t, rec.RecognizedUserID)
	assert.Equal(t, "alice", *rec.RecognizedUserID)
	assert.Equal(t, alice.ProfileID, *rec.ProfileID)
	assert.Equal(t, "home", rec.ProfileName)
	assert.Greater(t, rec.Confidence, 0.99)
	assert.Equal(t, 2, rec.Compared)
	require.Len(t, rec.Alternatives, 1)
	assert.Equal(t, bob.ProfileID, rec.Alternatives[0].ProfileID)
	assert.InDelta(t, 0, rec.Alternatives[0].Similarity, 1e-9)

	// candidates restrict the comparison set
	rec, err = e.Voice.Recognize(ctx, features(1, 0, 0), []string{"bob"})
	require.NoError(t, err)
	assert.Nil(t, rec.RecognizedUserID)
	assert.Equal(t, 1, rec.Compared)
	require.Len(t, rec.Alternatives, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().Recognitions.WithLabelValues("recognized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics().Recognitions.WithLabelValues("unrecognized")))
}

func TestRecognizeBelowThreshold(t *testing.T) {
	e, _ := newTestEngine(t)
	trainedVoice(t, e, "alice", "home", 1, 0, 0)

	// cos = 0.6
	rec, err := e.Voice.Recognize(context.Background(), features(0.6, 0.8, 0), nil)
	require.NoError(t, err)
	assert.Nil(t, rec.RecognizedUserID)
	assert.Nil(t, rec.ProfileID)
	assert.InDelta(t, 0.6, rec.Confidence, 1e-9)
	assert.Equal(t, 0.75, rec.Threshold)
	assert.Len(t, rec.Alternatives, 1)
}

func TestRecognizeIgnoresUntrained(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := e.Voice.Enroll(ctx, "alice", "home", "")
	require.NoError(t, err)

	rec, err := e.Voice.Recognize(ctx, features(1, 0, 0), nil)
	require.NoError(t, err)
	assert.Nil(t, rec.RecognizedUserID)
	assert.Equal(t, 0, rec.Compared)
	assert.NotNil(t, rec.Alternatives)
}

func TestRecognizeSeesNewTraining(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	rec, err := e.Voice.Recognize(ctx, features(1, 0, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Compared)

	trainedVoice(t, e, "alice", "home", 1, 0, 0)
	rec, err = e.Voice.Recognize(ctx, features(1, 0, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Compared)
}

func TestRecognizeAcrossEnginesSharingStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	writer, _ := newTestEngineWithStore(t, store)

	cached, err := New(store, config.DefaultLearning())
	require.NoError(t, err)
	uncached, err := New(store, config.DefaultLearning(), WithVoiceCache(0))
	require.NoError(t, err)

	for _, e := range []*Engine{cached, uncached} {
		rec, err := e.Voice.Recognize(ctx, features(1, 0, 0), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.Compared)
	}

	trainedVoice(t, writer, "alice", "home", 1, 0, 0)

	rec, err := uncached.Voice.Recognize(ctx, features(1, 0, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Compared)

	// the cached engine only sees its own mutations until the entry expires
	rec, err = cached.Voice.Recognize(ctx, features(1, 0, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Compared)
}

func TestDeletePromotesPrimary(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	home := trainedVoice(t, e, "alice", "home", 1, 0, 0)
	car := trainedVoice(t, e, "alice", "car", 0, 1, 0)
	registerUser(t, e, "mallory")

	err := e.Voice.Delete(ctx, "mallory", home.ProfileID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, e.Voice.Delete(ctx, "alice", home.ProfileID))
	prints, err := e.Voice.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, prints, 1)
	assert.Equal(t, car.ProfileID, prints[0].ProfileID)
	assert.True(t, prints[0].IsPrimary)

	rec, err := e.Voice.Recognize(ctx, features(1, 0, 0), nil)
	require.NoError(t, err)
	assert.Nil(t, rec.RecognizedUserID)

	err = e.Voice.Delete(ctx, "alice", home.ProfileID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetPrimary(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	home, err := e.Voice.Enroll(ctx, "alice", "home", "")
	require.NoError(t, err)
	car, err := e.Voice.Enroll(ctx, "alice", "car", "")
	require.NoError(t, err)

	got, err := e.Voice.SetPrimary(ctx, "alice", car.ProfileID)
	require.NoError(t, err)
	assert.True(t, got.IsPrimary)

	prints, err := e.Voice.List(ctx, "alice")
	require.NoError(t, err)
	primaries := 0
	for _, vp := range prints {
		if vp.IsPrimary {
			primaries++
			assert.Equal(t, car.ProfileID, vp.ProfileID)
		}
	}
	assert.Equal(t, 1, primaries)
	assert.NotEqual(t, home.ProfileID, car.ProfileID)
}

func TestRecognitionFeedback(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	vp := trainedVoice(t, e, "alice", "home", 1, 0, 0)

	got, err := e.Voice.RecordRecognitionFeedback(ctx, "alice", vp.ProfileID, true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.RecognitionAccuracy)
	got, err = e.Voice.RecordRecognitionFeedback(ctx, "alice", vp.ProfileID, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got.RecognitionAccuracy, 1e-9)
	assert.Equal(t, 2, got.RecognitionCount)
	assert.NotNil(t, got.LastUsed)
}

func TestRecognizeFromAudio(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	for user, band := range map[string]int{"alice": 3, "bob": 11} {
		vp, err := e.Voice.Enroll(ctx, user, "mic", "")
		require.NoError(t, err)
		samples := []AudioSample{
			{PCM: bandTone(t, band, 0), SampleRate: testRate},
			{PCM: bandTone(t, band, 0.7), SampleRate: testRate},
			{WAV: wavFile(bandTone(t, band, 1.9), testRate, 1)},
		}
		_, err = e.Voice.Train(ctx, vp.ProfileID, samples)
		require.NoError(t, err)
	}

	rec, err := e.Voice.Recognize(ctx, AudioSample{PCM: bandTone(t, 3, 0.4), SampleRate: testRate}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Compared)

	winner := ""
	if rec.RecognizedUserID != nil {
		winner = *rec.RecognizedUserID
	} else {
		require.NotEmpty(t, rec.Alternatives)
		winner = rec.Alternatives[0].UserID
	}
	assert.Equal(t, "alice", winner)
}
