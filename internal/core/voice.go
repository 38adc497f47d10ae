// ABOUTME: VoiceMatcher enrolls voiceprints, trains centroids, and recognizes speakers
// ABOUTME: Trained voiceprint lists are cached per process and invalidated on every local mutation
package core

import (
	"context"
	"sort"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/models"
)

// VoiceMatcher owns voiceprints
type VoiceMatcher struct {
	*deps
	events *EventLog
	log    zerolog.Logger
	cache  *gocache.Cache
}

func newVoiceMatcher(d *deps, events *EventLog) *VoiceMatcher {
	return &VoiceMatcher{
		deps:   d,
		events: events,
		log:    d.log.With().Str("component", "voice").Logger(),
		cache:  gocache.New(d.voiceCacheTTL, 2*d.voiceCacheTTL),
	}
}

// Enroll creates an empty voiceprint. A user's first voiceprint is primary.
func (v *VoiceMatcher) Enroll(ctx context.Context, userID, name, description string) (*models.Voiceprint, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, models.Invalid("profile_name", "is required")
	}
	if _, err := v.events.ensureProfile(ctx, userID); err != nil {
		return nil, err
	}

	vp := &models.Voiceprint{
		ProfileID:   models.NewVoiceprintID(),
		UserID:      userID,
		ProfileName: name,
		Description: description,
		CreatedAt:   v.now().UTC(),
	}
	err := v.withUser(ctx, userID, func() error {
		existing, err := v.store.ListVoiceprints(ctx, []string{userID})
		if err != nil {
			return err
		}
		vp.IsPrimary = len(existing) == 0
		return v.store.SaveVoiceprint(ctx, vp)
	})
	if err != nil {
		return nil, err
	}
	v.cache.Flush()
	v.log.Info().Str("user_id", userID).Str("profile_id", vp.ProfileID).Msg("voiceprint enrolled")
	return vp, nil
}

// Train folds samples into the voiceprint centroid. Samples are kept even
// while the cumulative count is below the minimum; in that case the updated
// voiceprint is returned together with an InsufficientDataError.
func (v *VoiceMatcher) Train(ctx context.Context, profileID string, samples []AudioSample) (*models.Voiceprint, error) {
	if profileID == "" {
		return nil, models.Invalid("profile_id", "is required")
	}
	if len(samples) == 0 {
		return nil, models.Invalid("samples", "at least one audio sample is required")
	}

	vectors := make([][]float64, 0, len(samples))
	for _, s := range samples {
		f, err := ExtractFeatures(s)
		if err != nil {
			return nil, err
		}
		if len(vectors) > 0 && len(f) != len(vectors[0]) {
			return nil, models.Invalid("samples", "feature dimensions differ between samples")
		}
		vectors = append(vectors, f)
	}

	vp, err := v.store.GetVoiceprint(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if vp == nil {
		return nil, models.NotFound("voiceprint", profileID)
	}

	err = v.withUser(ctx, vp.UserID, func() error {
		// reload under the lock so concurrent training is not lost
		cur, err := v.store.GetVoiceprint(ctx, profileID)
		if err != nil {
			return err
		}
		if cur == nil {
			return models.NotFound("voiceprint", profileID)
		}
		if cur.SampleCount > 0 && len(cur.Centroid) != len(vectors[0]) {
			return models.Invalid("samples", "feature dimensions do not match the voiceprint")
		}

		cur.Centroid = updateCentroid(cur.Centroid, cur.SampleCount, vectors)
		cur.SampleCount += len(vectors)
		if cur.SampleCount >= v.cfg.MinVoiceSamples && cur.TrainedAt == nil {
			now := v.now().UTC()
			cur.TrainedAt = &now
		}
		vp = cur
		return v.store.SaveVoiceprint(ctx, cur)
	})
	if err != nil {
		return nil, err
	}
	v.cache.Flush()

	if vp.SampleCount < v.cfg.MinVoiceSamples {
		return vp, &models.InsufficientDataError{Kind: "voice samples", Have: vp.SampleCount, Need: v.cfg.MinVoiceSamples}
	}
	return vp, nil
}

// Recognize scores the query against every trained voiceprint of the
// candidate users (all users when none are given). It does not modify state.
func (v *VoiceMatcher) Recognize(ctx context.Context, sample AudioSample, candidateUserIDs []string) (*models.Recognition, error) {
	query, err := ExtractFeatures(sample)
	if err != nil {
		return nil, err
	}
	prints, err := v.trainedPrints(ctx, candidateUserIDs)
	if err != nil {
		return nil, err
	}

	matches := make([]models.VoiceMatch, 0, len(prints))
	for _, vp := range prints {
		sim := models.Clamp01(CosineSimilarity(query, vp.Centroid))
		matches = append(matches, models.VoiceMatch{
			ProfileID:   vp.ProfileID,
			UserID:      vp.UserID,
			ProfileName: vp.ProfileName,
			Similarity:  sim,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ProfileID < matches[j].ProfileID
	})

	rec := &models.Recognition{
		Threshold:    v.cfg.VoiceRecognitionThreshold,
		Compared:     len(matches),
		Alternatives: []models.VoiceMatch{},
	}
	alts := matches
	if len(matches) > 0 {
		best := matches[0]
		rec.Confidence = best.Similarity
		if best.Similarity >= v.cfg.VoiceRecognitionThreshold {
			userID, profileID := best.UserID, best.ProfileID
			rec.RecognizedUserID = &userID
			rec.ProfileID = &profileID
			rec.ProfileName = best.ProfileName
			alts = matches[1:]
		}
	}
	if len(alts) > 5 {
		alts = alts[:5]
	}
	rec.Alternatives = append(rec.Alternatives, alts...)

	outcome := "unrecognized"
	if rec.RecognizedUserID != nil {
		outcome = "recognized"
	}
	v.metrics.Recognitions.WithLabelValues(outcome).Inc()
	return rec, nil
}

// trainedPrints loads trained voiceprints for the candidate set through the cache
func (v *VoiceMatcher) trainedPrints(ctx context.Context, userIDs []string) ([]*models.Voiceprint, error) {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	key := "trained:" + strings.Join(ids, "\x00")
	caching := v.voiceCacheTTL > 0
	if caching {
		if cached, ok := v.cache.Get(key); ok {
			return cached.([]*models.Voiceprint), nil
		}
	}

	all, err := v.store.ListVoiceprints(ctx, ids)
	if err != nil {
		return nil, err
	}
	trained := make([]*models.Voiceprint, 0, len(all))
	for _, vp := range all {
		if vp.Trained() {
			trained = append(trained, vp)
		}
	}
	if caching {
		v.cache.Set(key, trained, gocache.DefaultExpiration)
	}
	return trained, nil
}

// Delete removes a voiceprint owned by userID, promoting the oldest remaining
// voiceprint when the primary one goes.
func (v *VoiceMatcher) Delete(ctx context.Context, userID, profileID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if profileID == "" {
		return models.Invalid("profile_id", "is required")
	}
	err := v.withUser(ctx, userID, func() error {
		vp, err := v.owned(ctx, userID, profileID)
		if err != nil {
			return err
		}
		if err := v.store.DeleteVoiceprint(ctx, profileID); err != nil {
			return err
		}
		if !vp.IsPrimary {
			return nil
		}
		rest, err := v.store.ListVoiceprints(ctx, []string{userID})
		if err != nil || len(rest) == 0 {
			return err
		}
		rest[0].IsPrimary = true
		return v.store.SaveVoiceprint(ctx, rest[0])
	})
	if err != nil {
		return err
	}
	v.cache.Flush()
	v.log.Info().Str("user_id", userID).Str("profile_id", profileID).Msg("voiceprint deleted")
	return nil
}

// SetPrimary marks one of the user's voiceprints as primary
func (v *VoiceMatcher) SetPrimary(ctx context.Context, userID, profileID string) (*models.Voiceprint, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out *models.Voiceprint
	err := v.withUser(ctx, userID, func() error {
		if _, err := v.owned(ctx, userID, profileID); err != nil {
			return err
		}
		prints, err := v.store.ListVoiceprints(ctx, []string{userID})
		if err != nil {
			return err
		}
		for _, vp := range prints {
			want := vp.ProfileID == profileID
			if want {
				out = vp
			}
			if vp.IsPrimary == want {
				continue
			}
			vp.IsPrimary = want
			if err := v.store.SaveVoiceprint(ctx, vp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	v.cache.Flush()
	return out, nil
}

// RecordRecognitionFeedback tracks whether a recognition was right as an
// exponential moving average.
func (v *VoiceMatcher) RecordRecognitionFeedback(ctx context.Context, userID, profileID string, correct bool) (*models.Voiceprint, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out *models.Voiceprint
	err := v.withUser(ctx, userID, func() error {
		vp, err := v.owned(ctx, userID, profileID)
		if err != nil {
			return err
		}
		score := 0.0
		if correct {
			score = 1.0
		}
		if vp.RecognitionCount == 0 {
			vp.RecognitionAccuracy = score
		} else {
			vp.RecognitionAccuracy = 0.9*vp.RecognitionAccuracy + 0.1*score
		}
		vp.RecognitionCount++
		now := v.now().UTC()
		vp.LastUsed = &now
		out = vp
		return v.store.SaveVoiceprint(ctx, vp)
	})
	if err != nil {
		return nil, err
	}
	v.cache.Flush()
	return out, nil
}

// List returns the user's voiceprints, oldest first
func (v *VoiceMatcher) List(ctx context.Context, userID string) ([]*models.Voiceprint, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return v.store.ListVoiceprints(ctx, []string{userID})
}

func (v *VoiceMatcher) owned(ctx context.Context, userID, profileID string) (*models.Voiceprint, error) {
	vp, err := v.store.GetVoiceprint(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if vp == nil || vp.UserID != userID {
		return nil, models.NotFound("voiceprint", profileID)
	}
	return vp, nil
}
