// ABOUTME: Store is the durable keyed storage contract the learning engine relies on
// ABOUTME: Every entity has secondary lookup by user_id with time-ordered reads
package storage

import (
	"context"
	"time"

	"github.com/harper/attune/internal/models"
)

// Store persists every learning entity. Lookups of a single missing entity
// return (nil, nil). Driver failures are reported as *models.StorageError.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, p *models.Profile) error
	ListProfiles(ctx context.Context) ([]*models.Profile, error)

	AppendEvent(ctx context.Context, e *models.Event) error
	// ListEvents returns up to limit events strictly after the cursor,
	// ordered by timestamp then event id.
	ListEvents(ctx context.Context, userID string, after models.EventCursor, limit int) ([]*models.Event, error)
	LatestEvent(ctx context.Context, userID string) (*models.Event, error)

	GetHabit(ctx context.Context, habitID string) (*models.Habit, error)
	FindHabit(ctx context.Context, userID string, key models.PatternKey) (*models.Habit, error)
	SaveHabit(ctx context.Context, h *models.Habit) error
	ListHabits(ctx context.Context, userID string) ([]*models.Habit, error)

	GetLearnState(ctx context.Context, userID string) (*models.LearnState, error)
	SaveLearnState(ctx context.Context, s *models.LearnState) error

	GetPrediction(ctx context.Context, predictionID string) (*models.Prediction, error)
	SavePrediction(ctx context.Context, p *models.Prediction) error
	// ListPredictions returns the user's predictions, newest first.
	ListPredictions(ctx context.Context, userID string) ([]*models.Prediction, error)

	AppendContextEntry(ctx context.Context, e *models.ContextEntry) error
	// ListContextEntries returns entries at or after since, newest first.
	// A non-positive limit returns every match.
	ListContextEntries(ctx context.Context, userID string, since time.Time, limit int) ([]*models.ContextEntry, error)
	DeleteContextEntries(ctx context.Context, userID string, before time.Time) (int, error)

	AppendMoodSample(ctx context.Context, s *models.MoodSample) error
	// ListMoodSamples returns samples at or after since, oldest first.
	ListMoodSamples(ctx context.Context, userID string, since time.Time) ([]*models.MoodSample, error)

	GetVoiceprint(ctx context.Context, profileID string) (*models.Voiceprint, error)
	SaveVoiceprint(ctx context.Context, v *models.Voiceprint) error
	// ListVoiceprints returns voiceprints owned by any of userIDs, or all
	// voiceprints when userIDs is empty, oldest first.
	ListVoiceprints(ctx context.Context, userIDs []string) ([]*models.Voiceprint, error)
	DeleteVoiceprint(ctx context.Context, profileID string) error

	Close() error
}
