// ABOUTME: EventLog appends interaction events and owns user profiles
// ABOUTME: Unknown users get a synthetic profile when auto-creation is enabled
package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/harper/attune/internal/models"
)

// EventLog is the append-only interaction log plus the profile store
type EventLog struct {
	*deps
	log zerolog.Logger
}

// RegisterProfile creates a profile, or updates display name, language, and
// timezone in place when one exists.
func (l *EventLog) RegisterProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	if p == nil {
		return nil, models.Invalid("profile", "is required")
	}
	if err := requireUser(p.UserID); err != nil {
		return nil, err
	}
	if err := validateTimezone(p.Timezone); err != nil {
		return nil, err
	}

	var out *models.Profile
	err := l.withUser(ctx, p.UserID, func() error {
		existing, err := l.store.GetProfile(ctx, p.UserID)
		if err != nil {
			return err
		}
		now := l.now().UTC()
		if existing != nil {
			existing.Merge(p)
			existing.UpdatedAt = now
			out = existing
		} else {
			out = &models.Profile{
				UserID:            p.UserID,
				DisplayName:       p.DisplayName,
				PreferredLanguage: p.PreferredLanguage,
				Timezone:          p.Timezone,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if out.DisplayName == "" {
				out.DisplayName = p.UserID
			}
		}
		return l.store.SaveProfile(ctx, out)
	})
	if err != nil {
		return nil, err
	}
	l.log.Debug().Str("user_id", out.UserID).Msg("profile registered")
	return out, nil
}

// GetProfile returns the user's profile or a NotFoundError
func (l *EventLog) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	p, err := l.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, models.NotFound("profile", userID)
	}
	return p, nil
}

// UpdateProfile applies the non-empty fields of update to an existing profile
func (l *EventLog) UpdateProfile(ctx context.Context, userID string, update *models.Profile) (*models.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if update == nil {
		return nil, models.Invalid("profile", "is required")
	}
	if err := validateTimezone(update.Timezone); err != nil {
		return nil, err
	}

	var out *models.Profile
	err := l.withUser(ctx, userID, func() error {
		p, err := l.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		p.Merge(update)
		p.UpdatedAt = l.now().UTC()
		out = p
		return l.store.SaveProfile(ctx, p)
	})
	return out, err
}

// ListProfiles returns every profile ordered by user id
func (l *EventLog) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	return l.store.ListProfiles(ctx)
}

// Append validates and records an event, assigning its id and defaulting the
// timestamp to now.
func (l *EventLog) Append(ctx context.Context, e *models.Event) (*models.Event, error) {
	if e == nil {
		return nil, models.Invalid("event", "is required")
	}
	if err := requireUser(e.UserID); err != nil {
		return nil, err
	}
	if !e.Kind.Valid() {
		return nil, models.Invalid("kind", "must be task_created, command_run, message, or voice_capture")
	}
	if e.Kind == models.EventTaskCreated && e.Title() == "" {
		return nil, models.Invalid("payload.title", "is required for task_created events")
	}
	if e.Kind == models.EventCommandRun && e.Command() == "" {
		return nil, models.Invalid("payload.command", "is required for command_run events")
	}

	if _, err := l.ensureProfile(ctx, e.UserID); err != nil {
		return nil, err
	}

	out := *e
	out.EventID = models.NewEventID()
	if out.Timestamp.IsZero() {
		out.Timestamp = l.now()
	}
	out.Timestamp = out.Timestamp.UTC()

	if err := l.store.AppendEvent(ctx, &out); err != nil {
		l.log.Error().Err(err).Str("user_id", e.UserID).Msg("append event failed")
		return nil, err
	}
	return &out, nil
}

// ListEvents pages through a user's events after cursor
func (l *EventLog) ListEvents(ctx context.Context, userID string, after models.EventCursor, limit int) ([]*models.Event, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return l.store.ListEvents(ctx, userID, after, limit)
}

// ensureProfile returns the user's profile, creating a synthetic one when
// allowed. Callers must not hold the user's lock.
func (l *EventLog) ensureProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := l.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	if !l.cfg.AutoCreateProfiles {
		return nil, models.NotFound("profile", userID)
	}

	created := false
	err = l.withUser(ctx, userID, func() error {
		// A concurrent RegisterProfile may have won the race
		p, err = l.store.GetProfile(ctx, userID)
		if err != nil || p != nil {
			return err
		}
		now := l.now().UTC()
		p = &models.Profile{
			UserID:      userID,
			DisplayName: userID,
			Synthetic:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created = true
		return l.store.SaveProfile(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if created {
		l.log.Info().Str("user_id", userID).Msg("created synthetic profile")
	}
	return p, nil
}

func validateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return models.Invalid("timezone", "is not a known IANA zone")
	}
	return nil
}
