// ABOUTME: User profile storage operations for SQLite
// ABOUTME: One row per user_id, upserted in place
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harper/attune/internal/models"
)

// ProfileStore handles user profile persistence
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a new ProfileStore
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `user_id, display_name, preferred_language, timezone, synthetic, created_at, updated_at`

// Get retrieves a profile, returning nil if not found
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// Save saves or updates a profile (upsert)
func (s *ProfileStore) Save(ctx context.Context, p *models.Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display_name = excluded.display_name,
			preferred_language = excluded.preferred_language,
			timezone = excluded.timezone,
			synthetic = excluded.synthetic,
			updated_at = excluded.updated_at
	`, p.UserID, p.DisplayName, p.PreferredLanguage, p.Timezone, boolToInt(p.Synthetic),
		toNanos(p.CreatedAt), toNanos(p.UpdatedAt))

	return err
}

// List returns every profile ordered by user_id
func (s *ProfileStore) List(ctx context.Context) ([]*models.Profile, error) {
	rows, err := s.db.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row scanner) (*models.Profile, error) {
	var (
		p                   models.Profile
		name, lang, tz      sql.NullString
		synthetic           int
		createdAt, updateAt int64
	)
	if err := row.Scan(&p.UserID, &name, &lang, &tz, &synthetic, &createdAt, &updateAt); err != nil {
		return nil, err
	}
	p.DisplayName = name.String
	p.PreferredLanguage = lang.String
	p.Timezone = tz.String
	p.Synthetic = synthetic != 0
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updateAt)
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
