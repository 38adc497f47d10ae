// ABOUTME: Voiceprint storage operations for SQLite
// ABOUTME: Centroids are stored as little-endian float64 BLOBs
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"strings"

	"github.com/harper/attune/internal/models"
)

// VoiceprintStore handles voiceprint persistence
type VoiceprintStore struct {
	db *DB
}

// NewVoiceprintStore creates a new VoiceprintStore
func NewVoiceprintStore(db *DB) *VoiceprintStore {
	return &VoiceprintStore{db: db}
}

const voiceprintColumns = `id, user_id, profile_name, description, centroid, sample_count, is_primary,
	recognition_count, recognition_accuracy, created_at, trained_at, last_used`

// Get retrieves a voiceprint by profile id, returning nil if not found
func (s *VoiceprintStore) Get(ctx context.Context, profileID string) (*models.Voiceprint, error) {
	v, err := scanVoiceprint(s.db.QueryRow(ctx, `SELECT `+voiceprintColumns+` FROM voiceprints WHERE id = ?`, profileID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// Save inserts or updates a voiceprint
func (s *VoiceprintStore) Save(ctx context.Context, v *models.Voiceprint) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO voiceprints (`+voiceprintColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile_name = excluded.profile_name,
			description = excluded.description,
			centroid = excluded.centroid,
			sample_count = excluded.sample_count,
			is_primary = excluded.is_primary,
			recognition_count = excluded.recognition_count,
			recognition_accuracy = excluded.recognition_accuracy,
			trained_at = excluded.trained_at,
			last_used = excluded.last_used
	`, v.ProfileID, v.UserID, v.ProfileName, v.Description, vectorToBlob(v.Centroid), v.SampleCount,
		boolToInt(v.IsPrimary), v.RecognitionCount, v.RecognitionAccuracy,
		toNanos(v.CreatedAt), nullableNanos(v.TrainedAt), nullableNanos(v.LastUsed))
	return err
}

// List returns voiceprints owned by any of userIDs (all when empty), oldest first
func (s *VoiceprintStore) List(ctx context.Context, userIDs []string) ([]*models.Voiceprint, error) {
	query := `SELECT ` + voiceprintColumns + ` FROM voiceprints`
	var args []interface{}
	if len(userIDs) > 0 {
		placeholders := make([]string, len(userIDs))
		for i, id := range userIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += ` WHERE user_id IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var prints []*models.Voiceprint
	for rows.Next() {
		v, err := scanVoiceprint(rows)
		if err != nil {
			return nil, err
		}
		prints = append(prints, v)
	}
	return prints, rows.Err()
}

// Delete removes a voiceprint by profile id
func (s *VoiceprintStore) Delete(ctx context.Context, profileID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM voiceprints WHERE id = ?`, profileID)
	return err
}

func scanVoiceprint(row scanner) (*models.Voiceprint, error) {
	var (
		v                   models.Voiceprint
		description         sql.NullString
		centroid            []byte
		primary             int
		createdAt           int64
		trainedAt, lastUsed sql.NullInt64
	)
	err := row.Scan(&v.ProfileID, &v.UserID, &v.ProfileName, &description, &centroid, &v.SampleCount,
		&primary, &v.RecognitionCount, &v.RecognitionAccuracy, &createdAt, &trainedAt, &lastUsed)
	if err != nil {
		return nil, err
	}
	v.Description = description.String
	if len(centroid) > 0 {
		v.Centroid = blobToVector(centroid)
	}
	v.IsPrimary = primary != 0
	v.CreatedAt = fromNanos(createdAt)
	v.TrainedAt = fromNullNanos(trainedAt)
	v.LastUsed = fromNullNanos(lastUsed)
	return &v, nil
}

// vectorToBlob converts float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}
