package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/handsize"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Recording is a captured tracking run that can be replayed through a
// fresh session.
type Recording struct {
	ID        string            `json:"id" msgpack:"id"`
	Name      string            `json:"name" msgpack:"name"`
	Gender    handsize.Gender   `json:"gender" msgpack:"gender"`
	HandSize  handsize.Size     `json:"hand_size" msgpack:"hand_size"`
	Viewport  geometry.Viewport `json:"viewport" msgpack:"viewport"`
	Frames    int               `json:"frames" msgpack:"frames"`
	CreatedAt time.Time         `json:"created_at" msgpack:"created_at"`
}

// RecordingRepository provides CRUD operations for recordings.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Create inserts a new recording. An empty ID is filled with a new UUID.
func (r *RecordingRepository) Create(rec *Recording) error {
	if !rec.Viewport.Valid() {
		return fmt.Errorf("invalid viewport %vx%v", rec.Viewport.Width, rec.Viewport.Height)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	rec.Frames = 0

	_, err := r.db.Exec(
		`INSERT INTO recordings (id, name, gender, hand_size, viewport_w, viewport_h, frames, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Gender.String(), rec.HandSize.String(),
		rec.Viewport.Width, rec.Viewport.Height, rec.Frames, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*Recording, error) {
	rec := &Recording{}
	var gender, size string
	if err := row.Scan(&rec.ID, &rec.Name, &gender, &size,
		&rec.Viewport.Width, &rec.Viewport.Height, &rec.Frames, &rec.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if rec.Gender, err = handsize.ParseGender(gender); err != nil {
		return nil, err
	}
	if rec.HandSize, err = handsize.ParseSize(size); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByID retrieves a recording by its ID.
func (r *RecordingRepository) GetByID(id string) (*Recording, error) {
	rec, err := scanRecording(r.db.QueryRow(
		`SELECT id, name, gender, hand_size, viewport_w, viewport_h, frames, created_at
		 FROM recordings WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List retrieves all recordings, newest first.
func (r *RecordingRepository) List() ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, name, gender, hand_size, viewport_w, viewport_h, frames, created_at
		 FROM recordings ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recordings, nil
}

// Delete removes a recording and its frames.
func (r *RecordingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
