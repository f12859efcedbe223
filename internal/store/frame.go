package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ayusman/lune/internal/detector"
)

// Frame is one recorded detector delivery. A nil Hand is a miss.
type Frame struct {
	Seq         int            `json:"seq" msgpack:"seq"`
	TimestampMs int64          `json:"timestamp_ms" msgpack:"timestamp_ms"`
	Hand        *detector.Hand `json:"hand,omitempty" msgpack:"hand,omitempty"`
}

// FrameRepository stores the frames of recordings.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// Append adds frames to the end of a recording in a single transaction,
// assigning sequence numbers after the existing frames. It returns the new
// frame count.
func (r *FrameRepository) Append(recordingID string, frames []Frame) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRow(`SELECT frames FROM recordings WHERE id = ?`, recordingID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO recording_frames (recording_id, seq, timestamp_ms, hand) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i := range frames {
		var blob []byte
		if frames[i].Hand != nil {
			if blob, err = msgpack.Marshal(frames[i].Hand); err != nil {
				return 0, fmt.Errorf("encode frame: %w", err)
			}
		}
		frames[i].Seq = count + i
		if _, err := stmt.Exec(recordingID, frames[i].Seq, frames[i].TimestampMs, blob); err != nil {
			return 0, err
		}
	}

	count += len(frames)
	if _, err := tx.Exec(`UPDATE recordings SET frames = ? WHERE id = ?`, count, recordingID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// List returns all frames of a recording in sequence order.
func (r *FrameRepository) List(recordingID string) ([]Frame, error) {
	rows, err := r.db.Query(
		`SELECT seq, timestamp_ms, hand FROM recording_frames
		 WHERE recording_id = ?
		 ORDER BY seq`,
		recordingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var blob []byte
		if err := rows.Scan(&f.Seq, &f.TimestampMs, &blob); err != nil {
			return nil, err
		}
		if len(blob) > 0 {
			f.Hand = &detector.Hand{}
			if err := msgpack.Unmarshal(blob, f.Hand); err != nil {
				return nil, fmt.Errorf("decode frame %d: %w", f.Seq, err)
			}
		}
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}
