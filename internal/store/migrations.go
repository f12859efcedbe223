package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Recordings - one captured tracking run
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			gender TEXT NOT NULL CHECK(gender IN ('female', 'male', 'child')),
			hand_size TEXT NOT NULL DEFAULT 'auto',
			viewport_w REAL NOT NULL,
			viewport_h REAL NOT NULL,
			frames INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Recording frames - msgpack-encoded hand per frame, NULL on a miss
		`CREATE TABLE IF NOT EXISTS recording_frames (
			recording_id TEXT NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			hand BLOB,
			PRIMARY KEY (recording_id, seq)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
