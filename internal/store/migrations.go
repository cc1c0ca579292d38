package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Accepted smile transitions
		`CREATE TABLE IF NOT EXISTS smile_events (
			id TEXT PRIMARY KEY,
			detected INTEGER NOT NULL,
			monotonic_seconds REAL NOT NULL,
			image_path TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Files confirmed on the drive, keyed by content checksum
		`CREATE TABLE IF NOT EXISTS uploads (
			checksum TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			drive_id TEXT NOT NULL,
			name TEXT NOT NULL,
			link TEXT NOT NULL DEFAULT '',
			batch_id TEXT NOT NULL,
			uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_smile_events_created_at ON smile_events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_uploads_batch_id ON uploads(batch_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
