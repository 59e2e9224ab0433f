package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per call the gesture controller was attached to
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// Gesture events table - every debounced gesture and what it did
		`CREATE TABLE IF NOT EXISTS gesture_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			gesture TEXT NOT NULL,
			action TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL CHECK(outcome IN ('applied', 'noop', 'failed', 'ignored')),
			error TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 1.0,
			created_at DATETIME NOT NULL
		)`,

		// Bindings table - routes a gesture to a plugin action
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			gesture TEXT NOT NULL UNIQUE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_gesture_events_session_id ON gesture_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_gesture_events_gesture ON gesture_events(gesture)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
