package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is one call the gesture controller was attached to.
type Session struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Active reports whether the session has not ended.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionRepository provides operations on call sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. StartedAt defaults to now.
func (r *SessionRepository) Create(s *Session) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		s.ID, s.StartedAt,
	)
	return err
}

// End marks a session as ended at the given time. Ending an already ended
// session keeps the first end time.
func (r *SessionRepository) End(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		at, id,
	)
	if err != nil {
		return err
	}

	return requireAffected(result)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, started_at, ended_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.StartedAt, &ended)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if ended.Valid {
		s.EndedAt = &ended.Time
	}
	return s, nil
}

// List retrieves sessions, most recent first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, started_at, ended_at FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		var ended sql.NullTime
		if err := rows.Scan(&s.ID, &s.StartedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			s.EndedAt = &ended.Time
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
