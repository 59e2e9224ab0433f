package store

import (
	"database/sql"
	"time"
)

// Outcome records what the call session did with a gesture event.
type Outcome string

const (
	// OutcomeApplied means an actuator call was made and succeeded.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop means the call was already in the requested state.
	OutcomeNoop Outcome = "noop"
	// OutcomeFailed means the actuator returned an error.
	OutcomeFailed Outcome = "failed"
	// OutcomeIgnored means the gesture arrived after the call ended or its
	// binding is disabled.
	OutcomeIgnored Outcome = "ignored"
)

// Event is one debounced gesture as handled by a call session.
type Event struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Gesture    string    `json:"gesture"`
	Action     string    `json:"action,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventRepository provides operations on the gesture event history.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Record appends an event and sets its ID. CreatedAt defaults to now.
func (r *EventRepository) Record(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO gesture_events (session_id, gesture, action, outcome, error, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Gesture, e.Action, string(e.Outcome), e.Error, e.Confidence, e.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id

	return nil
}

// ListBySession retrieves a session's events in the order they happened.
func (r *EventRepository) ListBySession(sessionID string) ([]Event, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, gesture, action, outcome, error, confidence, created_at
		 FROM gesture_events
		 WHERE session_id = ?
		 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var outcome string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Gesture, &e.Action, &outcome, &e.Error, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Outcome = Outcome(outcome)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountByGesture returns how many events each gesture produced in a session.
func (r *EventRepository) CountByGesture(sessionID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT gesture, COUNT(*) FROM gesture_events WHERE session_id = ? GROUP BY gesture`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var g string
		var n int
		if err := rows.Scan(&g, &n); err != nil {
			return nil, err
		}
		counts[g] = n
	}

	return counts, rows.Err()
}
