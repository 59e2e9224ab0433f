package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/handsignal/internal/store"
)

// SessionHandler serves call session history. It is read-only.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/events.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		h.list(w, r)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch rest {
	case "":
		h.get(w, r, id)
	case "events":
		h.events(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type sessionResponse struct {
	ID        string         `json:"id"`
	StartedAt string         `json:"started_at"`
	EndedAt   string         `json:"ended_at,omitempty"`
	Active    bool           `json:"active"`
	Gestures  map[string]int `json:"gestures,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventResponse struct {
	ID         int64   `json:"id"`
	Gesture    string  `json:"gesture"`
	Action     string  `json:"action,omitempty"`
	Outcome    string  `json:"outcome"`
	Error      string  `json:"error,omitempty"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

type listEventsResponse struct {
	SessionID string          `json:"session_id"`
	Events    []eventResponse `json:"events"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		StartedAt: formatTime(s.StartedAt),
		Active:    s.Active(),
	}
	if s.EndedAt != nil {
		resp.EndedAt = formatTime(*s.EndedAt)
	}
	return resp
}

// list handles GET /api/sessions, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id} with per-gesture event counts.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	session, ok := h.lookup(w, id)
	if !ok {
		return
	}

	counts, err := h.store.Events().CountByGesture(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}

	response := toSessionResponse(session)
	response.Gestures = counts
	writeJSON(w, http.StatusOK, response)
}

// events handles GET /api/sessions/{id}/events in the order they happened.
func (h *SessionHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	events, err := h.store.Events().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{
		SessionID: id,
		Events:    make([]eventResponse, 0, len(events)),
	}
	for _, e := range events {
		response.Events = append(response.Events, eventResponse{
			ID:         e.ID,
			Gesture:    e.Gesture,
			Action:     e.Action,
			Outcome:    string(e.Outcome),
			Error:      e.Error,
			Confidence: e.Confidence,
			CreatedAt:  formatTime(e.CreatedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, id string) (*store.Session, bool) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return nil, false
	}
	return session, true
}
