package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/ayusman/handsignal/internal/store"
)

func seedSession(t *testing.T, s *store.Store) {
	t.Helper()

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Sessions().Create(&store.Session{ID: "call-1", StartedAt: started}); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	events := []*store.Event{
		{SessionID: "call-1", Gesture: "mute", Action: "mute", Outcome: store.OutcomeApplied, Confidence: 1},
		{SessionID: "call-1", Gesture: "mute", Action: "mute", Outcome: store.OutcomeNoop, Confidence: 1},
		{SessionID: "call-1", Gesture: "end_call", Action: "hangup", Outcome: store.OutcomeFailed, Error: "timed out", Confidence: 1},
	}
	for _, e := range events {
		if err := s.Events().Record(e); err != nil {
			t.Fatalf("failed to record event: %v", err)
		}
	}
	if err := s.Sessions().End("call-1", started.Add(10*time.Minute)); err != nil {
		t.Fatalf("failed to end session: %v", err)
	}
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	handler := NewSessionHandler(s)

	rec := doJSON(t, handler, http.MethodGet, "/api/sessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listSessionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(response.Sessions))
	}
	got := response.Sessions[0]
	if got.ID != "call-1" || got.Active || got.EndedAt != "2024-03-01T10:10:00Z" {
		t.Errorf("unexpected session %+v", got)
	}
}

func TestSessionHandler_Get(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	handler := NewSessionHandler(s)

	rec := doJSON(t, handler, http.MethodGet, "/api/sessions/call-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response sessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Gestures["mute"] != 2 || response.Gestures["end_call"] != 1 {
		t.Errorf("gesture counts = %v", response.Gestures)
	}
}

func TestSessionHandler_Events(t *testing.T) {
	s := newTestStore(t)
	seedSession(t, s)
	handler := NewSessionHandler(s)

	rec := doJSON(t, handler, http.MethodGet, "/api/sessions/call-1/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listEventsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.SessionID != "call-1" || len(response.Events) != 3 {
		t.Fatalf("unexpected response %+v", response)
	}

	wantOutcomes := []string{"applied", "noop", "failed"}
	for i, e := range response.Events {
		if e.Outcome != wantOutcomes[i] {
			t.Errorf("event %d outcome = %s, want %s", i, e.Outcome, wantOutcomes[i])
		}
	}
	if response.Events[2].Error != "timed out" {
		t.Errorf("event 2 error = %q", response.Events[2].Error)
	}
}

func TestSessionHandler_Errors(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown session", http.MethodGet, "/api/sessions/nope", http.StatusNotFound},
		{"events of unknown session", http.MethodGet, "/api/sessions/nope/events", http.StatusNotFound},
		{"unknown sub-resource", http.MethodGet, "/api/sessions/call-1/frames", http.StatusNotFound},
		{"read only", http.MethodPost, "/api/sessions", http.StatusMethodNotAllowed},
		{"empty list", http.MethodGet, "/api/sessions", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.path, nil)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
