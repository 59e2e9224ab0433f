package scheduler

import (
	"time"

	"github.com/ayusman/handsignal/internal/detector"
	"github.com/ayusman/handsignal/internal/gesture"
)

// Phase is the lifecycle position of a Scheduler.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseReady
	PhaseRunning
	PhaseStopped
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the detector state published by the loop. Readers always get a
// copy; the loop goroutine is the only writer.
type State struct {
	Ready         bool            `json:"ready"`
	Running       bool            `json:"running"`
	LastResult    detector.Result `json:"lastResult,omitempty"`
	// ActiveGesture is the pose classified in the latest frame, not the last
	// emitted event. It shows a gesture held through its cooldown too.
	ActiveGesture gesture.Gesture `json:"activeGesture,omitempty"`
	Confidence    *float64        `json:"confidence,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	if s.LastResult != nil {
		s.LastResult = append(detector.Result(nil), s.LastResult...)
	}
	if s.Confidence != nil {
		c := *s.Confidence
		s.Confidence = &c
	}
	return s
}

// Cleared reports whether s carries no display state.
func (s State) Cleared() bool {
	return s.LastResult == nil && s.ActiveGesture == gesture.None && s.Confidence == nil
}
