// Package callsession is the boundary between debounced gestures and the
// call. A Controller turns each gesture into at most one actuator call,
// skips requests for the state the call is already in, and records every
// event to the session history.
package callsession

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/store"
)

// QueueSize is how many gestures HandleGesture buffers for Run.
const QueueSize = 16

// EventRecorder persists gesture events.
type EventRecorder interface {
	Record(e *store.Event) error
}

// Status is the call state as far as the controller knows it. The zero value
// is a live call with the microphone and camera on.
type Status struct {
	Muted     bool `json:"muted"`
	CameraOff bool `json:"camera_off"`
	Ended     bool `json:"ended"`
}

// Controller applies gestures to one call session.
type Controller struct {
	sessionID string
	actuator  Actuator
	recorder  EventRecorder
	logger    *slog.Logger

	queue chan gesture.Gesture
	ended chan struct{}

	mu     sync.Mutex // held across actuator calls so Handle runs one at a time
	status Status
}

// NewController creates a Controller. recorder may be nil to skip history.
func NewController(sessionID string, actuator Actuator, recorder EventRecorder, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessionID: sessionID,
		actuator:  actuator,
		recorder:  recorder,
		logger:    logger.With("session", sessionID),
		queue:     make(chan gesture.Gesture, QueueSize),
		ended:     make(chan struct{}),
	}
}

// SessionID returns the session the controller acts on.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// HandleGesture queues g for Run and never blocks, so it is safe to use as
// the scheduler's gesture callback. A gesture that does not fit in the queue
// is dropped.
func (c *Controller) HandleGesture(g gesture.Gesture) {
	select {
	case c.queue <- g:
	default:
		c.logger.Warn("gesture queue full, dropping event", "gesture", g)
	}
}

// Run handles queued gestures in order until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case g := <-c.queue:
			c.Handle(ctx, g)
		}
	}
}

// Handle applies g synchronously and returns what happened. The error is the
// actuator's, if it failed.
func (c *Controller) Handle(ctx context.Context, g gesture.Gesture) (store.Outcome, error) {
	if !g.Valid() {
		return store.OutcomeIgnored, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	outcome, err := c.apply(ctx, g)

	event := &store.Event{
		SessionID:  c.sessionID,
		Gesture:    string(g),
		Action:     Action(g),
		Outcome:    outcome,
		Confidence: 1,
	}
	if err != nil {
		event.Error = err.Error()
	}
	c.record(event)

	switch outcome {
	case store.OutcomeApplied:
		c.logger.Info("gesture applied", "gesture", g, "action", event.Action)
	case store.OutcomeFailed:
		c.logger.Error("call action failed", "gesture", g, "action", event.Action, "error", err)
	default:
		c.logger.Debug("gesture not applied", "gesture", g, "outcome", outcome)
	}

	return outcome, err
}

func (c *Controller) apply(ctx context.Context, g gesture.Gesture) (store.Outcome, error) {
	if c.status.Ended {
		return store.OutcomeIgnored, nil
	}

	var (
		already bool
		call    func(context.Context) error
		commit  func()
	)
	switch g {
	case gesture.Mute:
		already, call, commit = c.status.Muted, c.actuator.Mute, func() { c.status.Muted = true }
	case gesture.Unmute:
		already, call, commit = !c.status.Muted, c.actuator.Unmute, func() { c.status.Muted = false }
	case gesture.CameraOff:
		already, call, commit = c.status.CameraOff, c.actuator.CameraOff, func() { c.status.CameraOff = true }
	case gesture.CameraOn:
		already, call, commit = !c.status.CameraOff, c.actuator.CameraOn, func() { c.status.CameraOff = false }
	case gesture.EndCall:
		call, commit = c.actuator.Hangup, func() {
			c.status.Ended = true
			close(c.ended)
		}
	}

	if already {
		return store.OutcomeNoop, nil
	}

	if err := call(ctx); err != nil {
		if errors.Is(err, ErrBindingDisabled) {
			return store.OutcomeIgnored, nil
		}
		return store.OutcomeFailed, err
	}

	commit()
	return store.OutcomeApplied, nil
}

func (c *Controller) record(e *store.Event) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(e); err != nil {
		c.logger.Warn("failed to record gesture event", "gesture", e.Gesture, "error", err)
	}
}

// Status returns the current call state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus overrides the known call state, for calls that start muted or
// with the camera off.
func (c *Controller) SetStatus(st Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Ended {
		return
	}
	if st.Ended {
		close(c.ended)
	}
	c.status = st
}

// Ended returns a channel closed once the call has been hung up.
func (c *Controller) Ended() <-chan struct{} {
	return c.ended
}
