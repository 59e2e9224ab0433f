package callsession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeActuator struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeActuator) do(action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, action)
	return f.fail[action]
}

func (f *fakeActuator) Mute(context.Context) error      { return f.do(ActionMute) }
func (f *fakeActuator) Unmute(context.Context) error    { return f.do(ActionUnmute) }
func (f *fakeActuator) CameraOn(context.Context) error  { return f.do(ActionCameraOn) }
func (f *fakeActuator) CameraOff(context.Context) error { return f.do(ActionCameraOff) }
func (f *fakeActuator) Hangup(context.Context) error    { return f.do(ActionHangup) }

func (f *fakeActuator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type memRecorder struct {
	mu     sync.Mutex
	events []store.Event
}

func (r *memRecorder) Record(e *store.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *memRecorder) outcomes() []store.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.Outcome, len(r.events))
	for i, e := range r.events {
		out[i] = e.Outcome
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestController_Handle(t *testing.T) {
	tests := []struct {
		name     string
		gestures []gesture.Gesture
		calls    []string
		outcomes []store.Outcome
		status   Status
	}{
		{
			name:     "mute then duplicate",
			gestures: []gesture.Gesture{gesture.Mute, gesture.Mute},
			calls:    []string{ActionMute},
			outcomes: []store.Outcome{store.OutcomeApplied, store.OutcomeNoop},
			status:   Status{Muted: true},
		},
		{
			name:     "unmute on a live call",
			gestures: []gesture.Gesture{gesture.Unmute},
			calls:    nil,
			outcomes: []store.Outcome{store.OutcomeNoop},
		},
		{
			name:     "camera toggles",
			gestures: []gesture.Gesture{gesture.CameraOn, gesture.CameraOff, gesture.CameraOff, gesture.CameraOn},
			calls:    []string{ActionCameraOff, ActionCameraOn},
			outcomes: []store.Outcome{store.OutcomeNoop, store.OutcomeApplied, store.OutcomeNoop, store.OutcomeApplied},
		},
		{
			name:     "end call ignores the rest",
			gestures: []gesture.Gesture{gesture.Mute, gesture.EndCall, gesture.Unmute, gesture.EndCall},
			calls:    []string{ActionMute, ActionHangup},
			outcomes: []store.Outcome{store.OutcomeApplied, store.OutcomeApplied, store.OutcomeIgnored, store.OutcomeIgnored},
			status:   Status{Muted: true, Ended: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := &fakeActuator{}
			rec := &memRecorder{}
			c := NewController("call-1", act, rec, quietLogger)

			for _, g := range tt.gestures {
				if _, err := c.Handle(context.Background(), g); err != nil {
					t.Fatalf("Handle(%v) error: %v", g, err)
				}
			}

			if got := act.Calls(); !equalStrings(got, tt.calls) {
				t.Errorf("actuator calls = %v, want %v", got, tt.calls)
			}
			got := rec.outcomes()
			if len(got) != len(tt.outcomes) {
				t.Fatalf("recorded %d events, want %d", len(got), len(tt.outcomes))
			}
			for i := range got {
				if got[i] != tt.outcomes[i] {
					t.Errorf("event %d outcome = %s, want %s", i, got[i], tt.outcomes[i])
				}
			}
			if c.Status() != tt.status {
				t.Errorf("Status() = %+v, want %+v", c.Status(), tt.status)
			}
		})
	}
}

func TestController_ActuatorFailure(t *testing.T) {
	act := &fakeActuator{fail: map[string]error{ActionMute: errors.New("no call window")}}
	rec := &memRecorder{}
	c := NewController("call-1", act, rec, quietLogger)

	outcome, err := c.Handle(context.Background(), gesture.Mute)
	if outcome != store.OutcomeFailed || err == nil {
		t.Fatalf("Handle() = %s, %v; want failed with error", outcome, err)
	}
	if c.Status().Muted {
		t.Error("a failed mute should leave the call unmuted")
	}
	if rec.events[0].Error != "no call window" {
		t.Errorf("recorded error = %q", rec.events[0].Error)
	}

	t.Run("retry after failure", func(t *testing.T) {
		act.mu.Lock()
		act.fail = nil
		act.mu.Unlock()

		if outcome, _ := c.Handle(context.Background(), gesture.Mute); outcome != store.OutcomeApplied {
			t.Errorf("retry outcome = %s, want applied", outcome)
		}
	})
}

func TestController_DisabledBinding(t *testing.T) {
	act := &fakeActuator{fail: map[string]error{ActionHangup: ErrBindingDisabled}}
	c := NewController("call-1", act, nil, quietLogger)

	outcome, err := c.Handle(context.Background(), gesture.EndCall)
	if outcome != store.OutcomeIgnored || err != nil {
		t.Errorf("Handle() = %s, %v; want ignored", outcome, err)
	}
	if c.Status().Ended {
		t.Error("call should not end through a disabled binding")
	}
}

func TestController_IgnoresNone(t *testing.T) {
	act := &fakeActuator{}
	rec := &memRecorder{}
	c := NewController("call-1", act, rec, quietLogger)

	if outcome, _ := c.Handle(context.Background(), gesture.None); outcome != store.OutcomeIgnored {
		t.Errorf("Handle(None) = %s, want ignored", outcome)
	}
	if len(act.Calls()) != 0 || len(rec.outcomes()) != 0 {
		t.Error("None should neither actuate nor record")
	}
}

func TestController_Run(t *testing.T) {
	act := &fakeActuator{}
	c := NewController("call-1", act, nil, quietLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	c.HandleGesture(gesture.CameraOff)
	c.HandleGesture(gesture.Mute)
	c.HandleGesture(gesture.EndCall)

	select {
	case <-c.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("call did not end")
	}

	want := []string{ActionCameraOff, ActionMute, ActionHangup}
	if got := act.Calls(); !equalStrings(got, want) {
		t.Errorf("actuator calls = %v, want %v", got, want)
	}

	cancel()
	<-done
}

func TestController_HandleGestureDropsWhenFull(t *testing.T) {
	c := NewController("call-1", &fakeActuator{}, nil, quietLogger)

	for i := 0; i < QueueSize+5; i++ {
		c.HandleGesture(gesture.Mute)
	}
	if got := len(c.queue); got != QueueSize {
		t.Errorf("queue length = %d, want %d", got, QueueSize)
	}
}

func TestController_SetStatus(t *testing.T) {
	act := &fakeActuator{}
	c := NewController("call-1", act, nil, quietLogger)
	c.SetStatus(Status{Muted: true, CameraOff: true})

	if outcome, _ := c.Handle(context.Background(), gesture.Mute); outcome != store.OutcomeNoop {
		t.Errorf("Mute on a muted call = %s, want noop", outcome)
	}
	if outcome, _ := c.Handle(context.Background(), gesture.CameraOn); outcome != store.OutcomeApplied {
		t.Errorf("CameraOn with camera off = %s, want applied", outcome)
	}

	c.SetStatus(Status{Ended: true})
	select {
	case <-c.Ended():
	default:
		t.Error("Ended() should be closed after SetStatus(Ended)")
	}
	c.SetStatus(Status{})
	if !c.Status().Ended {
		t.Error("an ended call cannot be revived")
	}
}

func TestController_PersistsHistory(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error: %v", err)
	}
	defer s.Close()

	if err := s.Sessions().Create(&store.Session{ID: "call-1", StartedAt: time.Now()}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	c := NewController("call-1", &fakeActuator{}, s.Events(), quietLogger)
	for _, g := range []gesture.Gesture{gesture.CameraOn, gesture.EndCall, gesture.Mute} {
		c.Handle(context.Background(), g)
	}

	events, err := s.Events().ListBySession("call-1")
	if err != nil {
		t.Fatalf("ListBySession() error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}

	want := []struct {
		gesture string
		action  string
		outcome store.Outcome
	}{
		{"camera_on", ActionCameraOn, store.OutcomeNoop},
		{"end_call", ActionHangup, store.OutcomeApplied},
		{"mute", ActionMute, store.OutcomeIgnored},
	}
	for i, w := range want {
		e := events[i]
		if e.Gesture != w.gesture || e.Action != w.action || e.Outcome != w.outcome {
			t.Errorf("event %d = %s/%s/%s, want %s/%s/%s", i, e.Gesture, e.Action, e.Outcome, w.gesture, w.action, w.outcome)
		}
	}
}
