package capture

import (
	"errors"
	"testing"
	"time"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestReadiness_Ladder(t *testing.T) {
	tests := []struct {
		name      string
		steps     []ReadyState
		wantState ReadyState
		wantReady bool
	}{
		{"nothing yet", nil, HaveNothing, false},
		{"metadata only", []ReadyState{HaveMetadata}, HaveMetadata, false},
		{"current frame is not enough", []ReadyState{HaveMetadata, HaveCurrentData}, HaveCurrentData, false},
		{"future data is not enough", []ReadyState{HaveCurrentData, HaveFutureData}, HaveFutureData, false},
		{"enough data", []ReadyState{HaveMetadata, HaveCurrentData, HaveEnoughData}, HaveEnoughData, true},
		{"jump straight to enough", []ReadyState{HaveEnoughData}, HaveEnoughData, true},
		{"never moves backwards", []ReadyState{HaveEnoughData, HaveMetadata}, HaveEnoughData, true},
		{"repeated enough does not panic", []ReadyState{HaveEnoughData, HaveEnoughData}, HaveEnoughData, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReadiness()
			for _, s := range tt.steps {
				r.set(s)
			}

			if got := r.get(); got != tt.wantState {
				t.Errorf("state = %v, want %v", got, tt.wantState)
			}
			if got := isClosed(r.channel()); got != tt.wantReady {
				t.Errorf("ready closed = %v, want %v", got, tt.wantReady)
			}
		})
	}
}

func TestReadiness_Reset(t *testing.T) {
	r := newReadiness()
	r.set(HaveEnoughData)
	fired := r.channel()

	r.reset()

	if got := r.get(); got != HaveNothing {
		t.Errorf("state after reset = %v, want %v", got, HaveNothing)
	}
	if !isClosed(fired) {
		t.Error("channel from the previous open should stay closed")
	}
	if isClosed(r.channel()) {
		t.Error("reset should arm a fresh channel")
	}

	r.set(HaveEnoughData)
	if !isClosed(r.channel()) {
		t.Error("fresh channel should close on the next HaveEnoughData")
	}
}

func TestReadyState_String(t *testing.T) {
	tests := []struct {
		state ReadyState
		want  string
	}{
		{HaveNothing, "have_nothing"},
		{HaveMetadata, "have_metadata"},
		{HaveCurrentData, "have_current_data"},
		{HaveFutureData, "have_future_data"},
		{HaveEnoughData, "have_enough_data"},
		{ReadyState(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ReadyState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestNewCamera_Closed(t *testing.T) {
	cam := NewCamera(0)

	if cam.IsOpen() {
		t.Error("camera should not be open before Open()")
	}
	if got := cam.ReadyState(); got != HaveNothing {
		t.Errorf("ReadyState() = %v, want %v", got, HaveNothing)
	}
	if isClosed(cam.Ready()) {
		t.Error("Ready() should not fire before Open()")
	}
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want %v", err, ErrCameraNotOpen)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on an unopened camera = %v, want nil", err)
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(0)
	if got := cam.FPS(); got != DefaultFPS {
		t.Fatalf("FPS() = %d, want %d", got, DefaultFPS)
	}

	cam.SetFPS(15)
	cam.SetFPS(0)
	cam.SetFPS(-5)

	if got := cam.FPS(); got != 15 {
		t.Errorf("FPS() = %d, want 15 (non-positive values ignored)", got)
	}
}

func TestCamera_WarmUp_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(0)
	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	select {
	case <-cam.Ready():
	case <-time.After(5 * time.Second):
		cam.Close()
		t.Fatalf("camera did not warm up, state %v", cam.ReadyState())
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() after ready: %v", err)
	} else {
		if mat.Empty() {
			t.Error("ReadFrame() returned empty mat")
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if got := cam.ReadyState(); got != HaveNothing {
		t.Errorf("ReadyState() after Close = %v, want %v", got, HaveNothing)
	}
}
