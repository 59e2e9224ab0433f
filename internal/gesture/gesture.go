// Package gesture turns per-frame hand landmarks into discrete call-control
// gestures. Classify is a pure, frame-local rule set; Debouncer turns the
// resulting per-frame candidates into edge-triggered events with a cooldown.
package gesture

import "fmt"

// Gesture is a named control signal derived from a hand pose.
type Gesture string

const (
	// None means no gesture was recognized in a frame.
	None Gesture = ""

	Mute      Gesture = "mute"
	Unmute    Gesture = "unmute"
	CameraOff Gesture = "camera_off"
	CameraOn  Gesture = "camera_on"
	EndCall   Gesture = "end_call"
)

// All lists every control gesture in classification priority order.
var All = []Gesture{EndCall, CameraOn, CameraOff, Mute, Unmute}

// Valid reports whether g is one of the control gestures. None is not valid.
func (g Gesture) Valid() bool {
	switch g {
	case Mute, Unmute, CameraOff, CameraOn, EndCall:
		return true
	}
	return false
}

func (g Gesture) String() string {
	if g == None {
		return "none"
	}
	return string(g)
}

// Parse converts a label such as "camera_on" into a Gesture. "none" and the
// empty string parse to None.
func Parse(s string) (Gesture, error) {
	if s == "" || s == "none" {
		return None, nil
	}
	g := Gesture(s)
	if !g.Valid() {
		return None, fmt.Errorf("unknown gesture %q", s)
	}
	return g, nil
}
