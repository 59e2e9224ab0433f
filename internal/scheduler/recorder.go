package scheduler

import (
	"time"

	"github.com/ayusman/handsignal/internal/gesture"
)

// Recorder receives per-tick loop outcomes. Exactly one of FrameProcessed,
// FrameSkipped or DetectError is reported per tick.
type Recorder interface {
	FrameProcessed(d time.Duration)
	FrameSkipped()
	DetectError()
	GestureEmitted(g gesture.Gesture)
}

type nopRecorder struct{}

func (nopRecorder) FrameProcessed(time.Duration)   {}
func (nopRecorder) FrameSkipped()                  {}
func (nopRecorder) DetectError()                   {}
func (nopRecorder) GestureEmitted(gesture.Gesture) {}
