package gesture

import "github.com/ayusman/handsignal/internal/detector"

// DefaultEndCallDistance is the wrist-to-wrist distance, in normalized
// units, under which two hands count as crossed.
const DefaultEndCallDistance = 0.15

// Classifier maps one frame's detection result to at most one gesture.
// The zero value uses DefaultEndCallDistance.
type Classifier struct {
	EndCallDistance float64
}

// Classify runs the default classifier over result.
func Classify(result detector.Result) Gesture {
	g, _ := Classifier{}.Classify(result)
	return g
}

// Classify returns the first matching gesture and its confidence. Rules are
// checked in priority order: crossed wrists over two hands, then thumbs up,
// thumbs down, index only and index+middle against the first hand.
//
// Confidence is 1.0 for any match and 0 for None.
func (c Classifier) Classify(result detector.Result) (Gesture, float64) {
	if len(result) == 0 {
		return None, 0
	}

	threshold := c.EndCallDistance
	if threshold <= 0 {
		threshold = DefaultEndCallDistance
	}

	if len(result) >= 2 {
		d := detector.Distance(result[0].Points[detector.Wrist], result[1].Points[detector.Wrist])
		if d < threshold {
			return EndCall, 1.0
		}
	}

	if g := classifyHand(&result[0]); g != None {
		return g, 1.0
	}
	return None, 0
}

// classifyHand applies the single-hand rules. Y grows downward, so a raised
// finger has a smaller Y.
func classifyHand(h *detector.HandLandmarks) Gesture {
	p := &h.Points

	wrist := p[detector.Wrist].Y
	thumb := p[detector.ThumbTip].Y
	index := p[detector.IndexTip].Y
	middle := p[detector.MiddleTip].Y
	ring := p[detector.RingTip].Y
	pinky := p[detector.PinkyTip].Y
	indexBase := p[detector.IndexMCP].Y
	middleBase := p[detector.MiddleMCP].Y

	switch {
	case thumb < wrist*0.9 && index > thumb && middle > thumb:
		return CameraOn
	case thumb > wrist*1.1 && index < thumb:
		return CameraOff
	case index < middle*0.9 && index < ring && index < pinky && index < thumb:
		return Mute
	case index < indexBase*1.1 && middle < middleBase*1.1 && ring > middle && pinky > middle:
		return Unmute
	}
	return None
}
