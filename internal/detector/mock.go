package detector

import (
	"context"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control initialization and detection results.
type MockDetector struct {
	mu       sync.Mutex
	hands    Result
	sequence []Result
	err      error
	initErr  error
	initGate chan struct{}
	ready    bool
	calls    int
	inits    int
	closed   bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by every Detect call once
// any queued sequence is exhausted.
func (m *MockDetector) SetHands(hands Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetSequence queues one result per Detect call, in order.
func (m *MockDetector) SetSequence(results ...Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = append([]Result(nil), results...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetInitError makes the next Init calls fail with err.
func (m *MockDetector) SetInitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initErr = err
}

// HoldInit makes Init block until ReleaseInit is called or its context ends.
func (m *MockDetector) HoldInit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initGate = make(chan struct{})
}

// ReleaseInit unblocks an Init held by HoldInit.
func (m *MockDetector) ReleaseInit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initGate != nil {
		close(m.initGate)
		m.initGate = nil
	}
}

// Init marks the detector ready unless an init error is configured.
func (m *MockDetector) Init(ctx context.Context) error {
	m.mu.Lock()
	m.inits++
	gate := m.initGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initErr != nil {
		return m.initErr
	}
	m.ready = true
	m.closed = false
	return nil
}

// Ready reports whether Init has succeeded since the last Close.
func (m *MockDetector) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Detect returns the next queued result, the pre-configured hands, or the
// configured error. The frame is ignored and may be nil.
func (m *MockDetector) Detect(frame *gocv.Mat, ts time.Time) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close marks the detector as not ready.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	m.closed = true
	return nil
}

// Calls returns the number of Detect invocations.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Inits returns the number of Init invocations.
func (m *MockDetector) Inits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inits
}

// Closed reports whether Close was called after the last successful Init.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ThumbsUpLandmarks returns a preset HandLandmarks representing a thumbs up gesture.
// The thumb is extended upward while other fingers are curled.
func ThumbsUpLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended upward (pointing up, Y decreases going up)
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	curlFingers(&landmarks, 0.70)

	return landmarks
}

// ThumbsDownLandmarks returns a hand with the thumb pointing down below the
// wrist and the other fingers curled above it.
func ThumbsDownLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.93,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.30, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.36, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.48, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.62, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: 0.58, Y: 0.75, Z: 0.0}

	curlFingers(&landmarks, 0.42)

	return landmarks
}

// IndexUpLandmarks returns a hand with only the index finger raised.
func IndexUpLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.94,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb tucked across the palm
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.71, Z: -0.01}
	landmarks.Points[ThumbIP] = Point3D{X: 0.54, Y: 0.67, Z: -0.02}
	landmarks.Points[ThumbTip] = Point3D{X: 0.51, Y: 0.65, Z: -0.03}

	curlFingers(&landmarks, 0.70)

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.56, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.56, Y: 0.42, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.56, Y: 0.30, Z: 0.0}

	return landmarks
}

// PeaceLandmarks returns a hand with index and middle fingers raised.
func PeaceLandmarks() HandLandmarks {
	landmarks := IndexUpLandmarks()
	landmarks.Score = 0.92

	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.32, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.49, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.48, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.47, Y: 0.30, Z: 0.0}

	return landmarks
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}

// FistLandmarks returns a closed fist that matches no control gesture.
func FistLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.9,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb wrapped over the curled fingers
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.77, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.74, Z: -0.01}
	landmarks.Points[ThumbIP] = Point3D{X: 0.55, Y: 0.73, Z: -0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.52, Y: 0.73, Z: -0.04}

	curlFingers(&landmarks, 0.70)

	return landmarks
}

// CrossedWristsLandmarks returns two hands whose wrists nearly touch, as in
// the crossed-wrists end call gesture. The first hand is a thumbs up so that
// single-hand rules would otherwise match.
func CrossedWristsLandmarks() Result {
	left := ThumbsUpLandmarks()
	left.Handedness = "Left"
	shiftHand(&left, 0.02, -0.08)

	right := OpenPalmLandmarks()
	shiftHand(&right, 0.05, -0.06)

	return Result{left, right}
}

// curlFingers places the four fingers in a curled pose with knuckles at
// roughly knuckleY.
func curlFingers(h *HandLandmarks, knuckleY float64) {
	fingers := [][4]int{
		{IndexMCP, IndexPIP, IndexDIP, IndexTip},
		{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip},
		{RingMCP, RingPIP, RingDIP, RingTip},
		{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip},
	}

	for i, f := range fingers {
		x := 0.55 - float64(i)*0.05
		y := knuckleY + float64(i%2)*0.02
		h.Points[f[0]] = Point3D{X: x, Y: y, Z: -0.02}
		h.Points[f[1]] = Point3D{X: x, Y: y - 0.02, Z: -0.05}
		h.Points[f[2]] = Point3D{X: x - 0.03, Y: y, Z: -0.04}
		h.Points[f[3]] = Point3D{X: x - 0.05, Y: y + 0.02, Z: -0.02}
	}
}

func shiftHand(h *HandLandmarks, dx, dy float64) {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
	}
}
