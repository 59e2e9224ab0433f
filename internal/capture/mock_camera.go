package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-recorded frames for testing.
//
// With no frames it returns (nil, nil) from ReadFrame, which lets pipeline
// tests drive a landmark mock without allocating OpenCV matrices.
type MockCamera struct {
	frames    []*gocv.Mat
	index     int
	loop      bool
	mu        sync.Mutex
	running   bool
	holdReady bool
	state     *readiness
}

func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		state:  newReadiness(),
	}
}

// HoldReady makes Open stop at HaveMetadata. The test then advances the
// state with SetReadyState.
func (c *MockCamera) HoldReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdReady = true
}

// SetReadyState moves the mock to s. Reaching HaveEnoughData closes the
// Ready channel.
func (c *MockCamera) SetReadyState(s ReadyState) {
	c.state.set(s)
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	if c.holdReady {
		c.state.set(HaveMetadata)
	} else {
		c.state.set(HaveEnoughData)
	}
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.state.reset()
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, nil
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return nil, ErrFrameUnavailable
		}
	}

	// Clone the frame so the original isn't modified
	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {}
func (c *MockCamera) FPS() int       { return DefaultFPS }
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *MockCamera) ReadyState() ReadyState {
	return c.state.get()
}

func (c *MockCamera) Ready() <-chan struct{} {
	return c.state.channel()
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}
