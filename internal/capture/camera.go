// Package capture provides the video frame provider for the gesture
// pipeline: a GoCV (OpenCV) camera that reports how ready it is to serve
// frames, and a mock for tests.
package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480

	// WarmupFrames is the number of good frames a freshly opened device must
	// deliver before it reports HaveEnoughData.
	WarmupFrames = 3

	maxWarmupReads = 100
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrFrameUnavailable is returned when the device produced no usable frame.
	ErrFrameUnavailable = errors.New("no frame available")
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool

	// ReadyState reports how much data the device has delivered since Open.
	ReadyState() ReadyState

	// Ready returns a channel that is closed once ReadyState reaches
	// HaveEnoughData. A new channel is armed on every Close.
	Ready() <-chan struct{}
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int

	state    *readiness
	stop     chan struct{}
	warmDone chan struct{}
}

// NewCamera creates a new Camera with the given device ID.
func NewCamera(deviceID int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		fps:      DefaultFPS,
		state:    newReadiness(),
	}
}

// Open opens the camera and starts warming it up in the background.
// It sets the resolution to 640x480 for performance.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true
	c.stop = make(chan struct{})
	c.warmDone = make(chan struct{})
	c.state.set(HaveMetadata)

	go c.warmUp(c.stop, c.warmDone)

	return nil
}

// warmUp discards the first frames of a device, which are often black or
// still auto-exposing, and advances the ready state as good frames arrive.
func (c *cameraImpl) warmUp(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	good := 0
	for reads := 0; good < WarmupFrames && reads < maxWarmupReads; reads++ {
		select {
		case <-stop:
			return
		default:
		}

		if !c.grab() {
			continue
		}
		good++
		switch good {
		case 1:
			c.state.set(HaveCurrentData)
		case WarmupFrames - 1:
			c.state.set(HaveFutureData)
		}
	}

	if good >= WarmupFrames {
		c.state.set(HaveEnoughData)
	}
}

func (c *cameraImpl) grab() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return false
	}

	mat := gocv.NewMat()
	defer mat.Close()

	return c.capture.Read(&mat) && !mat.Empty()
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	if !c.running || c.capture == nil {
		c.running = false
		c.mu.Unlock()
		return nil
	}

	c.running = false
	close(c.stop)
	done := c.warmDone
	c.mu.Unlock()

	<-done

	c.mu.Lock()
	err := c.capture.Close()
	c.capture = nil
	c.mu.Unlock()

	c.state.reset()

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrFrameUnavailable
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

func (c *cameraImpl) ReadyState() ReadyState {
	return c.state.get()
}

func (c *cameraImpl) Ready() <-chan struct{} {
	return c.state.channel()
}
