package detector

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrNotReady is returned by Detect when the source has not finished
// initializing.
var ErrNotReady = errors.New("landmark source not ready")

// Detector defines the interface for hand landmark sources.
type Detector interface {
	// Init loads the underlying model. It blocks until the source is ready,
	// fails, or ctx is done. A failed Init leaves the source unusable.
	Init(ctx context.Context) error

	// Ready reports whether Init has completed successfully.
	Ready() bool

	// Detect analyzes a video frame captured at ts and returns the detected
	// hands. Returns an empty result if no hands are detected.
	Detect(frame *gocv.Mat, ts time.Time) (Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the lookup of mediapipe_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter lookup.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
