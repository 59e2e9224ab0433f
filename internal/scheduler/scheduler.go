// Package scheduler owns the lifecycle of the gesture detection loop. It
// initializes the landmark source, waits until the video source has enough
// data, and then runs one Detect → Classify → Debounce pass per frame tick on
// a single goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/handsignal/internal/capture"
	"github.com/ayusman/handsignal/internal/detector"
	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/timeutil"
)

// DefaultFrameInterval paces the loop at roughly one detection per display
// refresh.
const DefaultFrameInterval = 33 * time.Millisecond

var (
	// ErrInitFailed wraps the landmark source's initialization error. A
	// scheduler that reports it cannot be started again.
	ErrInitFailed = errors.New("landmark source initialization failed")

	// ErrSourceBound is returned when Start is called with a different video
	// source than the one the scheduler is bound to.
	ErrSourceBound = errors.New("scheduler is bound to another video source")

	// ErrInCallback is returned by Start when it is called from onGesture
	// after that callback has already stopped the scheduler.
	ErrInCallback = errors.New("scheduler cannot restart from its own gesture callback")
)

// VideoSource is the read-only view of a video frame provider. Implementations
// must be comparable, which pointer receivers such as capture.Camera are.
type VideoSource interface {
	ReadyState() capture.ReadyState
	Ready() <-chan struct{}
	ReadFrame() (*gocv.Mat, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for frame ticks and cooldowns.
func WithClock(c timeutil.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithFrameInterval sets the time between loop ticks.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCooldown sets the debounce cooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Scheduler) { s.cooldown = d }
}

// WithClassifier replaces the default classifier.
func WithClassifier(c gesture.Classifier) Option {
	return func(s *Scheduler) { s.classifier = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the recorder that receives per-tick outcomes.
func WithMetrics(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithInitTimeout bounds landmark source initialization. Zero waits forever.
func WithInitTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.initTimeout = d }
}

// Scheduler runs the detection loop for one landmark source bound to one
// video source.
type Scheduler struct {
	det         detector.Detector
	clock       timeutil.Clock
	interval    time.Duration
	cooldown    time.Duration
	initTimeout time.Duration
	classifier  gesture.Classifier
	logger      *slog.Logger
	metrics     Recorder

	// debouncer is touched only by the loop goroutine, and by Start before
	// that goroutine exists.
	debouncer *gesture.Debouncer

	mu     sync.Mutex // serializes Start and Stop
	video  VideoSource
	cancel context.CancelFunc
	done   chan struct{}

	phase atomic.Int32
	state atomic.Pointer[State]

	// inCallback is set while the loop goroutine runs onGesture.
	// stopRequested asks that loop to exit once the callback returns.
	inCallback    atomic.Bool
	stopRequested atomic.Bool

	errMu sync.Mutex
	err   error
}

// New creates a Scheduler that exclusively owns det. The scheduler closes det
// whenever its loop exits.
func New(det detector.Detector, opts ...Option) *Scheduler {
	s := &Scheduler{
		det:      det,
		clock:    timeutil.RealClock{},
		interval: DefaultFrameInterval,
		cooldown: gesture.DefaultCooldown,
		logger:   slog.Default(),
		metrics:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.debouncer = gesture.NewDebouncer(s.cooldown, s.clock)
	s.state.Store(&State{})

	return s
}

// Start binds video and begins initialization in the background. It returns
// immediately. Calling Start while the scheduler is initializing or running
// is a no-op. The loop stops when Stop is called or ctx is done.
//
// onGesture is called synchronously on the loop goroutine, once per
// debounced event and in frame order. It may call Stop. A Start from inside
// onGesture is a no-op, or ErrInCallback once the callback has stopped the
// scheduler.
func (s *Scheduler) Start(ctx context.Context, video VideoSource, onGesture func(gesture.Gesture)) error {
	if video == nil {
		return errors.New("nil video source")
	}

	// The loop goroutine is busy in onGesture, so s.mu may be held by a Stop
	// waiting for it.
	if s.inCallback.Load() {
		if s.stopRequested.Load() {
			return ErrInCallback
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.video != nil && s.video != video {
		return ErrSourceBound
	}

	// A Stop from onGesture leaves its loop to wind down on its own.
	if s.stopRequested.Load() && s.done != nil {
		<-s.done
	}

	switch s.Phase() {
	case PhaseFailed:
		return s.Err()
	case PhaseInitializing, PhaseReady, PhaseRunning:
		return nil
	}

	// A loop that ended on its own context may still be releasing the
	// detector.
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	if onGesture == nil {
		onGesture = func(gesture.Gesture) {}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.video = video
	s.cancel = cancel
	s.done = make(chan struct{})
	s.debouncer.Reset()
	s.stopRequested.Store(false)
	s.setPhase(PhaseInitializing)

	go s.run(runCtx, video, onGesture, s.done)

	return nil
}

// Stop cancels the loop and waits for it to exit. Once Stop returns, no
// further callbacks fire and the published state is cleared. Stopping a
// stopped scheduler is a no-op.
//
// While onGesture is running, Stop only marks the loop to exit after the
// callback returns and clears the published state. It does not wait, since
// the caller may be the loop goroutine itself. Done reports when the loop
// has released the landmark source.
func (s *Scheduler) Stop() {
	if s.inCallback.Load() {
		if !s.stopRequested.Swap(true) {
			s.publish(State{UpdatedAt: s.clock.Now()})
			s.logger.Info("gesture scheduler stopping from gesture callback")
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil

	s.logger.Info("gesture scheduler stopped")
}

// Snapshot returns a copy of the current detector state.
func (s *Scheduler) Snapshot() State {
	return s.state.Load().Clone()
}

// Phase returns the current lifecycle phase.
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

// Err returns the initialization error, if the scheduler failed.
func (s *Scheduler) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Done returns a channel closed when the current loop exits. It is closed
// already if the scheduler was never started.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

func (s *Scheduler) setPhase(p Phase) {
	s.phase.Store(int32(p))
}

func (s *Scheduler) publish(st State) {
	s.state.Store(&st)
}

func (s *Scheduler) fail(err error) {
	s.errMu.Lock()
	s.err = fmt.Errorf("%w: %w", ErrInitFailed, err)
	s.errMu.Unlock()

	s.setPhase(PhaseFailed)
	s.logger.Error("gesture control unavailable", "error", err)
}
