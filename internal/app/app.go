// Package app wires the camera, the landmark source, the gesture scheduler
// and a call session together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/handsignal/internal/callsession"
	"github.com/ayusman/handsignal/internal/capture"
	"github.com/ayusman/handsignal/internal/detector"
	"github.com/ayusman/handsignal/internal/metrics"
	"github.com/ayusman/handsignal/internal/overlay"
	"github.com/ayusman/handsignal/internal/plugin"
	"github.com/ayusman/handsignal/internal/scheduler"
	"github.com/ayusman/handsignal/internal/store"
	"github.com/ayusman/handsignal/internal/timeutil"
)

// Config holds configuration options for the application.
type Config struct {
	Store         *store.Store // nil disables history
	PluginDir     string
	PluginTimeout time.Duration
	CameraID      int

	// Camera and Detector replace the device camera and the MediaPipe
	// subprocess when set.
	Camera         capture.Camera
	Detector       detector.Detector
	DetectorConfig detector.Config

	Clock            timeutil.Clock
	OverlayInterval  time.Duration
	SchedulerOptions []scheduler.Option
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

// App is the main application that turns camera frames into call actions.
type App struct {
	config    Config
	logger    *slog.Logger
	clock     timeutil.Clock
	camera    capture.Camera
	detector  detector.Detector
	scheduler *scheduler.Scheduler
	bridge    *overlay.Bridge
	pluginMgr *plugin.Manager
	pluginExe *plugin.Executor

	mu      sync.Mutex
	enabled bool
	session *session
}

// session is one call, from Start until hang-up or Stop.
type session struct {
	ctrl   *callsession.Controller
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{} // closed when the controller worker exits
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	a := &App{
		config:    config,
		logger:    logger,
		clock:     clock,
		camera:    config.Camera,
		detector:  config.Detector,
		pluginMgr: plugin.NewManager(config.PluginDir, logger),
		pluginExe: plugin.NewExecutor(config.PluginTimeout),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraID)
	}

	// Try MediaPipe first, fall back to mock detector
	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(config.DetectorConfig); err == nil {
			a.detector = mp
			logger.Info("using MediaPipe hand detection")
		} else {
			logger.Warn("MediaPipe not available, using mock detector", "error", err)
			a.detector = detector.NewMockDetector()
		}
	}

	opts := []scheduler.Option{
		scheduler.WithClock(clock),
		scheduler.WithLogger(logger),
	}
	if config.Metrics != nil {
		opts = append(opts, scheduler.WithMetrics(config.Metrics))
	}
	a.scheduler = scheduler.New(a.detector, append(opts, config.SchedulerOptions...)...)
	a.bridge = overlay.New(a.scheduler, config.OverlayInterval, clock)

	return a
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Start opens the camera, begins a call session and starts gesture
// detection. Starting while a session is live only re-enables detection.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session == nil {
		if err := a.beginSession(ctx); err != nil {
			return err
		}
	}
	return a.enableLocked()
}

func (a *App) beginSession(ctx context.Context) error {
	if !a.camera.IsOpen() {
		if err := a.camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
	}

	id := uuid.New().String()
	if a.config.Store != nil {
		if err := a.config.Store.Sessions().Create(&store.Session{ID: id, StartedAt: a.clock.Now()}); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}

	ctrl := callsession.NewController(id, a.actuator(id), a.recorder(), a.logger)
	sessCtx, cancel := context.WithCancel(ctx)
	s := &session{ctrl: ctrl, ctx: sessCtx, cancel: cancel, done: make(chan struct{})}
	a.session = s

	go func() {
		defer close(s.done)
		ctrl.Run(sessCtx)
	}()
	go a.watchHangup(s)

	a.logger.Info("call session started", "session", id)
	return nil
}

func (a *App) actuator(sessionID string) callsession.Actuator {
	if len(a.pluginMgr.List()) == 0 {
		a.logger.Warn("no plugins installed, call actions will only be logged", "dir", a.pluginMgr.PluginDir())
		return callsession.LogActuator{Logger: a.logger}
	}

	var bindings callsession.BindingLookup
	if a.config.Store != nil {
		bindings = a.config.Store.Bindings()
	}
	return callsession.NewPluginActuator(a.pluginMgr, a.pluginExe, bindings, sessionID, a.logger)
}

func (a *App) recorder() callsession.EventRecorder {
	var rec callsession.EventRecorder
	if a.config.Store != nil {
		rec = a.config.Store.Events()
	}
	if a.config.Metrics != nil {
		rec = a.config.Metrics.Events(rec)
	}
	return rec
}

// watchHangup ends the session once the call is hung up.
func (a *App) watchHangup(s *session) {
	select {
	case <-s.ctrl.Ended():
	case <-s.ctx.Done():
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == s {
		a.endSessionLocked()
	}
}

func (a *App) enableLocked() error {
	err := a.scheduler.Start(a.session.ctx, a.camera, a.session.ctrl.HandleGesture)
	if err != nil {
		return fmt.Errorf("start gesture detection: %w", err)
	}
	a.enabled = true
	return nil
}

// endSessionLocked stops detection, drains the controller and closes the
// session record.
func (a *App) endSessionLocked() {
	s := a.session
	a.scheduler.Stop()
	a.enabled = false
	s.cancel()
	<-s.done
	a.session = nil

	if a.config.Store != nil {
		if err := a.config.Store.Sessions().End(s.ctrl.SessionID(), a.clock.Now()); err != nil {
			a.logger.Warn("failed to close session record", "session", s.ctrl.SessionID(), "error", err)
		}
	}
	a.logger.Info("call session ended", "session", s.ctrl.SessionID())
}

// SetEnabled turns gesture control on or off. Disabling stops the scheduler
// but keeps the call session. Enabling with no live session starts a new one.
func (a *App) SetEnabled(ctx context.Context, enabled bool) error {
	if enabled {
		return a.Start(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.scheduler.Stop()
	a.enabled = false
	return nil
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Stop ends the session and releases the camera.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		a.endSessionLocked()
	} else {
		a.scheduler.Stop()
	}

	if a.camera.IsOpen() {
		if err := a.camera.Close(); err != nil {
			a.logger.Warn("error closing camera", "error", err)
		}
	}
}

// Err reports why gesture control is unavailable, if it failed to start.
func (a *App) Err() error {
	return a.scheduler.Err()
}

// Session returns the live call session, or nil.
func (a *App) Session() *callsession.Controller {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	return a.session.ctrl
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Scheduler returns the gesture scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Bridge returns the overlay bridge over the scheduler's state.
func (a *App) Bridge() *overlay.Bridge {
	return a.bridge
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}
