package scheduler

import (
	"context"
	"time"

	"github.com/ayusman/handsignal/internal/capture"
	"github.com/ayusman/handsignal/internal/gesture"
)

// run is the single logical thread of a started scheduler. It initializes the
// landmark source, waits for the video source, and then drives one tick per
// frame interval until ctx is done.
func (s *Scheduler) run(ctx context.Context, video VideoSource, onGesture func(gesture.Gesture), done chan struct{}) {
	defer func() {
		s.debouncer.Reset()
		s.publish(State{UpdatedAt: s.clock.Now()})

		if err := s.det.Close(); err != nil {
			s.logger.Warn("closing landmark source", "error", err)
		}
		if s.Phase() != PhaseFailed {
			s.setPhase(PhaseStopped)
		}
		close(done)
	}()

	if err := s.initialize(ctx); err != nil {
		if ctx.Err() == nil {
			s.fail(err)
		}
		return
	}

	s.setPhase(PhaseReady)
	s.publish(State{Ready: true, UpdatedAt: s.clock.Now()})

	if state := video.ReadyState(); state < capture.HaveEnoughData {
		s.logger.Debug("video source not ready, deferring detection", "ready_state", state.String())
		select {
		case <-video.Ready():
		case <-ctx.Done():
			return
		}
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.setPhase(PhaseRunning)
	s.publish(State{Ready: true, Running: true, UpdatedAt: s.clock.Now()})
	s.logger.Info("gesture detection running", "frame_interval", s.interval, "cooldown", s.debouncer.Cooldown())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			// Stop may have raced the tick.
			if ctx.Err() != nil {
				return
			}
			s.tick(video, onGesture, now)
			if s.stopRequested.Load() {
				return
			}
		}
	}
}

func (s *Scheduler) initialize(ctx context.Context) error {
	initCtx := ctx
	if s.initTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, s.initTimeout)
		defer cancel()
	}

	start := s.clock.Now()
	s.logger.Info("initializing landmark source")

	if err := s.det.Init(initCtx); err != nil {
		return err
	}

	s.logger.Info("landmark source ready", "took", s.clock.Since(start))
	return nil
}

// tick runs one Detect → Classify → Debounce pass. Per-frame failures are
// logged and skipped; they never stop the loop.
func (s *Scheduler) tick(video VideoSource, onGesture func(gesture.Gesture), now time.Time) {
	start := s.clock.Now()
	s.debouncer.Expire()

	if !s.det.Ready() {
		s.metrics.FrameSkipped()
		return
	}

	frame, err := video.ReadFrame()
	if err != nil {
		s.logger.Debug("frame unavailable", "error", err)
		s.metrics.FrameSkipped()
		return
	}

	result, err := s.det.Detect(frame, now)
	if frame != nil {
		frame.Close()
	}
	if err != nil {
		s.logger.Debug("landmark detection failed", "error", err)
		s.metrics.DetectError()
		return
	}

	candidate, confidence := s.classifier.Classify(result)
	emitted, fire := s.debouncer.OnFrame(candidate)

	st := State{
		Ready:      true,
		Running:    true,
		LastResult: result,
		UpdatedAt:  now,
	}
	if candidate != gesture.None {
		st.ActiveGesture = candidate
		st.Confidence = &confidence
	}
	s.publish(st)

	if fire {
		s.logger.Info("gesture detected", "gesture", emitted.String(), "confidence", confidence)
		s.metrics.GestureEmitted(emitted)
		s.deliver(onGesture, emitted)
	}

	s.metrics.FrameProcessed(s.clock.Since(start))
}

func (s *Scheduler) deliver(onGesture func(gesture.Gesture), g gesture.Gesture) {
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)
	onGesture(g)
}
