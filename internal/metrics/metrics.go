// Package metrics provides Prometheus collectors for the gesture pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/store"
)

// Metrics holds the pipeline collectors. It implements the scheduler's
// Recorder, so the loop reports into it directly.
type Metrics struct {
	registry *prometheus.Registry

	framesTotal    *prometheus.CounterVec
	frameDuration  prometheus.Histogram
	detectErrors   prometheus.Counter
	gesturesTotal  *prometheus.CounterVec
	actionsTotal   *prometheus.CounterVec
	recordFailures prometheus.Counter
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handsignal_frames_total",
			Help: "Total number of loop ticks by result",
		},
		[]string{"result"}, // processed, skipped
	)

	m.frameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "handsignal_frame_duration_seconds",
			Help:    "Time spent detecting and classifying one frame",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		},
	)

	m.detectErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "handsignal_detect_errors_total",
			Help: "Total number of frames the landmark source failed on",
		},
	)

	m.gesturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handsignal_gestures_total",
			Help: "Total number of debounced gesture events",
		},
		[]string{"gesture"},
	)

	m.actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handsignal_call_actions_total",
			Help: "Total number of gesture events handled by the call session",
		},
		[]string{"action", "outcome"},
	)

	m.recordFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "handsignal_history_write_errors_total",
			Help: "Total number of gesture events that could not be saved",
		},
	)
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.framesTotal.Describe(ch)
	m.frameDuration.Describe(ch)
	m.detectErrors.Describe(ch)
	m.gesturesTotal.Describe(ch)
	m.actionsTotal.Describe(ch)
	m.recordFailures.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.framesTotal.Collect(ch)
	m.frameDuration.Collect(ch)
	m.detectErrors.Collect(ch)
	m.gesturesTotal.Collect(ch)
	m.actionsTotal.Collect(ch)
	m.recordFailures.Collect(ch)
}

// FrameProcessed records a tick that ran detection.
func (m *Metrics) FrameProcessed(d time.Duration) {
	m.framesTotal.WithLabelValues("processed").Inc()
	m.frameDuration.Observe(d.Seconds())
}

// FrameSkipped records a tick that had no frame to work on.
func (m *Metrics) FrameSkipped() {
	m.framesTotal.WithLabelValues("skipped").Inc()
}

// DetectError records a landmark source failure on one frame.
func (m *Metrics) DetectError() {
	m.detectErrors.Inc()
}

// GestureEmitted records a debounced gesture.
func (m *Metrics) GestureEmitted(g gesture.Gesture) {
	m.gesturesTotal.WithLabelValues(g.String()).Inc()
}

// EventRecorder persists gesture events.
type EventRecorder interface {
	Record(e *store.Event) error
}

// Events wraps next so every recorded event is also counted. next may be nil
// to count without persisting.
func (m *Metrics) Events(next EventRecorder) EventRecorder {
	return &countingRecorder{m: m, next: next}
}

type countingRecorder struct {
	m    *Metrics
	next EventRecorder
}

func (r *countingRecorder) Record(e *store.Event) error {
	r.m.actionsTotal.WithLabelValues(e.Action, string(e.Outcome)).Inc()
	if r.next == nil {
		return nil
	}
	if err := r.next.Record(e); err != nil {
		r.m.recordFailures.Inc()
		return err
	}
	return nil
}
