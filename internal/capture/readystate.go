package capture

import "sync"

// ReadyState reports how much data a video source has buffered. Values are
// ordered, so callers compare with >=.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

func (s ReadyState) String() string {
	switch s {
	case HaveNothing:
		return "have_nothing"
	case HaveMetadata:
		return "have_metadata"
	case HaveCurrentData:
		return "have_current_data"
	case HaveFutureData:
		return "have_future_data"
	case HaveEnoughData:
		return "have_enough_data"
	default:
		return "unknown"
	}
}

// readiness tracks a ReadyState and closes a one-shot channel the first time
// it reaches HaveEnoughData. reset arms a fresh channel for the next open.
type readiness struct {
	mu    sync.Mutex
	state ReadyState
	ready chan struct{}
}

func newReadiness() *readiness {
	return &readiness{ready: make(chan struct{})}
}

func (r *readiness) set(s ReadyState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s < r.state {
		return
	}
	r.state = s
	if s >= HaveEnoughData {
		select {
		case <-r.ready:
		default:
			close(r.ready)
		}
	}
}

func (r *readiness) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = HaveNothing
	select {
	case <-r.ready:
		r.ready = make(chan struct{})
	default:
	}
}

func (r *readiness) get() ReadyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *readiness) channel() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}
