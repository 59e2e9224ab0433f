package gesture

import (
	"time"

	"github.com/ayusman/handsignal/internal/timeutil"
)

// DefaultCooldown is how long a gesture stays suppressed after it fires.
const DefaultCooldown = 2 * time.Second

// Phase is the debouncer's state.
type Phase int

const (
	// PhaseIdle has no gesture in memory; the next candidate fires.
	PhaseIdle Phase = iota
	// PhaseArmed is the frame on which a gesture was just emitted.
	PhaseArmed
	// PhaseCooling holds a previously emitted gesture until its deadline.
	PhaseCooling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhaseCooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// DebounceState is a copy of the debouncer's memory.
type DebounceState struct {
	Phase    Phase
	Last     Gesture
	Deadline time.Time
}

// Debouncer converts a per-frame stream of candidates into discrete events.
// A gesture fires on the first frame it appears and is then suppressed until
// the cooldown passes. A different gesture always fires at once and restarts
// the cooldown.
//
// Expiry is evaluated lazily against the clock, so there is no timer to
// cancel and a replaced deadline cannot fire late. A Debouncer is not safe
// for concurrent use.
type Debouncer struct {
	cooldown time.Duration
	clock    timeutil.Clock

	phase    Phase
	last     Gesture
	deadline time.Time
}

// NewDebouncer creates a Debouncer. A non-positive cooldown uses
// DefaultCooldown and a nil clock uses the real clock.
func NewDebouncer(cooldown time.Duration, clock timeutil.Clock) *Debouncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Debouncer{cooldown: cooldown, clock: clock}
}

// OnFrame feeds one classified frame. It returns the gesture and true only
// on the frame where a new event fires.
//
// A None candidate never touches debounce memory: a gesture that is cooling
// stays suppressed across frames with no detection.
func (d *Debouncer) OnFrame(candidate Gesture) (Gesture, bool) {
	now := d.clock.Now()
	d.expire(now)

	if candidate == None {
		if d.phase == PhaseArmed {
			d.phase = PhaseCooling
		}
		return None, false
	}

	if d.phase != PhaseIdle && candidate == d.last {
		d.phase = PhaseCooling
		return None, false
	}

	d.phase = PhaseArmed
	d.last = candidate
	d.deadline = now.Add(d.cooldown)
	return candidate, true
}

// Expire clears memory if the cooldown has passed and reports whether it
// did.
func (d *Debouncer) Expire() bool {
	return d.expire(d.clock.Now())
}

func (d *Debouncer) expire(now time.Time) bool {
	if d.phase == PhaseIdle || now.Before(d.deadline) {
		return false
	}
	d.Reset()
	return true
}

// Reset returns the debouncer to Idle and drops any pending cooldown.
func (d *Debouncer) Reset() {
	d.phase = PhaseIdle
	d.last = None
	d.deadline = time.Time{}
}

// Cooldown returns the configured cooldown duration.
func (d *Debouncer) Cooldown() time.Duration {
	return d.cooldown
}

// State returns a copy of the current memory.
func (d *Debouncer) State() DebounceState {
	return DebounceState{
		Phase:    d.phase,
		Last:     d.last,
		Deadline: d.deadline,
	}
}
