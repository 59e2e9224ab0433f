// Package overlay polls the scheduler's detector state at a fixed rate and
// hands snapshots to rendering consumers. The detection loop never pushes to
// the UI, so render pressure does not scale with the detection rate.
package overlay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/handsignal/internal/scheduler"
	"github.com/ayusman/handsignal/internal/timeutil"
)

// DefaultInterval is the polling cadence, about 30 Hz.
const DefaultInterval = time.Second / 30

// Source provides detector state snapshots.
type Source interface {
	Snapshot() scheduler.State
}

// Bridge is a polling reader of a Source. It never writes to the source.
type Bridge struct {
	src      Source
	interval time.Duration
	clock    timeutil.Clock

	latest atomic.Pointer[scheduler.State]

	mu     sync.Mutex
	subs   map[int]chan scheduler.State
	nextID int
}

// New creates a Bridge. A non-positive interval uses DefaultInterval and a
// nil clock uses the real clock.
func New(src Source, interval time.Duration, clock timeutil.Clock) *Bridge {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	b := &Bridge{
		src:      src,
		interval: interval,
		clock:    clock,
		subs:     make(map[int]chan scheduler.State),
	}
	b.latest.Store(&scheduler.State{})
	return b
}

// Run polls until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	b.Poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			b.Poll()
		}
	}
}

// Poll takes one snapshot and fans it out. Run calls it on every tick.
func (b *Bridge) Poll() scheduler.State {
	st := b.src.Snapshot()
	b.latest.Store(&st)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		offer(ch, st)
	}
	return st
}

// Latest returns the most recent polled snapshot.
func (b *Bridge) Latest() scheduler.State {
	return b.latest.Load().Clone()
}

// Subscribe returns a channel that receives polled snapshots. A slow
// subscriber only ever sees the newest snapshot. The returned func
// unsubscribes and closes the channel.
func (b *Bridge) Subscribe() (<-chan scheduler.State, func()) {
	ch := make(chan scheduler.State, 1)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// offer replaces whatever is buffered in ch with st. Only Poll sends, under
// b.mu, so the retry cannot race another sender.
func offer(ch chan scheduler.State, st scheduler.State) {
	select {
	case ch <- st.Clone():
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- st.Clone():
	default:
	}
}
