// Package tray provides the system tray menu for handsignal.
package tray

import (
	"context"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handsignal/internal/gesture"
	"github.com/ayusman/handsignal/internal/scheduler"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle  func(enabled bool)
	onOverlay func()
	onQuit    func()
	enabled   bool
	gesture   gesture.Gesture
	mu        sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when gesture control is
// switched on or off.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOverlay sets the callback function to be called when the overlay menu
// item is clicked.
func (t *Tray) OnOverlay(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOverlay = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("handsignal")
	systray.SetTooltip("handsignal gesture call control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gesture control")
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem(gestureTitle(t.gesture), "Gesture currently detected")
	t.menuLastGesture.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOverlay := systray.AddMenuItem("Open Overlay...", "Open the overlay in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handsignal")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOverlay.ClickedCh:
				t.handleOverlay()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleOverlay() {
	t.mu.RLock()
	callback := t.onOverlay
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetEnabled updates the toggle without calling OnToggle. It is used when
// gesture control stops on its own, for example after a hang-up.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetLastGesture updates the gesture display in the menu. It reports whether
// the display changed.
func (t *Tray) SetLastGesture(g gesture.Gesture) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if g == t.gesture {
		return false
	}
	t.gesture = g
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(gestureTitle(g))
	}
	return true
}

// Watch keeps the menu in step with overlay snapshots until ctx is done or
// the channel closes. A non-nil enabled func is polled with every snapshot
// so the toggle follows detection stopping on its own.
func (t *Tray) Watch(ctx context.Context, snapshots <-chan scheduler.State, enabled func() bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-snapshots:
			if !ok {
				return
			}
			t.SetLastGesture(st.ActiveGesture)
			if enabled != nil && enabled() != t.IsEnabled() {
				t.SetEnabled(enabled())
			}
		}
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastGesture returns the gesture shown in the menu.
func (t *Tray) LastGesture() gesture.Gesture {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gesture
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func gestureTitle(g gesture.Gesture) string {
	return "Gesture: " + g.String()
}
