// Package tray provides a system tray menu for a running capture session.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onOpen   func()
	onQuit   func()
	enabled  bool
	smiling  bool
	pending  int
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuSmile   *systray.MenuItem
	menuPending *systray.MenuItem
}

// New creates a new Tray instance with detection enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback invoked when detection is paused or resumed.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback invoked by the "Open Status Page" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback invoked when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// It blocks until Quit is called and must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Smilecast")
	systray.SetTooltip("Smilecast smile notifier")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume smile detection")
	systray.AddSeparator()

	t.menuSmile = systray.AddMenuItem(smileTitle(t.smiling), "Current smile state")
	t.menuSmile.Disable()
	t.menuPending = systray.AddMenuItem(pendingTitle(t.pending), "Captures waiting for upload")
	t.menuPending.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Status Page...", "Open the status API in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop capturing and quit")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleToggle flips the enabled state and notifies the callback.
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

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetSmiling updates the smile state line.
func (t *Tray) SetSmiling(smiling bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.smiling = smiling
	if t.menuSmile != nil {
		t.menuSmile.SetTitle(smileTitle(smiling))
	}
}

// SetPending updates the pending upload count.
func (t *Tray) SetPending(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending = n
	if t.menuPending != nil {
		t.menuPending.SetTitle(pendingTitle(n))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Detecting"
	}
	return "○ Paused"
}

func smileTitle(smiling bool) string {
	if smiling {
		return "Smile Detected!"
	}
	return "No Smile"
}

func pendingTitle(n int) string {
	return fmt.Sprintf("Pending uploads: %d", n)
}
