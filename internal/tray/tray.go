// Package tray provides a system tray interface for facegate.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onRegister func()
	onVerify   func()
	onCancel   func()
	onOpenUI   func()
	onQuit     func()
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuStatus   *systray.MenuItem
	menuRegister *systray.MenuItem
	menuVerify   *systray.MenuItem
	menuCancel   *systray.MenuItem
	status       string
	busy         bool
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{status: "Loading models..."}
}

// OnRegister sets the callback for the "Register face" menu item.
func (t *Tray) OnRegister(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRegister = fn
}

// OnVerify sets the callback for the "Verify face" menu item.
func (t *Tray) OnVerify(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onVerify = fn
}

// OnCancel sets the callback for the "Cancel" menu item.
func (t *Tray) OnCancel(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCancel = fn
}

// OnOpenUI sets the callback for the "Open UI" menu item.
func (t *Tray) OnOpenUI(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenUI = fn
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

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("facegate")
	systray.SetTooltip("facegate face registration and verification")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Pipeline status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuRegister = systray.AddMenuItem("Register face", "Capture reference descriptors")
	t.menuVerify = systray.AddMenuItem("Verify face", "Verify against the latest enrollment")
	t.menuCancel = systray.AddMenuItem("Cancel", "Cancel the active session")
	t.applyBusy()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open UI...", "Open the web interface in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit facegate")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuRegister.ClickedCh:
				t.call(func() func() { return t.onRegister })
			case <-t.menuVerify.ClickedCh:
				t.call(func() func() { return t.onVerify })
			case <-t.menuCancel.ClickedCh:
				t.call(func() func() { return t.onCancel })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpenUI })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// call reads a callback under the lock and runs it outside of it.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetStatus updates the status line of the menu.
func (t *Tray) SetStatus(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = fmt.Sprintf(format, args...)
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(t.status)
	}
}

// SetBusy enables Cancel and disables the session items while a session runs.
func (t *Tray) SetBusy(busy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.busy = busy
	t.applyBusy()
}

func (t *Tray) applyBusy() {
	if t.menuRegister == nil {
		return
	}
	if t.busy {
		t.menuRegister.Disable()
		t.menuVerify.Disable()
		t.menuCancel.Enable()
	} else {
		t.menuRegister.Enable()
		t.menuVerify.Enable()
		t.menuCancel.Disable()
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
