// Package tray provides the system tray menu for the ring sizer.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/lune/internal/session"
)

// Tray is the system tray menu: a tracking toggle, the live ring size, a
// recording toggle, a browser shortcut and Quit.
type Tray struct {
	onToggle func(enabled bool)
	onRecord func(recording bool) error
	onOpen   func()
	onQuit   func()

	enabled   bool
	recording bool
	sizeLabel string
	mu        sync.RWMutex

	menuToggle *systray.MenuItem
	menuSize   *systray.MenuItem
	menuRecord *systray.MenuItem
}

// New creates a Tray with tracking enabled.
func New() *Tray {
	return &Tray{
		enabled:   true,
		sizeLabel: SizeLabel(session.Result{}),
	}
}

// OnToggle sets the callback for the tracking toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRecord sets the callback for the recording toggle. A returned error
// leaves the recording state unchanged.
func (t *Tray) OnRecord(fn func(recording bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecord = fn
}

// OnOpen sets the callback for "Open in browser".
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for Quit.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("Lune")
	systray.SetTooltip("Lune ring sizer")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle hand tracking")
	systray.AddSeparator()
	t.menuSize = systray.AddMenuItem(t.sizeLabel, "Current ring size")
	t.menuSize.Disable()
	t.menuRecord = systray.AddMenuItem(recordTitle(t.recording), "Record landmarks for replay")
	t.mu.Unlock()

	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Open in browser", "Open the sizer in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Lune")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuRecord.ClickedCh:
				t.handleRecord()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleRecord() {
	t.mu.RLock()
	want := !t.recording
	callback := t.onRecord
	t.mu.RUnlock()

	if callback != nil {
		if err := callback(want); err != nil {
			return
		}
	}

	t.mu.Lock()
	t.recording = want
	if t.menuRecord != nil {
		t.menuRecord.SetTitle(recordTitle(want))
	}
	t.mu.Unlock()
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

// Update shows the size from a tracking result. It is a Listener for the
// camera pipeline.
func (t *Tray) Update(res session.Result) {
	label := SizeLabel(res)

	t.mu.Lock()
	defer t.mu.Unlock()
	if label == t.sizeLabel {
		return
	}
	t.sizeLabel = label
	if t.menuSize != nil {
		t.menuSize.SetTitle(label)
	}
}

// SizeLabel formats the menu line for a result, e.g. "Size: US 7 · N · 54".
func SizeLabel(res session.Result) string {
	if res.Size == nil {
		return "Size: measuring..."
	}
	return fmt.Sprintf("Size: US %g · %s · %d", res.Size.US, res.Size.UK, res.Size.EU)
}

// Label returns the size line currently shown.
func (t *Tray) Label() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sizeLabel
}

// IsEnabled returns the tracking toggle state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// IsRecording returns the recording toggle state.
func (t *Tray) IsRecording() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func recordTitle(recording bool) string {
	if recording {
		return "Stop recording"
	}
	return "Start recording"
}

// Quit closes the tray, ending Run.
func (t *Tray) Quit() {
	systray.Quit()
}
