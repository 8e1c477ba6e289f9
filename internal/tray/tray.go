// Package tray provides a system tray menu mirroring the display toggles.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Item identifies a toggle in the tray menu.
type Item int

const (
	Landmarks Item = iota
	FPS
	Mirror
	numItems
)

var itemLabels = [numItems]string{
	Landmarks: "Landmarks",
	FPS:       "FPS",
	Mirror:    "Mirror",
}

var itemTooltips = [numItems]string{
	Landmarks: "Draw hand landmarks",
	FPS:       "Show the frame rate",
	Mirror:    "Flip the image horizontally",
}

func (i Item) String() string {
	if i < 0 || i >= numItems {
		return fmt.Sprintf("Item(%d)", int(i))
	}
	return itemLabels[i]
}

// Tray is the system tray application.
type Tray struct {
	onToggle func(item Item, on bool)
	onQuit   func()
	state    [numItems]bool
	hands    int
	mu       sync.RWMutex

	// Menu items stored for later updates; nil until the tray is ready.
	menuItems [numItems]*systray.MenuItem
	menuHands *systray.MenuItem
}

// New creates a Tray with the given initial toggle states.
func New(landmarks, fps, mirror bool) *Tray {
	t := &Tray{}
	t.state[Landmarks] = landmarks
	t.state[FPS] = fps
	t.state[Mirror] = mirror
	return t
}

// OnToggle sets the callback invoked after a toggle item is clicked.
func (t *Tray) OnToggle(fn func(item Item, on bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback invoked when Quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Hand Tracking")
	systray.SetTooltip("Hand landmark tracking")

	t.mu.Lock()
	for i := Item(0); i < numItems; i++ {
		t.menuItems[i] = systray.AddMenuItem(itemTitle(i, t.state[i]), itemTooltips[i])
	}
	systray.AddSeparator()

	t.menuHands = systray.AddMenuItem(handsTitle(t.hands), "Hands in the current frame")
	t.menuHands.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit hand tracking")

	go func() {
		for {
			select {
			case <-t.menuItems[Landmarks].ClickedCh:
				t.handleToggle(Landmarks)
			case <-t.menuItems[FPS].ClickedCh:
				t.handleToggle(FPS)
			case <-t.menuItems[Mirror].ClickedCh:
				t.handleToggle(Mirror)
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips item and calls the toggle callback outside the lock.
func (t *Tray) handleToggle(item Item) bool {
	t.mu.Lock()
	t.state[item] = !t.state[item]
	on := t.state[item]
	if m := t.menuItems[item]; m != nil {
		m.SetTitle(itemTitle(item, on))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(item, on)
	}
	return on
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

// SetState updates a toggle changed elsewhere (for example by a key press)
// without invoking the callback.
func (t *Tray) SetState(item Item, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state[item] = on
	if m := t.menuItems[item]; m != nil {
		m.SetTitle(itemTitle(item, on))
	}
}

// State returns the current value of a toggle.
func (t *Tray) State(item Item) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state[item]
}

// SetHands updates the hand count line. Unchanged counts are not redrawn.
func (t *Tray) SetHands(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n == t.hands {
		return
	}
	t.hands = n
	if t.menuHands != nil {
		t.menuHands.SetTitle(handsTitle(n))
	}
}

// Hands returns the last reported hand count.
func (t *Tray) Hands() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hands
}

func itemTitle(item Item, on bool) string {
	if on {
		return "● " + item.String()
	}
	return "○ " + item.String()
}

func handsTitle(n int) string {
	return fmt.Sprintf("Hands: %d", n)
}
