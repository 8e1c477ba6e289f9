package display

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDisplay records shown frames and replays scripted key presses.
type MockDisplay struct {
	mu     sync.Mutex
	keys   []int
	shown  int
	last   gocv.Mat
	closed bool
	open   bool
}

// NewMockDisplay returns an open display that answers WaitKey with keys in
// order, then with NoKey.
func NewMockDisplay(keys ...int) *MockDisplay {
	return &MockDisplay{keys: keys, open: true, last: gocv.NewMat()}
}

// Show copies frame as the last shown frame.
func (d *MockDisplay) Show(frame gocv.Mat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown++
	frame.CopyTo(&d.last)
}

// WaitKey pops the next scripted key.
func (d *MockDisplay) WaitKey(delayMs int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.keys) == 0 {
		return NoKey
	}
	k := d.keys[0]
	d.keys = d.keys[1:]
	return k
}

// IsOpen reports whether the simulated window is open.
func (d *MockDisplay) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// SetOpen simulates the user closing (or reopening) the window.
func (d *MockDisplay) SetOpen(open bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = open
}

// Shown returns how many frames were shown.
func (d *MockDisplay) Shown() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

// Last returns a copy of the most recently shown frame. The caller must Close it.
func (d *MockDisplay) Last() gocv.Mat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last.Clone()
}

// Close releases the recorded frame.
func (d *MockDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.open = false
	return d.last.Close()
}

// Closed reports whether Close has been called.
func (d *MockDisplay) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
