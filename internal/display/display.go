// Package display shows annotated frames in a desktop window.
package display

import "gocv.io/x/gocv"

// NoKey is returned by WaitKey when no key was pressed.
const NoKey = -1

// Display is the output surface of the capture loop.
type Display interface {
	// Show renders a frame. The frame is not retained.
	Show(frame gocv.Mat)
	// WaitKey pumps window events for up to delayMs milliseconds and returns
	// the key pressed, or NoKey.
	WaitKey(delayMs int) int
	// IsOpen reports whether the window is still open.
	IsOpen() bool
	// Close destroys the window.
	Close() error
}

// Window is a Display backed by an OpenCV HighGUI window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show renders frame.
func (w *Window) Show(frame gocv.Mat) {
	w.win.IMShow(frame)
}

// WaitKey waits for a key press.
func (w *Window) WaitKey(delayMs int) int {
	return w.win.WaitKey(delayMs)
}

// IsOpen reports whether the user has not closed the window.
func (w *Window) IsOpen() bool {
	return w.win.IsOpen()
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
