package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-recorded frames for testing.
type MockSource struct {
	frames []*gocv.Mat
	index  int
	loop   bool
	width  float64
	height float64
	reads  int
	closed bool
	mu     sync.Mutex
}

// NewMockSource returns a source that yields clones of frames in order.
// With loop set it starts over after the last frame; otherwise reads fail.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
	}
}

// SetSize sets the values reported for the frame width and height
// properties. Zero means "unknown", as some drivers report.
func (s *MockSource) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = float64(width)
	s.height = float64(height)
}

// Read copies the next frame into m.
func (s *MockSource) Read(m *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.frames) == 0 {
		return false
	}

	if s.index >= len(s.frames) {
		if !s.loop {
			return false
		}
		s.index = 0
	}

	s.frames[s.index].CopyTo(m)
	s.index++
	s.reads++
	return true
}

// Get returns the configured size for width/height and zero otherwise.
func (s *MockSource) Get(prop gocv.VideoCaptureProperties) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return s.width
	case gocv.VideoCaptureFrameHeight:
		return s.height
	default:
		return 0
	}
}

// Close stops playback.
func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Reads reports how many frames have been handed out.
func (s *MockSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Closed reports whether Close has been called.
func (s *MockSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reset restarts playback from the beginning.
func (s *MockSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}
