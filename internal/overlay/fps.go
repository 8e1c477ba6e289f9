package overlay

import (
	"sync"
	"time"
)

// Smoothing weights for the FPS low-pass filter.
const (
	fpsKeep = 0.85
	fpsTake = 0.15
)

// FPSMeter tracks a smoothed frame rate from successive Tick calls.
type FPSMeter struct {
	mu   sync.Mutex
	now  func() time.Time
	prev time.Time
	fps  float64
}

// NewFPSMeter returns a meter whose reference time is now.
func NewFPSMeter() *FPSMeter {
	return newFPSMeter(time.Now)
}

func newFPSMeter(now func() time.Time) *FPSMeter {
	return &FPSMeter{now: now, prev: now()}
}

// Tick records a frame and returns the updated rate. The first measured
// sample is taken as is; later samples are blended 85/15 with the running
// value. A zero or negative interval leaves the rate unchanged.
func (m *FPSMeter) Tick() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dt := now.Sub(m.prev).Seconds()
	if dt > 0 {
		instant := 1.0 / dt
		if m.fps == 0 {
			m.fps = instant
		} else {
			m.fps = fpsKeep*m.fps + fpsTake*instant
		}
	}
	m.prev = now
	return m.fps
}

// Value returns the current smoothed rate.
func (m *FPSMeter) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}
