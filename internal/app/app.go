// Package app runs the capture, detect, draw and display loop.
package app

import (
	"sync"
	"time"

	"github.com/ayusman/handtrack/internal/capture"
	"github.com/ayusman/handtrack/internal/detector"
	"github.com/ayusman/handtrack/internal/display"
	"github.com/ayusman/handtrack/internal/metrics"
	"github.com/ayusman/handtrack/internal/overlay"
	"github.com/ayusman/handtrack/internal/store"
	"go.uber.org/zap"
)

// Key codes handled by the loop, compared after masking with 0xFF.
const (
	KeyEsc          = 27
	KeyQuit         = 'q'
	KeyMirror       = 'm'
	KeyLandmarks    = 'l'
	KeyFPS          = 'f'
	KeyLogLandmarks = 'p'
)

// Config holds the collaborators of the application. Store and Metrics are
// optional.
type Config struct {
	Camera   *capture.Camera
	Detector detector.Detector
	Display  display.Display
	Overlay  *overlay.Overlay
	Store    *store.Store
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Settings Settings
}

// App is the hand tracking application.
type App struct {
	config   Config
	log      *zap.Logger
	settings Settings
	onHands  func(n int)
	onToggle func(t Toggle, on bool)
	frames   int64
	mu       sync.RWMutex

	now       func() time.Time
	runStart  time.Time
	lastFrame time.Time

	quit     chan struct{}
	quitOnce sync.Once
}

// New creates an App and applies the initial mirror setting to the camera.
func New(config Config) *App {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if config.Overlay == nil {
		config.Overlay = overlay.New(overlay.DefaultOptions())
	}

	a := &App{
		config:   config,
		log:      log.Named("app"),
		settings: config.Settings,
		quit:     make(chan struct{}),
		now:      time.Now,
	}
	if config.Camera != nil {
		config.Camera.SetMirror(config.Settings.Mirror)
	}
	return a
}

// Settings returns a snapshot of the current toggles.
func (a *App) Settings() Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// Toggle flips a setting and returns its new value.
func (a *App) Toggle(t Toggle) bool {
	a.mu.RLock()
	on := !a.settings.Get(t)
	a.mu.RUnlock()
	a.Set(t, on)
	return on
}

// Set changes a setting, applies it, persists it when a store is configured,
// and notifies the toggle callback outside the lock.
func (a *App) Set(t Toggle, on bool) {
	a.mu.Lock()
	p := a.settings.field(t)
	if p == nil {
		a.mu.Unlock()
		return
	}
	*p = on
	callback := a.onToggle
	a.mu.Unlock()

	if t == ToggleMirror && a.config.Camera != nil {
		a.config.Camera.SetMirror(on)
	}

	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetBool(t.storeKey(), on); err != nil {
			a.log.Warn("failed to persist setting", zap.Stringer("toggle", t), zap.Error(err))
		}
	}

	a.log.Info("setting changed", zap.Stringer("toggle", t), zap.Bool("on", on))

	if callback != nil {
		callback(t, on)
	}
}

// OnToggle registers a callback invoked after every setting change.
func (a *App) OnToggle(fn func(t Toggle, on bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onToggle = fn
}

// OnHands registers a callback invoked with the hand count of every frame.
func (a *App) OnHands(fn func(n int)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onHands = fn
}

// RequestQuit asks the loop to stop after the current frame. Safe to call
// from any goroutine and more than once.
func (a *App) RequestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// Frames returns how many frames have been processed.
func (a *App) Frames() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frames
}

// FPS returns the smoothed frame rate.
func (a *App) FPS() float64 {
	return a.config.Overlay.FPS()
}

// AverageFPS returns the frames processed divided by the time from the start
// of Run to the last frame read, or 0 before any time has elapsed.
func (a *App) AverageFPS() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	elapsed := a.lastFrame.Sub(a.runStart).Seconds()
	if a.frames == 0 || elapsed <= 0 {
		return 0
	}
	return float64(a.frames) / elapsed
}
