package app

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/handtrack/internal/capture"
	"github.com/ayusman/handtrack/internal/detector"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Run processes frames until the user quits, the window is closed, the
// context is cancelled, RequestQuit is called, or a frame cannot be read.
// A failed read ends the loop without an error.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	a.runStart = a.now()
	a.lastFrame = a.runStart
	a.mu.Unlock()

	a.log.Info("capture loop started", zap.Any("settings", a.Settings()))
	defer func() {
		a.log.Info("capture loop stopped",
			zap.Int64("frames", a.Frames()),
			zap.Float64("fps", a.FPS()),
			zap.Float64("avg_fps", a.AverageFPS()),
		)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.quit:
			return nil
		default:
		}

		more, err := a.step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// step runs one iteration of the loop and reports whether to continue.
func (a *App) step() (bool, error) {
	frame, err := a.config.Camera.ReadFrame()
	if err != nil {
		if errors.Is(err, capture.ErrReadFailed) {
			a.log.Warn("failed to get frame")
			if a.config.Metrics != nil {
				a.config.Metrics.ReadFailuresTotal.Inc()
			}
			return false, nil
		}
		return false, err
	}
	defer frame.Close()

	now := a.now()

	a.mu.Lock()
	a.frames++
	a.lastFrame = now
	settings := a.settings
	onHands := a.onHands
	a.mu.Unlock()

	fps := a.config.Overlay.Tick()
	if a.config.Metrics != nil {
		a.config.Metrics.FramesTotal.Inc()
		a.config.Metrics.FPS.Set(fps)
	}

	hands := a.detect(frame)
	if onHands != nil {
		onHands(len(hands))
	}

	w, h := frame.BGR.Cols(), frame.BGR.Rows()
	for i := range hands {
		if settings.LogLandmarks {
			a.logHand(i, &hands[i], w, h)
		}
		if settings.ShowLandmarks {
			a.config.Overlay.DrawHand(&frame.BGR, &hands[i])
		}
	}

	if settings.ShowFPS {
		a.config.Overlay.DrawFPS(&frame.BGR)
	}

	a.config.Display.Show(frame.BGR)

	if a.handleKey(a.config.Display.WaitKey(1)) {
		return false, nil
	}
	if !a.config.Display.IsOpen() {
		a.log.Info("window closed")
		return false, nil
	}
	return true, nil
}

// detect runs the detector on the RGB copy of the frame. Errors are logged
// and counted; the frame is still shown without hands. A detector that
// reports itself unavailable is replaced by the mock for the rest of the run.
func (a *App) detect(frame *capture.Frame) []detector.HandLandmarks {
	if a.config.Detector == nil {
		return nil
	}

	rgb := &frame.RGB
	if !frame.HasRGB() {
		converted := gocv.NewMat()
		defer converted.Close()
		gocv.CvtColor(frame.BGR, &converted, gocv.ColorBGRToRGB)
		rgb = &converted
	}

	start := time.Now()
	hands, err := a.config.Detector.Detect(rgb)
	if a.config.Metrics != nil {
		a.config.Metrics.ObserveDetect(time.Since(start), len(hands), err)
	}
	if errors.Is(err, detector.ErrHelperUnavailable) {
		a.log.Warn("hand detector unavailable, continuing without detection", zap.Error(err))
		a.config.Detector = detector.NewMockDetector()
		return nil
	}
	if err != nil {
		a.log.Warn("hand detection failed", zap.Error(err))
		return nil
	}
	return hands
}

// handleKey applies a key press and reports whether the loop should stop.
func (a *App) handleKey(key int) bool {
	if key < 0 {
		return false
	}

	switch key & 0xFF {
	case KeyQuit, KeyEsc:
		a.log.Info("quit requested from keyboard")
		return true
	case KeyMirror:
		a.Toggle(ToggleMirror)
	case KeyLandmarks:
		a.Toggle(ToggleLandmarks)
	case KeyFPS:
		a.Toggle(ToggleFPS)
	case KeyLogLandmarks:
		a.Toggle(ToggleLogLandmarks)
	}
	return false
}

func (a *App) logHand(i int, hand *detector.HandLandmarks, width, height int) {
	px := hand.Pixels(width, height)
	for id, p := range hand.Points {
		a.log.Info("landmark",
			zap.Int("hand", i),
			zap.String("handedness", hand.Handedness),
			zap.Int("id", id),
			zap.Float64("x", p.X),
			zap.Float64("y", p.Y),
			zap.Float64("z", p.Z),
			zap.Int("px", px[id].X),
			zap.Int("py", px[id].Y),
		)
	}
}
