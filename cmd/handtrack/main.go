package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/handtrack/internal/app"
	"github.com/ayusman/handtrack/internal/capture"
	"github.com/ayusman/handtrack/internal/config"
	"github.com/ayusman/handtrack/internal/detector"
	"github.com/ayusman/handtrack/internal/display"
	"github.com/ayusman/handtrack/internal/logger"
	"github.com/ayusman/handtrack/internal/metrics"
	"github.com/ayusman/handtrack/internal/overlay"
	"github.com/ayusman/handtrack/internal/store"
	"github.com/ayusman/handtrack/internal/tray"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	base, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	fatalOnErr(err, "init logger")
	defer base.Sync()

	session := uuid.New()
	log := base.With(zap.String("session", session.String()))

	if err := run(cfg, session, log); err != nil {
		log.Fatal("handtrack failed", zap.Error(err))
	}
}

func run(cfg *config.Config, session uuid.UUID, log *zap.Logger) error {
	log.Info("starting handtrack",
		zap.String("source", cfg.SourceLabel()),
		zap.String("detector", cfg.Detector),
	)

	settings := app.Settings{
		Mirror:        cfg.Mirror,
		ShowLandmarks: cfg.ShowLandmarks,
		ShowFPS:       cfg.ShowFPS,
		LogLandmarks:  cfg.LogLandmarks,
	}

	var st *store.Store
	if cfg.PersistSettings {
		var err error
		st, err = openStore(cfg)
		if err != nil {
			// Settings persistence is optional; run with the environment defaults.
			log.Warn("state store unavailable", zap.Error(err))
		} else {
			defer st.Close()
			loaded, err := app.LoadSettings(st.Settings(), settings)
			if err != nil {
				log.Warn("failed to load stored settings", zap.Error(err))
			} else {
				settings = loaded
			}
		}
	}

	cam, err := capture.Open(capture.Options{
		Index:  cfg.CameraIndex,
		File:   cfg.VideoFile,
		Screen: cfg.CaptureSource == config.SourceScreen,
		Mirror: settings.Mirror,
		RGB:    true,
		Width:  cfg.FrameWidth,
		Height: cfg.FrameHeight,
	})
	if err != nil {
		return err
	}
	defer cam.Close()

	w, h := cam.FrameSize()
	log.Info("capture opened", zap.Int("width", w), zap.Int("height", h))

	det, detName := newDetector(cfg, log)
	defer func() {
		if err := det.Close(); err != nil {
			log.Warn("error closing detector", zap.Error(err))
		}
	}()

	win := display.NewWindow(cfg.WindowTitle)
	defer win.Close()

	m := metrics.New()

	a := app.New(app.Config{
		Camera:   cam,
		Detector: det,
		Display:  win,
		Overlay:  overlay.New(overlay.DefaultOptions()),
		Store:    st,
		Metrics:  m,
		Logger:   log,
		Settings: settings,
	})

	if cfg.Tray {
		t := startTray(a, settings)
		defer t.Quit()
	}

	if st != nil {
		r := &store.Run{ID: session, Source: cfg.SourceLabel(), Detector: detName}
		if err := st.Runs().Start(r); err != nil {
			log.Warn("failed to record run start", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := a.Run(ctx)

	if st != nil {
		if err := st.Runs().Finish(session, a.Frames(), a.AverageFPS()); err != nil {
			log.Warn("failed to record run end", zap.Error(err))
		}
	}

	if cfg.MetricsFile != "" {
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			log.Warn("failed to write metrics", zap.Error(err))
		} else {
			log.Info("metrics written", zap.String("path", cfg.MetricsFile))
		}
	}

	log.Info("handtrack stopped", zap.Int64("frames", a.Frames()))
	return runErr
}

func openStore(cfg *config.Config) (*store.Store, error) {
	path, err := cfg.StatePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return store.New(path)
}

// newDetector builds the configured detector. MediaPipe falls back to the
// mock, which reports no hands, when its helper cannot be found.
func newDetector(cfg *config.Config, log *zap.Logger) (detector.Detector, string) {
	if cfg.Detector == config.DetectorMock {
		log.Info("using mock hand detector")
		return detector.NewMockDetector(), config.DetectorMock
	}

	dc := detector.Config{
		MaxHands:        cfg.MaxHands,
		MinConfidence:   cfg.MinDetection,
		MinTrackingConf: cfg.MinTracking,
		ScriptPath:      cfg.MediaPipeScript,
		PythonPath:      cfg.PythonPath,
	}
	mp, err := detector.NewMediaPipeDetector(dc, log)
	if err != nil {
		log.Warn("MediaPipe not available, using mock detector", zap.Error(err))
		return detector.NewMockDetector(), config.DetectorMock
	}
	log.Info("using MediaPipe hand detection")
	return mp, config.DetectorMediaPipe
}

var trayItems = map[tray.Item]app.Toggle{
	tray.Landmarks: app.ToggleLandmarks,
	tray.FPS:       app.ToggleFPS,
	tray.Mirror:    app.ToggleMirror,
}

// startTray runs the system tray in the background and keeps it in sync
// with the keyboard toggles.
func startTray(a *app.App, s app.Settings) *tray.Tray {
	t := tray.New(s.ShowLandmarks, s.ShowFPS, s.Mirror)

	t.OnToggle(func(item tray.Item, on bool) {
		if tg, ok := trayItems[item]; ok {
			a.Set(tg, on)
		}
	})
	t.OnQuit(a.RequestQuit)

	a.OnToggle(func(tg app.Toggle, on bool) {
		for item, mapped := range trayItems {
			if mapped == tg {
				t.SetState(item, on)
			}
		}
	})
	a.OnHands(t.SetHands)

	go t.Run()
	return t
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
