// Package config loads runtime configuration for handtrack from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Capture source kinds.
const (
	SourceCamera = "camera"
	SourceFile   = "file"
	SourceScreen = "screen"
)

// Detector backends.
const (
	DetectorMediaPipe = "mediapipe"
	DetectorMock      = "mock"
)

// Config holds every tunable of the application.
type Config struct {
	CaptureSource string `env:"CAPTURE_SOURCE" envDefault:"camera"`
	CameraIndex   int    `env:"CAMERA_INDEX"   envDefault:"0"`
	VideoFile     string `env:"VIDEO_FILE"`
	FrameWidth    int    `env:"FRAME_WIDTH"    envDefault:"640"`
	FrameHeight   int    `env:"FRAME_HEIGHT"   envDefault:"480"`
	Mirror        bool   `env:"MIRROR"         envDefault:"true"`

	Detector        string  `env:"DETECTOR"                 envDefault:"mediapipe"`
	MaxHands        int     `env:"MAX_HANDS"                envDefault:"2"`
	MinDetection    float64 `env:"MIN_DETECTION_CONFIDENCE" envDefault:"0.5"`
	MinTracking     float64 `env:"MIN_TRACKING_CONFIDENCE"  envDefault:"0.5"`
	MediaPipeScript string  `env:"MEDIAPIPE_SCRIPT"`
	PythonPath      string  `env:"PYTHON_PATH"`

	ShowFPS       bool   `env:"SHOW_FPS"       envDefault:"true"`
	ShowLandmarks bool   `env:"SHOW_LANDMARKS" envDefault:"true"`
	LogLandmarks  bool   `env:"LOG_LANDMARKS"  envDefault:"false"`
	WindowTitle   string `env:"WINDOW_TITLE"   envDefault:"Hand Detection"`

	StateDB         string `env:"STATE_DB"`
	PersistSettings bool   `env:"PERSIST_SETTINGS" envDefault:"true"`
	MetricsFile     string `env:"METRICS_FILE"`
	Tray            bool   `env:"TRAY"             envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads an optional .env file from the working directory and then parses
// the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

// FromMap parses configuration from an explicit environment map instead of
// the process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes values into safe ranges and rejects combinations that
// cannot work.
func (c *Config) Validate() error {
	c.CaptureSource = strings.ToLower(strings.TrimSpace(c.CaptureSource))
	switch c.CaptureSource {
	case SourceCamera, SourceScreen:
	case SourceFile:
		if c.VideoFile == "" {
			return errors.New("VIDEO_FILE is required when CAPTURE_SOURCE=file")
		}
	default:
		return fmt.Errorf("unknown CAPTURE_SOURCE %q", c.CaptureSource)
	}

	c.Detector = strings.ToLower(strings.TrimSpace(c.Detector))
	if c.Detector != DetectorMediaPipe && c.Detector != DetectorMock {
		return fmt.Errorf("unknown DETECTOR %q", c.Detector)
	}

	if c.CameraIndex < 0 {
		c.CameraIndex = 0
	}
	if c.FrameWidth < 0 {
		c.FrameWidth = 0
	}
	if c.FrameHeight < 0 {
		c.FrameHeight = 0
	}
	if c.MaxHands < 1 {
		c.MaxHands = 1
	}
	c.MinDetection = clamp01(c.MinDetection)
	c.MinTracking = clamp01(c.MinTracking)

	if c.WindowTitle == "" {
		c.WindowTitle = "Hand Detection"
	}
	if c.LogFormat != "json" {
		c.LogFormat = "console"
	}
	return nil
}

// StatePath returns the sqlite path for settings and the run ledger, falling
// back to ~/.handtrack/handtrack.db.
func (c *Config) StatePath() (string, error) {
	if c.StateDB != "" {
		return c.StateDB, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".handtrack", "handtrack.db"), nil
}

// SourceLabel describes the configured frame source for logs and the run ledger.
func (c *Config) SourceLabel() string {
	switch c.CaptureSource {
	case SourceFile:
		return "file:" + c.VideoFile
	case SourceScreen:
		return "screen"
	default:
		return fmt.Sprintf("camera:%d", c.CameraIndex)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
