package detector

import "gocv.io/x/gocv"

// Detector is implemented by hand-landmark models.
type Detector interface {
	// Detect runs the model over an RGB frame. A frame without hands yields
	// an empty slice and a nil error.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	Close() error
}

// Config tunes the model.
type Config struct {
	MaxHands        int     // upper bound on hands reported per frame
	MinConfidence   float64 // palm detection threshold in [0, 1]
	MinTrackingConf float64 // landmark tracking threshold in [0, 1]

	// ScriptPath points at mediapipe_service.py. Empty means search the usual locations.
	ScriptPath string
	// PythonPath is the helper interpreter. Empty means a venv interpreter
	// if one is found, otherwise python3.
	PythonPath string
}

// DefaultConfig mirrors the MediaPipe Hands defaults: two hands, 0.5 / 0.5.
func DefaultConfig() Config {
	return Config{MaxHands: 2, MinConfidence: 0.5, MinTrackingConf: 0.5}
}

// Validate clamps values into the ranges the model accepts.
func (c *Config) Validate() {
	c.MaxHands = max(c.MaxHands, 1)
	c.MinConfidence = clampUnit(c.MinConfidence)
	c.MinTrackingConf = clampUnit(c.MinTrackingConf)
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}
