package capture

import (
	"image"

	"github.com/vova616/screenshot"
	"gocv.io/x/gocv"
)

// ScreenSource grabs the primary screen as a frame source.
type ScreenSource struct {
	bounds  image.Rectangle
	capture func(image.Rectangle) (*image.RGBA, error)
}

// NewScreenSource resolves the primary screen bounds.
func NewScreenSource() (*ScreenSource, error) {
	rect, err := screenshot.ScreenRect()
	if err != nil {
		return nil, err
	}
	return &ScreenSource{bounds: rect, capture: screenshot.CaptureRect}, nil
}

// Read captures the screen into m as a BGR image.
func (s *ScreenSource) Read(m *gocv.Mat) bool {
	img, err := s.capture(s.bounds)
	if err != nil || img == nil {
		return false
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false
	}
	defer mat.Close()

	mat.CopyTo(m)
	return !m.Empty()
}

// Get reports the screen size for the frame width and height properties and
// zero for everything else.
func (s *ScreenSource) Get(prop gocv.VideoCaptureProperties) float64 {
	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return float64(s.bounds.Dx())
	case gocv.VideoCaptureFrameHeight:
		return float64(s.bounds.Dy())
	default:
		return 0
	}
}

// Close is a no-op; the screen needs no release.
func (s *ScreenSource) Close() error {
	return nil
}
