// Package capture provides frame acquisition from a webcam, a video file or
// the screen using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Fallback frame size used when neither the source properties nor a sample
// frame report one.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrOpen is returned when a frame source cannot be opened.
	ErrOpen = errors.New("capture source could not be opened")
	// ErrReadFailed is returned when a frame cannot be read from an open source.
	ErrReadFailed = errors.New("failed to read frame")
	// ErrClosed is returned when reading from a closed camera.
	ErrClosed = errors.New("camera is closed")
)

// Source is the raw grabber behind a Camera. *gocv.VideoCapture satisfies it.
type Source interface {
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

// Options configures how a Camera is opened and how frames are prepared.
type Options struct {
	Index  int    // device index for webcams
	File   string // video file path; takes precedence over Index
	Screen bool   // capture the primary screen instead of a device

	Mirror bool // flip frames horizontally
	RGB    bool // also produce an RGB copy of every frame for the model

	Width  int // requested frame width; 0 keeps the device default
	Height int // requested frame height; 0 keeps the device default
}

// Frame is one captured image. BGR is always set; RGB is only populated when
// the camera was opened with RGB conversion. The caller must Close it.
type Frame struct {
	BGR       gocv.Mat
	RGB       gocv.Mat
	Timestamp time.Time
}

// HasRGB reports whether an RGB copy is present.
func (f *Frame) HasRGB() bool {
	return !f.RGB.Empty()
}

// Close releases both images.
func (f *Frame) Close() {
	f.BGR.Close()
	f.RGB.Close()
}

// Camera reads frames from a Source and applies mirroring and colour
// conversion.
type Camera struct {
	src    Source
	index  int
	rgb    bool
	mirror bool
	closed bool
	mu     sync.Mutex
}

// Open opens the frame source described by opts.
func Open(opts Options) (*Camera, error) {
	if opts.Screen {
		src, err := NewScreenSource()
		if err != nil {
			return nil, fmt.Errorf("%w: screen: %v", ErrOpen, err)
		}
		return NewCamera(src, opts), nil
	}

	var device interface{} = opts.Index
	if opts.File != "" {
		device = opts.File
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil || vc == nil || !vc.IsOpened() {
		if vc != nil {
			vc.Close()
		}
		if opts.File != "" {
			return nil, fmt.Errorf("%w: video file %s could not be opened", ErrOpen, opts.File)
		}
		return nil, fmt.Errorf("%w: camera with index %d could not be opened", ErrOpen, opts.Index)
	}

	if opts.File == "" {
		if opts.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		}
		if opts.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
		}
	}

	return NewCamera(vc, opts), nil
}

// NewCamera wraps an already open Source.
func NewCamera(src Source, opts Options) *Camera {
	return &Camera{
		src:    src,
		index:  opts.Index,
		rgb:    opts.RGB,
		mirror: opts.Mirror,
	}
}

// ReadFrame reads a single frame. On failure no frame is returned.
// The caller is responsible for closing the returned Frame.
func (c *Camera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	raw := gocv.NewMat()
	if ok := c.src.Read(&raw); !ok || raw.Empty() {
		raw.Close()
		return nil, ErrReadFailed
	}

	frame := &Frame{Timestamp: time.Now()}

	if c.mirror {
		frame.BGR = gocv.NewMat()
		gocv.Flip(raw, &frame.BGR, 1)
		raw.Close()
	} else {
		frame.BGR = raw
	}

	if c.rgb {
		frame.RGB = gocv.NewMat()
		gocv.CvtColor(frame.BGR, &frame.RGB, gocv.ColorBGRToRGB)
	} else {
		frame.RGB = gocv.NewMat()
	}

	return frame, nil
}

// FrameSize returns the current frame width and height in pixels.
// It uses the source properties when available, otherwise it reads one
// frame and uses its shape, and as a last resort returns 640x480.
func (c *Camera) FrameSize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return DefaultWidth, DefaultHeight
	}

	w := int(c.src.Get(gocv.VideoCaptureFrameWidth))
	h := int(c.src.Get(gocv.VideoCaptureFrameHeight))
	if w > 0 && h > 0 {
		return w, h
	}

	sample := gocv.NewMat()
	defer sample.Close()
	if c.src.Read(&sample) && !sample.Empty() {
		return sample.Cols(), sample.Rows()
	}

	return DefaultWidth, DefaultHeight
}

// NormToPixel converts normalized coordinates (0..1) to pixels using the
// current frame size.
func (c *Camera) NormToPixel(nx, ny float64) image.Point {
	w, h := c.FrameSize()
	return NormToPixel(nx, ny, w, h)
}

// PixelToNorm converts pixel coordinates to normalized coordinates (0..1)
// using the current frame size.
func (c *Camera) PixelToNorm(x, y int) (float64, float64) {
	w, h := c.FrameSize()
	return PixelToNorm(x, y, w, h)
}

// SetMirror turns horizontal flipping on or off for subsequent frames.
func (c *Camera) SetMirror(mirror bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirror = mirror
}

// Mirror reports whether frames are flipped horizontally.
func (c *Camera) Mirror() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror
}

// Index returns the device index the camera was opened with.
func (c *Camera) Index() int {
	return c.index
}

// Close releases the underlying source. Calling it more than once is safe.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.src.Close()
}
