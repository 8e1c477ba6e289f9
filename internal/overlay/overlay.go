// Package overlay draws hand landmarks and a frame-rate label onto BGR frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/ayusman/handtrack/internal/detector"
	"gocv.io/x/gocv"
)

// Style describes how a landmark or connection is drawn.
type Style struct {
	Color     color.RGBA
	Thickness int
	Radius    int
}

// Options configures an Overlay.
type Options struct {
	Landmark    Style
	Connection  Style
	FPSPosition image.Point
	FPSScale    float64
}

var (
	white     = color.RGBA{R: 255, G: 255, B: 255}
	fpsText   = color.RGBA{R: 200, G: 0, B: 0}
	fpsBanner = color.RGBA{R: 30, G: 30, B: 30}
)

const (
	fpsFont      = gocv.FontHersheyDuplex
	fpsThickness = 2
)

// DefaultOptions returns red landmarks on teal connections and the FPS label
// in the top-left corner.
func DefaultOptions() Options {
	return Options{
		Landmark:    Style{Color: color.RGBA{R: 255, G: 0, B: 0}, Thickness: 2, Radius: 2},
		Connection:  Style{Color: color.RGBA{R: 0, G: 100, B: 100}, Thickness: 2, Radius: 1},
		FPSPosition: image.Pt(10, 30),
		FPSScale:    0.8,
	}
}

// Overlay annotates frames. It owns the FPS meter that DrawFPS reports.
type Overlay struct {
	opts Options
	fps  *FPSMeter
}

// New creates an Overlay.
func New(opts Options) *Overlay {
	return &Overlay{opts: opts, fps: NewFPSMeter()}
}

// Tick records one frame on the FPS meter. Call it exactly once per frame.
func (o *Overlay) Tick() float64 {
	return o.fps.Tick()
}

// FPS returns the smoothed frame rate.
func (o *Overlay) FPS() float64 {
	return o.fps.Value()
}

// DrawHand draws the skeleton connections and then the landmarks of one hand.
// Landmarks outside the frame are skipped together with their connections.
func (o *Overlay) DrawHand(frame *gocv.Mat, hand *detector.HandLandmarks) {
	w, h := frame.Cols(), frame.Rows()

	var (
		pts     [detector.NumLandmarks]image.Point
		visible [detector.NumLandmarks]bool
	)
	for i, p := range hand.Points {
		pts[i], visible[i] = LandmarkPixel(p.X, p.Y, w, h)
	}

	cs := o.opts.Connection
	for _, c := range detector.HandConnections {
		if visible[c.From] && visible[c.To] {
			gocv.Line(frame, pts[c.From], pts[c.To], cs.Color, cs.Thickness)
		}
	}

	ls := o.opts.Landmark
	border := borderRadius(ls.Radius)
	for i := range pts {
		if !visible[i] {
			continue
		}
		gocv.Circle(frame, pts[i], border, white, ls.Thickness)
		gocv.Circle(frame, pts[i], ls.Radius, ls.Color, ls.Thickness)
	}
}

// DrawFPS draws "FPS: N" over a dark banner.
func (o *Overlay) DrawFPS(frame *gocv.Mat) {
	text := FPSLabel(o.fps.Value())
	origin := o.opts.FPSPosition
	size := gocv.GetTextSize(text, fpsFont, o.opts.FPSScale, fpsThickness)

	gocv.Rectangle(frame, fpsBannerRect(origin, size), fpsBanner, -1)
	gocv.PutTextWithParams(frame, text, origin, fpsFont, o.opts.FPSScale, fpsText, fpsThickness, gocv.LineAA, false)
}

// FPSLabel formats the frame rate the way it is shown on screen.
func FPSLabel(fps float64) string {
	return fmt.Sprintf("FPS: %d", int(fps))
}

// LandmarkPixel maps a normalized landmark to pixel coordinates. It reports
// false when either coordinate lies outside [0, 1], beyond floating point
// slack. In-range values map to min(floor(v*size), size-1).
func LandmarkPixel(nx, ny float64, width, height int) (image.Point, bool) {
	if !inUnit(nx) || !inUnit(ny) {
		return image.Point{}, false
	}
	x := min(int(math.Floor(nx*float64(width))), width-1)
	y := min(int(math.Floor(ny*float64(height))), height-1)
	return image.Pt(max(x, 0), max(y, 0)), true
}

func inUnit(v float64) bool {
	const tol = 1e-9
	return (v > 0 || math.Abs(v) <= tol) && (v < 1 || math.Abs(v-1) <= tol)
}

func borderRadius(r int) int {
	return max(r+1, int(float64(r)*1.2))
}

func fpsBannerRect(origin, text image.Point) image.Rectangle {
	return image.Rect(origin.X-4, origin.Y-text.Y-4, origin.X+text.X+4, origin.Y+6)
}
