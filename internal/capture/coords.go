package capture

import (
	"image"
	"math"
)

// roundTripULPs is how many units in the last place a scaled value may sit
// below an integer and still count as that integer. It covers the rounding
// of x/w*w so a pixel converted to normalized space and back is unchanged.
const roundTripULPs = 4

// NormToPixel scales normalized coordinates to a width x height frame.
// Fractions are truncated toward zero; no clamping is applied.
func NormToPixel(nx, ny float64, width, height int) image.Point {
	return image.Pt(scale(nx, width), scale(ny, height))
}

func scale(v float64, size int) int {
	p := v * float64(size)
	r := math.Round(p)
	if math.Abs(p-r) <= roundTripULPs*0x1p-52*math.Abs(p) {
		return int(r)
	}
	return int(p)
}

// PixelToNorm divides pixel coordinates by the frame size.
func PixelToNorm(x, y, width, height int) (float64, float64) {
	return float64(x) / float64(width), float64(y) / float64(height)
}
