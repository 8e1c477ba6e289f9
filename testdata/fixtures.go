// Package testdata generates synthetic frames and video clips for tests.
package testdata

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame returns a w x h BGR frame with a horizontal gradient and a white
// marker square in the left quarter. The marker makes mirroring visible.
func Frame(w, h, seed int) gocv.Mat {
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for x := 0; x < w; x++ {
		v := uint8((x*255/max(w-1, 1) + seed*7) % 256)
		gocv.Line(&m, image.Pt(x, 0), image.Pt(x, h-1), color.RGBA{R: v / 2, G: v / 3, B: v}, 1)
	}

	side := max(min(w, h)/8, 2)
	marker := image.Rect(w/8, h/2-side/2, w/8+side, h/2+side/2)
	gocv.Rectangle(&m, marker, color.RGBA{R: 255, G: 255, B: 255}, -1)
	return m
}

// Sequence returns n frames of size w x h. Release them with CloseAll.
func Sequence(n, w, h int) []*gocv.Mat {
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		f := Frame(w, h, i)
		frames[i] = &f
	}
	return frames
}

// CloseAll releases every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// WriteVideo encodes frames as an MJPG clip at path.
func WriteVideo(path string, frames []*gocv.Mat, fps float64) error {
	if len(frames) == 0 {
		return fmt.Errorf("write video %s: no frames", path)
	}

	w, h := frames[0].Cols(), frames[0].Rows()
	writer, err := gocv.VideoWriterFile(path, "MJPG", fps, w, h, true)
	if err != nil {
		return fmt.Errorf("open video writer %s: %w", path, err)
	}
	defer writer.Close()

	if !writer.IsOpened() {
		return fmt.Errorf("open video writer %s: codec unavailable", path)
	}

	for i, f := range frames {
		if err := writer.Write(*f); err != nil {
			return fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	return nil
}
