// Package detector wraps external hand-landmark models behind a small interface.
package detector

import "image"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is a landmark position. X and Y are normalized to the frame
// width and height; Z is relative depth with the wrist as origin.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks holds the 21 landmarks of one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Connection is an edge of the hand skeleton between two landmark indices.
type Connection struct {
	From int
	To   int
}

// HandConnections is the MediaPipe hand skeleton: palm outline, then thumb
// and the four fingers from base to tip.
var HandConnections = []Connection{
	// palm
	{Wrist, ThumbCMC},
	{Wrist, IndexMCP},
	{MiddleMCP, RingMCP},
	{RingMCP, PinkyMCP},
	{IndexMCP, MiddleMCP},
	{Wrist, PinkyMCP},
	// thumb
	{ThumbCMC, ThumbMCP},
	{ThumbMCP, ThumbIP},
	{ThumbIP, ThumbTip},
	// index
	{IndexMCP, IndexPIP},
	{IndexPIP, IndexDIP},
	{IndexDIP, IndexTip},
	// middle
	{MiddleMCP, MiddlePIP},
	{MiddlePIP, MiddleDIP},
	{MiddleDIP, MiddleTip},
	// ring
	{RingMCP, RingPIP},
	{RingPIP, RingDIP},
	{RingDIP, RingTip},
	// pinky
	{PinkyMCP, PinkyPIP},
	{PinkyPIP, PinkyDIP},
	{PinkyDIP, PinkyTip},
}

// Pixels converts every landmark to pixel coordinates for a frame of the
// given size using plain linear scaling.
func (h *HandLandmarks) Pixels(width, height int) [NumLandmarks]image.Point {
	var out [NumLandmarks]image.Point
	for i, p := range h.Points {
		out[i] = image.Pt(int(p.X*float64(width)), int(p.Y*float64(height)))
	}
	return out
}
