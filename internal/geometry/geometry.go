// Package geometry converts normalized hand landmarks into viewport pixel
// distances and angles.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/lune/internal/detector"
)

// Viewport is the pixel frame the landmarks are normalized against.
// It must match the frame size the pose detector was given.
type Viewport struct {
	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`
}

// Valid reports whether both dimensions are positive.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}

// Project maps a normalized landmark to viewport pixels on the image plane.
// When mirrored, x is flipped to match a front-camera preview. Z is dropped.
func Project(l detector.Landmark, vp Viewport, mirrored bool) r3.Vec {
	x := l.X
	if mirrored {
		x = 1 - x
	}
	return r3.Vec{X: x * vp.Width, Y: l.Y * vp.Height}
}

// PixelDistance returns the 2D distance in pixels between two landmarks.
// Depth is ignored.
func PixelDistance(a, b detector.Landmark, vp Viewport) float64 {
	return r3.Norm(r3.Sub(Project(a, vp, false), Project(b, vp, false)))
}

// AngleDegrees returns atan2(dy, dx) from a to b in degrees, unnormalized.
func AngleDegrees(a, b detector.Landmark) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
}

// NormalizeRotation folds an angle into [-90, 90]. A band overlay is
// symmetric under a half turn, so θ and θ±180 are the same placement.
func NormalizeRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	for deg > 90 {
		deg -= 180
	}
	for deg < -90 {
		deg += 180
	}
	return deg
}

// BandRotation returns the rotation of a ring band laid across the finger
// running from mcp to pip, measured from the screen horizontal. A finger
// pointing straight up or down yields 0. When mirrored the horizontal
// component is flipped to match a mirrored preview.
func BandRotation(mcp, pip detector.Landmark, mirrored bool) float64 {
	if mirrored {
		mcp.X, pip.X = 1-mcp.X, 1-pip.X
	}
	return NormalizeRotation(AngleDegrees(mcp, pip) + 90)
}

// PalmWidthPx is the pixel span between the index and pinky knuckles.
func PalmWidthPx(h *detector.Hand, vp Viewport) float64 {
	return PixelDistance(h.Points[detector.IndexMCP], h.Points[detector.PinkyMCP], vp)
}

// KnuckleSpanPx is the pixel span between the ring finger MCP and PIP joints.
func KnuckleSpanPx(h *detector.Hand, vp Viewport) float64 {
	return PixelDistance(h.Points[detector.RingMCP], h.Points[detector.RingPIP], vp)
}
