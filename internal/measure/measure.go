// Package measure turns one frame of hand landmarks into a raw ring-finger
// diameter estimate.
package measure

import (
	"math"

	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/handsize"
)

// Anatomically plausible ring-finger diameter range.
const (
	MinDiameterMm = 14.0
	MaxDiameterMm = 22.2
)

// FingerWidthFactor maps the ring MCP-to-PIP span to usable finger width.
const FingerWidthFactor = 0.8

// Point is a pixel position in the viewport.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Sample is one frame's raw measurement. A zero DiameterMm means the frame
// produced no usable measurement; every other value lies in
// [MinDiameterMm, MaxDiameterMm].
type Sample struct {
	DiameterMm      float64            `json:"diameter_mm" msgpack:"diameter_mm"`
	CircumferenceMm float64            `json:"circumference_mm" msgpack:"circumference_mm"`
	Method          calibration.Method `json:"method" msgpack:"method"`
	Size            handsize.Size      `json:"hand_size,omitempty" msgpack:"hand_size,omitempty"`
	KnuckleSpanPx   float64            `json:"knuckle_span_px" msgpack:"knuckle_span_px"`
	Coordinates     Point              `json:"coordinates" msgpack:"coordinates"`
}

// Valid reports whether the sample carries a measurement.
func (s Sample) Valid() bool {
	return s.DiameterMm > 0
}

// Clamp bounds a diameter to [MinDiameterMm, MaxDiameterMm].
func Clamp(mm float64) float64 {
	return math.Min(MaxDiameterMm, math.Max(MinDiameterMm, mm))
}

// Estimate measures the ring finger of h. It never fails: a nil hand, an
// invalid viewport or an unusable calibration yields the zero Sample.
func Estimate(h *detector.Hand, vp geometry.Viewport, in calibration.Input) Sample {
	if h == nil || !vp.Valid() {
		return Sample{}
	}

	cal, ok := calibration.Resolve(h, vp, in)
	if !ok || cal.MmPerPx <= 0 {
		return Sample{}
	}

	sample := FromSpan(geometry.KnuckleSpanPx(h, vp), cal)
	pip := geometry.Project(h.Points[detector.RingPIP], vp, false)
	sample.Coordinates = Point{X: pip.X, Y: pip.Y}
	return sample
}

// FromSpan converts a ring knuckle span in pixels with an already resolved
// calibration.
func FromSpan(knuckleSpanPx float64, cal calibration.Calibration) Sample {
	if knuckleSpanPx <= 0 || cal.MmPerPx <= 0 {
		return Sample{}
	}
	d := Clamp(cal.ToMm(knuckleSpanPx * FingerWidthFactor))
	s := Sample{
		DiameterMm:      d,
		CircumferenceMm: d * math.Pi,
		Method:          cal.Method,
		KnuckleSpanPx:   knuckleSpanPx,
	}
	if cal.Method == calibration.MethodAnatomical {
		s.Size = cal.Size
	}
	return s
}
