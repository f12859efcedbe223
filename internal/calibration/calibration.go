// Package calibration establishes the millimetres-per-pixel factor used to
// turn landmark spans into physical lengths.
//
// Two strategies exist. A ReferenceScale maps an object of known size (a
// credit card, a ruler mark) to its measured pixel length. Without one, the
// hand's own palm width is compared with an anatomical average selected by
// gender and size bucket.
package calibration

import (
	"fmt"

	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/handsize"
)

// Reference object lengths offered by the calibration flow.
const (
	CreditCardWidthMm = 85.6
	RulerShortMm      = 50.0
	RulerLongMm       = 100.0
)

// MinPalmWidthPx is the palm span below which anatomical calibration is
// refused; the hand is too small, too far away, or edge-on.
const MinPalmWidthPx = 10.0

// Method names the strategy that produced a Calibration.
type Method int

const (
	MethodAnatomical Method = iota
	MethodReference
)

// String returns "landmarks" or "reference".
func (m Method) String() string {
	if m == MethodReference {
		return "reference"
	}
	return "landmarks"
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	switch string(text) {
	case "reference":
		*m = MethodReference
	case "landmarks", "":
		*m = MethodAnatomical
	default:
		return fmt.Errorf("unknown calibration method %q", text)
	}
	return nil
}

// ReferenceScale anchors calibration to an object of known physical length.
type ReferenceScale struct {
	KnownMm    float64 `json:"known_mm" msgpack:"known_mm"`
	MeasuredPx float64 `json:"measured_px" msgpack:"measured_px"`
}

// FromRuler builds a ReferenceScale from an on-screen line the user
// stretched to match knownMm on a physical ruler.
func FromRuler(lineLengthPx, knownMm float64) ReferenceScale {
	return ReferenceScale{KnownMm: knownMm, MeasuredPx: lineLengthPx}
}

// Valid reports whether the scale carries a positive known length.
func (r ReferenceScale) Valid() bool {
	return r.KnownMm > 0
}

// MmPerPixel returns KnownMm / max(1, MeasuredPx).
func (r ReferenceScale) MmPerPixel() float64 {
	return r.KnownMm / max(1, r.MeasuredPx)
}

// Profile selects the anatomical palm width estimate.
type Profile struct {
	Gender handsize.Gender `json:"gender" msgpack:"gender"`
	Size   handsize.Size   `json:"size" msgpack:"size"`
}

// Input is the calibration source for one frame. A nil or invalid
// Reference falls back to the anatomical Profile.
type Input struct {
	Reference *ReferenceScale
	Profile   Profile
}

// Calibration is a resolved pixel-to-millimetre conversion.
type Calibration struct {
	Method  Method        `json:"method" msgpack:"method"`
	MmPerPx float64       `json:"mm_per_px" msgpack:"mm_per_px"`
	Size    handsize.Size `json:"size,omitempty" msgpack:"size,omitempty"`
}

// ToMm converts a pixel length to millimetres.
func (c Calibration) ToMm(px float64) float64 {
	return px * c.MmPerPx
}

// PxPerMm returns the inverse factor, or 0 for an empty calibration.
func (c Calibration) PxPerMm() float64 {
	if c.MmPerPx <= 0 {
		return 0
	}
	return 1 / c.MmPerPx
}

// FromReference calibrates from a known reference object.
func FromReference(ref ReferenceScale) Calibration {
	return Calibration{Method: MethodReference, MmPerPx: ref.MmPerPixel()}
}

// palmWidthMm holds estimated palm widths in millimetres indexed by
// gender and by size bucket XS..XL.
var palmWidthMm = map[handsize.Gender][5]float64{
	handsize.Male:   {76, 80, 84, 88, 92},
	handsize.Female: {68, 72, 76, 80, 84},
	handsize.Child:  {52, 56, 60, 64, 68},
}

// PalmWidthMm returns the anatomical palm width estimate for a gender and
// bucket. SizeAuto reads as M.
func PalmWidthMm(g handsize.Gender, s handsize.Size) float64 {
	widths, ok := palmWidthMm[g]
	if !ok {
		widths = palmWidthMm[handsize.Female]
	}
	if s < handsize.XS || s > handsize.XL {
		s = handsize.M
	}
	return widths[s-handsize.XS]
}

// Anatomical calibrates from a measured palm width. When the profile size
// is SizeAuto the bucket is classified from the palm ratio. It returns
// false when the palm span is under MinPalmWidthPx.
func Anatomical(palmWidthPx, viewportWidth float64, p Profile) (Calibration, bool) {
	if palmWidthPx < MinPalmWidthPx {
		return Calibration{}, false
	}

	size := p.Size
	if size == handsize.SizeAuto {
		size = handsize.Classify(palmWidthPx, viewportWidth, p.Gender)
	}

	pxPerMm := palmWidthPx / PalmWidthMm(p.Gender, size)
	return Calibration{
		Method:  MethodAnatomical,
		MmPerPx: 1 / pxPerMm,
		Size:    size,
	}, true
}

// Resolve picks the calibration for one frame: the reference scale when one
// is supplied, otherwise the anatomical estimate from the hand's palm.
func Resolve(h *detector.Hand, vp geometry.Viewport, in Input) (Calibration, bool) {
	if in.Reference != nil && in.Reference.Valid() {
		return FromReference(*in.Reference), true
	}
	if h == nil {
		return Calibration{}, false
	}
	return Anatomical(geometry.PalmWidthPx(h, vp), vp.Width, in.Profile)
}
