// Package handsize classifies a hand into a size bucket from its palm width
// relative to the frame.
package handsize

import (
	"fmt"
	"math"
	"strings"

	"github.com/ayusman/lune/internal/detector"
)

// Gender selects the anatomical tables used for classification and calibration.
type Gender int

const (
	Female Gender = iota
	Male
	Child
)

// String returns the lowercase gender name.
func (g Gender) String() string {
	switch g {
	case Female:
		return "female"
	case Male:
		return "male"
	case Child:
		return "child"
	}
	return fmt.Sprintf("Gender(%d)", int(g))
}

// ParseGender parses a gender name, case-insensitively.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "female", "f":
		return Female, nil
	case "male", "m":
		return Male, nil
	case "child", "c":
		return Child, nil
	}
	return Female, fmt.Errorf("unknown gender %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (g Gender) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Gender) UnmarshalText(text []byte) error {
	parsed, err := ParseGender(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Size is a hand size bucket. SizeAuto asks calibration to classify the
// hand from the current frame instead of using a fixed bucket.
type Size int

const (
	SizeAuto Size = iota
	XS
	S
	M
	L
	XL
)

var sizeNames = [...]string{"auto", "xs", "s", "m", "l", "xl"}

// String returns the lowercase bucket name.
func (s Size) String() string {
	if s < SizeAuto || s > XL {
		return fmt.Sprintf("Size(%d)", int(s))
	}
	return sizeNames[s]
}

// ParseSize parses a bucket name, case-insensitively. The empty string is SizeAuto.
func ParseSize(str string) (Size, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	if str == "" {
		return SizeAuto, nil
	}
	for i, name := range sizeNames {
		if name == str {
			return Size(i), nil
		}
	}
	return SizeAuto, fmt.Errorf("unknown hand size %q", str)
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// thresholds holds the upper palm-ratio bound of xs, s, m and l per gender.
// Anything at or above the last bound is xl.
var thresholds = map[Gender][4]float64{
	Male:   {0.20, 0.23, 0.26, 0.29},
	Female: {0.17, 0.20, 0.23, 0.26},
	Child:  {0.12, 0.15, 0.18, 0.21},
}

// Classify buckets a palm width by its ratio to the viewport width.
// Every input maps to a bucket; a non-positive viewport width yields XS.
func Classify(palmWidthPx, viewportWidth float64, g Gender) Size {
	bounds, ok := thresholds[g]
	if !ok {
		bounds = thresholds[Female]
	}
	if viewportWidth <= 0 {
		return XS
	}

	ratio := palmWidthPx / viewportWidth
	for i, bound := range bounds {
		if ratio < bound {
			return XS + Size(i)
		}
	}
	return XL
}

// EstimateGender guesses a gender from the index-to-ring finger length
// ratio (2D:4D). Ratios below 0.95 read as male. It never returns Child.
func EstimateGender(h *detector.Hand) Gender {
	if h == nil {
		return Female
	}
	index := span(h.Points[detector.IndexMCP], h.Points[detector.IndexTip])
	ring := span(h.Points[detector.RingMCP], h.Points[detector.RingTip])
	if ring == 0 {
		return Female
	}
	if index/ring < 0.95 {
		return Male
	}
	return Female
}

func span(a, b detector.Landmark) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
