// Package detector provides hand detection interfaces and landmark types for ring measurement.
package detector

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

// Landmark is a single hand keypoint normalized to the viewport, each axis in [0,1].
// Z is the relative depth reported by the detector and may be zero.
type Landmark struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Hand represents the 21 hand landmarks detected by MediaPipe.
type Hand struct {
	Points     [NumLandmarks]Landmark `json:"points" msgpack:"points"`
	Handedness string                 `json:"handedness" msgpack:"handedness"` // "Left" or "Right"
	Score      float64                `json:"score" msgpack:"score"`
}

// Finger identifies one of the five digits.
type Finger int

const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
)

var fingerNames = [...]string{"thumb", "index", "middle", "ring", "pinky"}

// String returns the lowercase finger name.
func (f Finger) String() string {
	if f < Thumb || f > Pinky {
		return "unknown"
	}
	return fingerNames[f]
}

// FingerJoints holds the four joints of a finger from base to tip.
// For the thumb Base is the CMC joint and Middle the IP joint.
type FingerJoints struct {
	Base   Landmark `json:"base"`
	Middle Landmark `json:"middle"`
	Upper  Landmark `json:"upper"`
	Tip    Landmark `json:"tip"`
}

// Finger returns the joints of the given finger.
func (h *Hand) Finger(f Finger) FingerJoints {
	base := 1 + int(f)*4
	return FingerJoints{
		Base:   h.Points[base],
		Middle: h.Points[base+1],
		Upper:  h.Points[base+2],
		Tip:    h.Points[base+3],
	}
}

// Bounds returns the normalized bounding box of all landmarks.
func (h *Hand) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = 1, 1
	for _, p := range h.Points {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return minX, minY, maxX, maxY
}

// Center returns the centre of the landmark bounding box.
func (h *Hand) Center() (x, y float64) {
	minX, minY, maxX, maxY := h.Bounds()
	return (minX + maxX) / 2, (minY + maxY) / 2
}

// FromPoints builds a Hand from a variable-length point list.
// It returns nil when fewer than NumLandmarks points are supplied, which is
// how a partial detection is reported to the measurement code.
func FromPoints(points []Landmark) *Hand {
	if len(points) < NumLandmarks {
		return nil
	}
	h := &Hand{}
	copy(h.Points[:], points)
	return h
}
