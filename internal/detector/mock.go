package detector

import (
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results, either a fixed set of
// hands or a scripted sequence consumed one frame at a time.
type MockDetector struct {
	mu       sync.Mutex
	hands    []Hand
	sequence [][]Hand
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetSequence scripts per-call results. Once the sequence is exhausted
// Detect falls back to the hands set with SetHands.
func (m *MockDetector) SetSequence(seq [][]Hand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenPalmLandmarks returns a right hand held flat with the palm facing the
// camera and all fingers pointing up, roughly centred in the frame.
func OpenPalmLandmarks() Hand {
	hand := Hand{
		Handedness: "Right",
		Score:      0.95,
	}

	hand.Points[Wrist] = Landmark{X: 0.5, Y: 0.8}

	hand.Points[ThumbCMC] = Landmark{X: 0.55, Y: 0.75, Z: 0.02}
	hand.Points[ThumbMCP] = Landmark{X: 0.62, Y: 0.70, Z: 0.03}
	hand.Points[ThumbIP] = Landmark{X: 0.68, Y: 0.65, Z: 0.03}
	hand.Points[ThumbTip] = Landmark{X: 0.73, Y: 0.60, Z: 0.03}

	hand.Points[IndexMCP] = Landmark{X: 0.57, Y: 0.60}
	hand.Points[IndexPIP] = Landmark{X: 0.58, Y: 0.50}
	hand.Points[IndexDIP] = Landmark{X: 0.58, Y: 0.43}
	hand.Points[IndexTip] = Landmark{X: 0.58, Y: 0.37}

	hand.Points[MiddleMCP] = Landmark{X: 0.51, Y: 0.58}
	hand.Points[MiddlePIP] = Landmark{X: 0.51, Y: 0.47}
	hand.Points[MiddleDIP] = Landmark{X: 0.51, Y: 0.39}
	hand.Points[MiddleTip] = Landmark{X: 0.51, Y: 0.32}

	hand.Points[RingMCP] = Landmark{X: 0.46, Y: 0.60}
	hand.Points[RingPIP] = Landmark{X: 0.46, Y: 0.55}
	hand.Points[RingDIP] = Landmark{X: 0.46, Y: 0.45}
	hand.Points[RingTip] = Landmark{X: 0.46, Y: 0.38}

	hand.Points[PinkyMCP] = Landmark{X: 0.41, Y: 0.63}
	hand.Points[PinkyPIP] = Landmark{X: 0.39, Y: 0.55}
	hand.Points[PinkyDIP] = Landmark{X: 0.38, Y: 0.49}
	hand.Points[PinkyTip] = Landmark{X: 0.37, Y: 0.44}

	return hand
}

// RotatedLandmarks returns a copy of hand rotated by deg degrees about the
// wrist in the image plane. The rotation is done in normalized space, so it
// is only angle-preserving for square viewports.
func RotatedLandmarks(hand Hand, deg float64) Hand {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	pivot := hand.Points[Wrist]

	out := hand
	for i, p := range hand.Points {
		dx, dy := p.X-pivot.X, p.Y-pivot.Y
		out.Points[i] = Landmark{
			X: pivot.X + dx*cos - dy*sin,
			Y: pivot.Y + dx*sin + dy*cos,
			Z: p.Z,
		}
	}
	return out
}

// ShiftedLandmarks returns a copy of hand translated by (dx, dy) in normalized units.
func ShiftedLandmarks(hand Hand, dx, dy float64) Hand {
	out := hand
	for i, p := range hand.Points {
		out.Points[i] = Landmark{X: p.X + dx, Y: p.Y + dy, Z: p.Z}
	}
	return out
}
