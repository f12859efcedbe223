// Package stabilizer smooths per-frame diameter samples with a rolling,
// outlier-rejecting window.
package stabilizer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultWindow    = 8
	DefaultTolerance = 0.12
)

// Measurement is a stabilized diameter with its derived circumference.
type Measurement struct {
	DiameterMm      float64 `json:"diameter_mm" msgpack:"diameter_mm"`
	CircumferenceMm float64 `json:"circumference_mm" msgpack:"circumference_mm"`
	Samples         int     `json:"samples" msgpack:"samples"`
}

// Valid reports whether the measurement is backed by at least one sample.
func (m Measurement) Valid() bool {
	return m.DiameterMm > 0
}

// Option configures a Stabilizer.
type Option func(*Stabilizer)

// WithWindow sets the number of most recent samples considered. Values
// below 1 are ignored.
func WithWindow(n int) Option {
	return func(s *Stabilizer) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithTolerance sets the allowed deviation from the median as a fraction
// of the median. Non-positive values are ignored.
func WithTolerance(tol float64) Option {
	return func(s *Stabilizer) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

// Stabilizer holds a bounded FIFO of raw samples for one tracking session.
// It is not safe for concurrent use.
type Stabilizer struct {
	window    int
	tolerance float64
	samples   []float64
}

// New returns an empty Stabilizer.
func New(opts ...Option) *Stabilizer {
	s := &Stabilizer{
		window:    DefaultWindow,
		tolerance: DefaultTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.samples = make([]float64, 0, s.window)
	return s
}

// Push admits a raw sample, evicting the oldest once the window is full.
// Non-positive and non-finite samples are dropped and it reports false.
func (s *Stabilizer) Push(mm float64) bool {
	if mm <= 0 || math.IsNaN(mm) || math.IsInf(mm, 0) {
		return false
	}
	if len(s.samples) == s.window {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:s.window-1]
	}
	s.samples = append(s.samples, mm)
	return true
}

// Value returns the stabilized diameter, or 0 when empty.
func (s *Stabilizer) Value() float64 {
	return Stabilize(s.samples, s.tolerance, s.window)
}

// Measurement returns the stabilized diameter with its circumference.
func (s *Stabilizer) Measurement() Measurement {
	d := s.Value()
	if d == 0 {
		return Measurement{}
	}
	return Measurement{DiameterMm: d, CircumferenceMm: d * math.Pi, Samples: len(s.samples)}
}

// Len returns the number of buffered samples.
func (s *Stabilizer) Len() int { return len(s.samples) }

// Window returns the configured window size.
func (s *Stabilizer) Window() int { return s.window }

// Tolerance returns the configured median tolerance.
func (s *Stabilizer) Tolerance() float64 { return s.tolerance }

// Samples returns a copy of the buffered samples, oldest first.
func (s *Stabilizer) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

// Reset discards all samples.
func (s *Stabilizer) Reset() {
	s.samples = s.samples[:0]
}

// Stabilize computes the robust mean of the most recent window values:
// values further than tolerance*median from the median are rejected and
// the rest averaged. If every value is rejected the unfiltered mean is
// returned. An empty input yields 0.
func Stabilize(values []float64, tolerance float64, window int) float64 {
	if window > 0 && len(values) > window {
		values = values[len(values)-window:]
	}
	if len(values) == 0 {
		return 0
	}

	med := median(values)
	limit := math.Abs(tolerance * med)

	kept := make([]float64, 0, len(values))
	for _, v := range values {
		if math.Abs(v-med) <= limit {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return stat.Mean(values, nil)
	}
	return stat.Mean(kept, nil)
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
