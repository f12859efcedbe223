// Package session ties the measurement and overlay stages together for one
// tracking stream.
//
// A Session owns the only mutable state of the pipeline: the stabilizer
// window and the overlay smoothing state. Frames must be fed in arrival
// order from a single goroutine; run one Session per camera or socket.
package session

import (
	"github.com/google/uuid"

	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/measure"
	"github.com/ayusman/lune/internal/overlay"
	"github.com/ayusman/lune/internal/ringsize"
	"github.com/ayusman/lune/internal/stabilizer"
)

// FallbackDiameterMm sizes the overlay before any measurement exists.
const FallbackDiameterMm = 18.0

// Options configures a Session.
type Options struct {
	Profile   calibration.Profile
	Reference *calibration.ReferenceScale
	Window    int
	Tolerance float64
	Overlay   overlay.Config

	// TargetDiameterMm pins the overlay to a chosen ring size. Zero follows
	// the live measurement.
	TargetDiameterMm float64
}

// DefaultOptions returns the options used for live tracking.
func DefaultOptions() Options {
	return Options{
		Window:    10,
		Tolerance: 0.10,
		Overlay:   overlay.DefaultConfig(),
	}
}

// Frame is one pose-detector delivery. A nil Hand is a miss.
type Frame struct {
	Hand        *detector.Hand    `json:"hand,omitempty" msgpack:"hand,omitempty"`
	Viewport    geometry.Viewport `json:"viewport" msgpack:"viewport"`
	TimestampMs int64             `json:"timestamp_ms" msgpack:"timestamp_ms"`
}

// Placement guides the user toward a usable hand position.
type Placement struct {
	Centered bool    `json:"centered" msgpack:"centered"`
	CenterX  float64 `json:"center_x" msgpack:"center_x"`
	CenterY  float64 `json:"center_y" msgpack:"center_y"`
}

// Result is everything produced for one frame.
type Result struct {
	SessionID   string                 `json:"session_id" msgpack:"session_id"`
	Seq         uint64                 `json:"seq" msgpack:"seq"`
	TimestampMs int64                  `json:"timestamp_ms" msgpack:"timestamp_ms"`
	Visible     bool                   `json:"visible" msgpack:"visible"`
	Misses      int                    `json:"misses" msgpack:"misses"`
	Sample      measure.Sample         `json:"sample" msgpack:"sample"`
	Measurement stabilizer.Measurement `json:"measurement" msgpack:"measurement"`
	Size        *ringsize.Entry        `json:"size,omitempty" msgpack:"size,omitempty"`
	Transform   overlay.Transform      `json:"transform" msgpack:"transform"`
	Placement   Placement              `json:"placement" msgpack:"placement"`
}

// Session is the per-stream tracking state.
type Session struct {
	ID string

	opts   Options
	stab   *stabilizer.Stabilizer
	engine *overlay.Engine
	state  overlay.State
	misses int
	seq    uint64
}

// New creates a Session with a fresh ID.
func New(opts Options) *Session {
	return &Session{
		ID:     uuid.NewString(),
		opts:   opts,
		stab:   stabilizer.New(stabilizer.WithWindow(opts.Window), stabilizer.WithTolerance(opts.Tolerance)),
		engine: overlay.NewEngine(opts.Overlay),
	}
}

// Options returns the current options.
func (s *Session) Options() Options {
	return s.opts
}

// Process runs one frame through estimation, stabilization, size lookup and
// overlay alignment.
func (s *Session) Process(f Frame) Result {
	s.seq++
	res := Result{
		SessionID:   s.ID,
		Seq:         s.seq,
		TimestampMs: f.TimestampMs,
	}

	var cal *calibration.Calibration
	if f.Hand == nil {
		s.misses++
	} else {
		s.misses = 0
		res.Visible = true
		in := calibration.Input{Reference: s.opts.Reference, Profile: s.opts.Profile}
		res.Sample = measure.Estimate(f.Hand, f.Viewport, in)
		s.stab.Push(res.Sample.DiameterMm)
		if c, ok := calibration.Resolve(f.Hand, f.Viewport, in); ok {
			cal = &c
		}
		res.Placement = placementOf(f.Hand)
	}
	res.Misses = s.misses

	res.Measurement = s.stab.Measurement()
	if res.Measurement.Valid() {
		if e, ok := ringsize.FromDiameter(res.Measurement.DiameterMm); ok {
			res.Size = &e
		}
	}

	res.Transform, s.state = s.engine.Update(s.state, f.Hand, f.Viewport, s.targetDiameter(res), cal)
	return res
}

func (s *Session) targetDiameter(res Result) float64 {
	switch {
	case s.opts.TargetDiameterMm > 0:
		return s.opts.TargetDiameterMm
	case res.Measurement.Valid():
		return res.Measurement.DiameterMm
	case res.Sample.Valid():
		return res.Sample.DiameterMm
	}
	return FallbackDiameterMm
}

func placementOf(h *detector.Hand) Placement {
	x, y := h.Center()
	return Placement{
		Centered: x > 0.25 && x < 0.75 && y > 0.20 && y < 0.80,
		CenterX:  x,
		CenterY:  y,
	}
}

// SetReference installs a reference calibration. Earlier samples were taken
// under a different scale, so the window is cleared.
func (s *Session) SetReference(ref calibration.ReferenceScale) {
	s.opts.Reference = &ref
	s.stab.Reset()
}

// ClearReference returns to anatomical calibration.
func (s *Session) ClearReference() {
	s.opts.Reference = nil
	s.stab.Reset()
}

// SetProfile changes the anatomical profile and clears the window.
func (s *Session) SetProfile(p calibration.Profile) {
	s.opts.Profile = p
	s.stab.Reset()
}

// SetTargetDiameter pins the overlay to a diameter; zero unpins it.
func (s *Session) SetTargetDiameter(mm float64) {
	s.opts.TargetDiameterMm = max(0, mm)
}

// Reset discards the stabilizer window and overlay smoothing.
func (s *Session) Reset() {
	s.stab.Reset()
	s.state = overlay.State{}
	s.misses = 0
}

// Measurement returns the current stabilized measurement.
func (s *Session) Measurement() stabilizer.Measurement {
	return s.stab.Measurement()
}

// State returns the overlay smoothing state.
func (s *Session) State() overlay.State {
	return s.state
}

// Misses returns the number of consecutive frames without a hand.
func (s *Session) Misses() int {
	return s.misses
}
