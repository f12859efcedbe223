// Package overlay computes the screen transform that keeps a ring overlay
// aligned with the tracked ring finger.
//
// Each frame produces a raw pose from the landmarks. The raw pose is
// blended into a smoothed pose per channel, and the smoothed pose is only
// committed once it moves past a per-channel deadzone. The committed pose is
// clamped into the viewport for display. All smoothing state lives in State,
// which the caller threads from one Update to the next.
package overlay

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
)

// Config tunes smoothing and scale.
type Config struct {
	PositionAlpha float64 `json:"position_alpha"`
	RotationAlpha float64 `json:"rotation_alpha"`
	ScaleAlpha    float64 `json:"scale_alpha"`

	PositionDeadzonePx  float64 `json:"position_deadzone_px"`
	RotationDeadzoneDeg float64 `json:"rotation_deadzone_deg"`
	ScaleDeadzonePx     float64 `json:"scale_deadzone_px"`

	MinScalePx     float64 `json:"min_scale_px"`
	AvgPalmWidthMm float64 `json:"avg_palm_width_mm"`

	// Mirror flips the horizontal axis for a front-camera preview.
	Mirror bool `json:"mirror"`
}

// DefaultConfig returns the tuning used by the live overlay.
func DefaultConfig() Config {
	return Config{
		PositionAlpha:       0.22,
		RotationAlpha:       0.18,
		ScaleAlpha:          0.15,
		PositionDeadzonePx:  1.5,
		RotationDeadzoneDeg: 0.8,
		ScaleDeadzonePx:     0.8,
		MinScalePx:          24,
		AvgPalmWidthMm:      79,
		Mirror:              true,
	}
}

// Point is a position in viewport pixels.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

func (p Point) vec() r3.Vec { return r3.Vec{X: p.X, Y: p.Y} }

// Pose is one overlay placement before viewport clamping.
type Pose struct {
	Position    Point   `json:"position" msgpack:"position"`
	RotationDeg float64 `json:"rotation_deg" msgpack:"rotation_deg"`
	ScalePx     float64 `json:"scale_px" msgpack:"scale_px"`
}

// State carries smoothing across frames. The zero value is an engine that
// has not seen a hand yet.
type State struct {
	Initialized bool `json:"initialized" msgpack:"initialized"`
	Smoothed    Pose `json:"smoothed" msgpack:"smoothed"`
	Committed   Pose `json:"committed" msgpack:"committed"`
}

// Posture holds coarse hand orientation hints for the capture guide.
type Posture struct {
	Slanted     bool `json:"slanted" msgpack:"slanted"`
	SidePortion bool `json:"side_portion" msgpack:"side_portion"`
	OuterHand   bool `json:"outer_hand" msgpack:"outer_hand"`
	InnerHand   bool `json:"inner_hand" msgpack:"inner_hand"`
}

// Transform is the placement handed to the renderer for one frame.
type Transform struct {
	Position        Point   `json:"position" msgpack:"position"`
	RotationDeg     float64 `json:"rotation_deg" msgpack:"rotation_deg"`
	ScalePx         float64 `json:"scale_px" msgpack:"scale_px"`
	Visible         bool    `json:"visible" msgpack:"visible"`
	ViewportClamped bool    `json:"viewport_clamped" msgpack:"viewport_clamped"`
	Posture         Posture `json:"posture" msgpack:"posture"`
}

// Engine aligns the overlay. It holds configuration only and is safe to
// share; per-session state is passed through Update.
type Engine struct {
	cfg Config
}

// NewEngine returns an Engine using cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// PxPerMm returns the display scale: the reference calibration when one is
// active, otherwise the palm span over the average palm width. A palm span
// of 1px or less falls back to viewport width / 300.
func (e *Engine) PxPerMm(h *detector.Hand, vp geometry.Viewport, cal *calibration.Calibration) float64 {
	if cal != nil && cal.Method == calibration.MethodReference && cal.MmPerPx > 0 {
		return cal.PxPerMm()
	}
	palm := geometry.PalmWidthPx(h, vp)
	if palm <= 1 {
		return vp.Width / 300
	}
	return palm / e.cfg.AvgPalmWidthMm
}

// Raw returns the unsmoothed pose for one hand.
func (e *Engine) Raw(h *detector.Hand, vp geometry.Viewport, diameterMm float64, cal *calibration.Calibration) Pose {
	pip := geometry.Project(h.Points[detector.RingPIP], vp, e.cfg.Mirror)
	return Pose{
		Position:    Point{X: pip.X, Y: pip.Y},
		RotationDeg: geometry.BandRotation(h.Points[detector.RingMCP], h.Points[detector.RingPIP], e.cfg.Mirror),
		ScalePx:     math.Max(e.cfg.MinScalePx, diameterMm*e.PxPerMm(h, vp, cal)),
	}
}

// Update advances the alignment by one frame. A nil hand yields a hidden
// transform and returns st unchanged so tracking resumes from where it left.
func (e *Engine) Update(st State, h *detector.Hand, vp geometry.Viewport, diameterMm float64, cal *calibration.Calibration) (Transform, State) {
	if h == nil || !vp.Valid() {
		return Transform{}, st
	}

	raw := e.Raw(h, vp, diameterMm, cal)
	if !st.Initialized {
		st = State{Initialized: true, Smoothed: raw, Committed: raw}
	} else {
		st.Smoothed = e.smooth(st.Smoothed, raw)
		st.Committed = e.gate(st.Committed, st.Smoothed)
	}

	t := Transform{
		RotationDeg: st.Committed.RotationDeg,
		ScalePx:     st.Committed.ScalePx,
		Visible:     true,
		Posture:     PostureOf(h, st.Committed.RotationDeg),
	}
	t.Position, t.ViewportClamped = clampToViewport(st.Committed.Position, st.Committed.ScalePx/2, vp)
	return t, st
}

func (e *Engine) smooth(prev, raw Pose) Pose {
	pos := r3.Add(prev.Position.vec(), r3.Scale(e.cfg.PositionAlpha, r3.Sub(raw.Position.vec(), prev.Position.vec())))
	return Pose{
		Position:    Point{X: pos.X, Y: pos.Y},
		RotationDeg: geometry.NormalizeRotation(prev.RotationDeg + e.cfg.RotationAlpha*geometry.NormalizeRotation(raw.RotationDeg-prev.RotationDeg)),
		ScalePx:     prev.ScalePx + e.cfg.ScaleAlpha*(raw.ScalePx-prev.ScalePx),
	}
}

func (e *Engine) gate(committed, smoothed Pose) Pose {
	if r3.Norm(r3.Sub(smoothed.Position.vec(), committed.Position.vec())) > e.cfg.PositionDeadzonePx {
		committed.Position = smoothed.Position
	}
	if math.Abs(geometry.NormalizeRotation(smoothed.RotationDeg-committed.RotationDeg)) > e.cfg.RotationDeadzoneDeg {
		committed.RotationDeg = smoothed.RotationDeg
	}
	if math.Abs(smoothed.ScalePx-committed.ScalePx) > e.cfg.ScaleDeadzonePx {
		committed.ScalePx = smoothed.ScalePx
	}
	return committed
}

func clampToViewport(p Point, half float64, vp geometry.Viewport) (Point, bool) {
	x := math.Min(vp.Width-half, math.Max(half, p.X))
	y := math.Min(vp.Height-half, math.Max(half, p.Y))
	return Point{X: x, Y: y}, x != p.X || y != p.Y
}

// PostureOf derives orientation hints from the raw landmarks and the band
// rotation.
func PostureOf(h *detector.Hand, rotationDeg float64) Posture {
	outer := h.Points[detector.PinkyMCP].X > h.Points[detector.IndexMCP].X
	return Posture{
		Slanted:     math.Abs(rotationDeg) > 20,
		SidePortion: math.Abs(h.Points[detector.Wrist].Y-h.Points[detector.MiddleMCP].Y) < 0.25,
		OuterHand:   outer,
		InnerHand:   !outer,
	}
}
