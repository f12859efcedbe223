package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/handsize"
	"github.com/ayusman/lune/internal/session"
)

// frameRequest is one detector delivery sent by a client. Empty landmarks
// mean no hand was found.
type frameRequest struct {
	Landmarks   []detector.Landmark `json:"landmarks"`
	Viewport    geometry.Viewport   `json:"viewport"`
	TimestampMs int64               `json:"timestamp_ms"`
}

func (f frameRequest) frame() (session.Frame, error) {
	if !f.Viewport.Valid() {
		return session.Frame{}, fmt.Errorf("invalid viewport %vx%v", f.Viewport.Width, f.Viewport.Height)
	}
	out := session.Frame{Viewport: f.Viewport, TimestampMs: f.TimestampMs}
	if len(f.Landmarks) == 0 {
		return out, nil
	}
	if len(f.Landmarks) < detector.NumLandmarks {
		return session.Frame{}, fmt.Errorf("expected %d landmarks, got %d", detector.NumLandmarks, len(f.Landmarks))
	}
	out.Hand = detector.FromPoints(f.Landmarks)
	return out, nil
}

type measureRequest struct {
	frameRequest
	Gender    handsize.Gender             `json:"gender"`
	Size      handsize.Size               `json:"size"`
	Reference *calibration.ReferenceScale `json:"reference,omitempty"`
}

// handleMeasure measures a single frame with a fresh session.
func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	var req measureRequest
	if err := readRequest(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	frame, err := req.frame()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if frame.Hand == nil {
		writeError(w, r, http.StatusBadRequest, "landmarks are required")
		return
	}

	opts := s.config.Session
	opts.Profile = calibration.Profile{Gender: req.Gender, Size: req.Size}
	opts.Reference = req.Reference

	writeResponse(w, r, http.StatusOK, session.New(opts).Process(frame))
}
