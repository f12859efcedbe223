package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ayusman/lune/internal/app"
	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/store"
)

// cameraHandler controls the camera pipeline's session.
type cameraHandler struct {
	app *app.App
}

type cameraStatus struct {
	Enabled   bool                        `json:"enabled"`
	SessionID string                      `json:"session_id"`
	Profile   calibration.Profile         `json:"profile"`
	Reference *calibration.ReferenceScale `json:"reference,omitempty"`
	TargetMm  float64                     `json:"target_diameter_mm,omitempty"`
	Recording *store.Recording            `json:"recording,omitempty"`
	Last      *session.Result             `json:"last,omitempty"`
}

func (h *cameraHandler) status(w http.ResponseWriter, r *http.Request) {
	opts := h.app.Options()
	st := cameraStatus{
		Enabled:   h.app.IsEnabled(),
		SessionID: h.app.SessionID(),
		Profile:   opts.Profile,
		Reference: opts.Reference,
		TargetMm:  opts.TargetDiameterMm,
	}
	if rec, ok := h.app.Recording(); ok {
		st.Recording = &rec
	}
	if res, ok := h.app.LastResult(); ok {
		st.Last = &res
	}
	writeResponse(w, r, http.StatusOK, st)
}

func (h *cameraHandler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := readRequest(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.app.SetEnabled(req.Enabled)
	h.status(w, r)
}

// setCalibration installs a reference scale; a null reference returns to
// anatomical calibration.
func (h *cameraHandler) setCalibration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reference *calibration.ReferenceScale `json:"reference"`
	}
	if err := readRequest(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Reference == nil {
		h.app.ClearReference()
	} else {
		if !req.Reference.Valid() || req.Reference.MeasuredPx <= 0 {
			writeError(w, r, http.StatusBadRequest, "reference needs positive known_mm and measured_px")
			return
		}
		h.app.SetReference(*req.Reference)
	}
	h.status(w, r)
}

func (h *cameraHandler) setProfile(w http.ResponseWriter, r *http.Request) {
	var req calibration.Profile
	if err := readRequest(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.app.SetProfile(req)
	h.status(w, r)
}

func (h *cameraHandler) setTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DiameterMm float64 `json:"diameter_mm"`
	}
	if err := readRequest(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.DiameterMm < 0 {
		writeError(w, r, http.StatusBadRequest, "diameter_mm must not be negative")
		return
	}
	h.app.SetTargetDiameter(req.DiameterMm)
	h.status(w, r)
}

func (h *cameraHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.app.Reset()
	h.status(w, r)
}

func (h *cameraHandler) startRecording(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 {
		if err := readRequest(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	rec, err := h.app.StartRecording(req.Name)
	switch {
	case errors.Is(err, app.ErrRecording):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNoStore):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		log.Errorw("start recording", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	default:
		writeResponse(w, r, http.StatusCreated, rec)
	}
}

func (h *cameraHandler) stopRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.StopRecording()
	switch {
	case errors.Is(err, app.ErrNotRecording):
		writeError(w, r, http.StatusConflict, err.Error())
	case err != nil:
		log.Errorw("stop recording", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	default:
		writeResponse(w, r, http.StatusOK, rec)
	}
}

func parsePositive(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%v is not positive", v)
	}
	return v, nil
}
