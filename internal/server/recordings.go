package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayusman/lune/internal/app"
	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/handsize"
	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/store"
)

type recordingHandler struct {
	store   *store.Store
	session session.Options
}

type createRecordingRequest struct {
	Name     string            `json:"name"`
	Gender   handsize.Gender   `json:"gender"`
	HandSize handsize.Size     `json:"hand_size"`
	Viewport geometry.Viewport `json:"viewport"`
}

type recordedFrame struct {
	TimestampMs int64               `json:"timestamp_ms"`
	Landmarks   []detector.Landmark `json:"landmarks"`
}

type appendFramesRequest struct {
	Frames []recordedFrame `json:"frames"`
}

type replayResponse struct {
	Recording *store.Recording `json:"recording"`
	Results   []session.Result `json:"results"`
}

func (h *recordingHandler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.Recordings().List()
	if err != nil {
		h.internalError(w, r, "list recordings", err)
		return
	}
	if recs == nil {
		recs = []*store.Recording{}
	}
	writeResponse(w, r, http.StatusOK, recs)
}

func (h *recordingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRecordingRequest
	if err := readRequest(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Viewport.Valid() {
		writeError(w, r, http.StatusBadRequest, "viewport width and height must be positive")
		return
	}

	rec := &store.Recording{
		Name:     req.Name,
		Gender:   req.Gender,
		HandSize: req.HandSize,
		Viewport: req.Viewport,
	}
	if err := h.store.Recordings().Create(rec); err != nil {
		h.internalError(w, r, "create recording", err)
		return
	}
	writeResponse(w, r, http.StatusCreated, rec)
}

func (h *recordingHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Recordings().GetByID(mux.Vars(r)["id"])
	if err != nil {
		h.storeError(w, r, "get recording", err)
		return
	}
	writeResponse(w, r, http.StatusOK, rec)
}

func (h *recordingHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Recordings().Delete(mux.Vars(r)["id"]); err != nil {
		h.storeError(w, r, "delete recording", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *recordingHandler) listFrames(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.store.Recordings().GetByID(id); err != nil {
		h.storeError(w, r, "get recording", err)
		return
	}
	frames, err := h.store.Frames().List(id)
	if err != nil {
		h.internalError(w, r, "list frames", err)
		return
	}
	if frames == nil {
		frames = []store.Frame{}
	}
	writeResponse(w, r, http.StatusOK, frames)
}

func (h *recordingHandler) appendFrames(w http.ResponseWriter, r *http.Request) {
	var req appendFramesRequest
	if err := readRequest(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Frames) == 0 {
		writeError(w, r, http.StatusBadRequest, "frames are required")
		return
	}

	frames := make([]store.Frame, len(req.Frames))
	for i, f := range req.Frames {
		if n := len(f.Landmarks); n > 0 && n < detector.NumLandmarks {
			writeError(w, r, http.StatusBadRequest, "each frame needs 21 landmarks or none")
			return
		}
		frames[i] = store.Frame{TimestampMs: f.TimestampMs, Hand: detector.FromPoints(f.Landmarks)}
	}

	count, err := h.store.Frames().Append(mux.Vars(r)["id"], frames)
	if err != nil {
		h.storeError(w, r, "append frames", err)
		return
	}
	writeResponse(w, r, http.StatusOK, map[string]int{"frames": count})
}

// replay runs the recording through a fresh session. The optional
// known_mm and measured_px query parameters apply a reference scale.
func (h *recordingHandler) replay(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	opts := h.session
	if ref, ok, err := referenceFromQuery(r); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	} else if ok {
		opts.Reference = &ref
	}

	rec, err := h.store.Recordings().GetByID(id)
	if err != nil {
		h.storeError(w, r, "get recording", err)
		return
	}
	results, err := app.Replay(h.store, id, opts)
	if err != nil {
		h.storeError(w, r, "replay recording", err)
		return
	}
	writeResponse(w, r, http.StatusOK, replayResponse{Recording: rec, Results: results})
}

func referenceFromQuery(r *http.Request) (calibration.ReferenceScale, bool, error) {
	q := r.URL.Query()
	if q.Get("known_mm") == "" {
		return calibration.ReferenceScale{}, false, nil
	}
	known, err := parsePositive(q.Get("known_mm"))
	if err != nil {
		return calibration.ReferenceScale{}, false, errors.New("known_mm must be a positive number")
	}
	measured, err := parsePositive(q.Get("measured_px"))
	if err != nil {
		return calibration.ReferenceScale{}, false, errors.New("measured_px must be a positive number")
	}
	return calibration.ReferenceScale{KnownMm: known, MeasuredPx: measured}, true, nil
}

func (h *recordingHandler) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "recording not found")
		return
	}
	h.internalError(w, r, op, err)
}

func (h *recordingHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.Errorw(op, "error", err)
	writeError(w, r, http.StatusInternalServerError, "internal error")
}
