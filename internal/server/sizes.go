package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ayusman/lune/internal/ringsize"
)

type lookupResponse struct {
	ringsize.Entry
	BandWidthMm float64 `json:"band_width_mm,omitempty"`
	AdjustedUS  float64 `json:"adjusted_us,omitempty"`
	Advice      string  `json:"advice,omitempty"`
}

func (s *Server) handleSizes(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, ringsize.Table())
}

// handleLookup resolves exactly one of diameter, circumference, us, uk or
// eu to a table entry.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	entry, ok, err := lookup(q.Get("diameter"), q.Get("circumference"), q.Get("us"), q.Get("uk"), q.Get("eu"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "no match")
		return
	}

	resp := lookupResponse{Entry: entry}
	if raw := q.Get("band_width"); raw != "" {
		width, err := strconv.ParseFloat(raw, 64)
		if err != nil || width <= 0 {
			writeError(w, r, http.StatusBadRequest, "band_width must be a positive number")
			return
		}
		resp.BandWidthMm = width
		resp.AdjustedUS = ringsize.AdjustForBandWidth(entry.US, width)
		resp.Advice = ringsize.BandWidthAdvice(width)
	}

	writeResponse(w, r, http.StatusOK, resp)
}

func lookup(diameter, circumference, us, uk, eu string) (ringsize.Entry, bool, error) {
	switch {
	case diameter != "":
		mm, err := strconv.ParseFloat(diameter, 64)
		if err != nil {
			return ringsize.Entry{}, false, fmt.Errorf("invalid diameter %q", diameter)
		}
		e, ok := ringsize.FromDiameter(mm)
		return e, ok, nil
	case circumference != "":
		mm, err := strconv.ParseFloat(circumference, 64)
		if err != nil {
			return ringsize.Entry{}, false, fmt.Errorf("invalid circumference %q", circumference)
		}
		e, ok := ringsize.FromCircumference(mm)
		return e, ok, nil
	case us != "":
		v, err := strconv.ParseFloat(us, 64)
		if err != nil {
			return ringsize.Entry{}, false, fmt.Errorf("invalid us size %q", us)
		}
		e, ok := ringsize.ByUS(v)
		return e, ok, nil
	case uk != "":
		e, ok := ringsize.ByUK(uk)
		return e, ok, nil
	case eu != "":
		v, err := strconv.Atoi(eu)
		if err != nil {
			return ringsize.Entry{}, false, fmt.Errorf("invalid eu size %q", eu)
		}
		e, ok := ringsize.ByEU(v)
		return e, ok, nil
	}
	return ringsize.Entry{}, false, fmt.Errorf("one of diameter, circumference, us, uk or eu is required")
}
