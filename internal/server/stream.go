package server

import (
	"fmt"
	"image"
	"image/color"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/lune/internal/capture"
	"github.com/ayusman/lune/internal/session"
)

// FrameSource supplies preview frames and the overlay to draw on them.
type FrameSource interface {
	// LatestFrame returns a frame the caller must Close.
	LatestFrame() (*gocv.Mat, bool)
	LastResult() (session.Result, bool)
}

var ringColor = color.RGBA{R: 212, G: 175, B: 55, A: 0}

// StreamHandler serves the camera preview as MJPEG with the ring overlay
// drawn in.
type StreamHandler struct {
	source   FrameSource
	mirror   bool
	interval time.Duration
}

// NewStreamHandler returns a handler streaming at the active capture rate.
// Mirror flips frames to match overlay coordinates from a mirrored session.
func NewStreamHandler(source FrameSource, mirror bool) *StreamHandler {
	return &StreamHandler{
		source:   source,
		mirror:   mirror,
		interval: time.Second / capture.ActiveFPS,
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		buf, ok := h.render()
		if !ok {
			continue
		}

		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(buf))
		w.Write(buf)
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

// render encodes the latest frame with the overlay as JPEG.
func (h *StreamHandler) render() ([]byte, bool) {
	frame, ok := h.source.LatestFrame()
	if !ok {
		return nil, false
	}
	defer frame.Close()

	if h.mirror {
		gocv.Flip(*frame, frame, 1)
	}
	if res, ok := h.source.LastResult(); ok && res.Transform.Visible {
		DrawRing(frame, res)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, false
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, true
}

// DrawRing draws the band as a thin ellipse across the finger at the
// transform's position. The band's width runs along the rotated x axis.
func DrawRing(frame *gocv.Mat, res session.Result) {
	t := res.Transform
	center := image.Pt(int(t.Position.X), int(t.Position.Y))
	axes := image.Pt(int(t.ScalePx/2), max(2, int(t.ScalePx/8)))
	gocv.Ellipse(frame, center, axes, t.RotationDeg, 0, 360, ringColor, 2)
}
