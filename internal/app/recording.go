package app

import (
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/store"
)

// StartRecording begins capturing landmark frames under a new recording.
// The viewport is the camera's negotiated resolution, or the configured one
// before the camera opens.
func (a *App) StartRecording(name string) (*store.Recording, error) {
	if a.config.Store == nil {
		return nil, ErrNoStore
	}

	vp := a.viewport()
	opts := a.Options()

	a.smu.Lock()
	defer a.smu.Unlock()

	if a.recording != nil {
		return nil, ErrRecording
	}

	rec := &store.Recording{
		Name:     name,
		Gender:   opts.Profile.Gender,
		HandSize: opts.Profile.Size,
		Viewport: vp,
	}
	if err := a.config.Store.Recordings().Create(rec); err != nil {
		return nil, err
	}
	a.recording = &activeRecording{rec: rec}

	log.Infow("recording started", "recording", rec.ID, "name", name)
	return rec, nil
}

// StopRecording writes any buffered frames and ends the recording.
func (a *App) StopRecording() (*store.Recording, error) {
	a.smu.Lock()
	active := a.recording
	a.recording = nil
	var err error
	if active != nil && len(active.pending) > 0 {
		_, err = a.config.Store.Frames().Append(active.rec.ID, active.pending)
	}
	a.smu.Unlock()

	if active == nil {
		return nil, ErrNotRecording
	}
	if err != nil {
		return nil, err
	}

	rec, err := a.config.Store.Recordings().GetByID(active.rec.ID)
	if err != nil {
		return nil, err
	}

	log.Infow("recording stopped", "recording", rec.ID, "frames", rec.Frames)
	return rec, nil
}

// Recording returns the recording in progress, if any.
func (a *App) Recording() (store.Recording, bool) {
	a.smu.Lock()
	defer a.smu.Unlock()
	if a.recording == nil {
		return store.Recording{}, false
	}
	return *a.recording.rec, true
}

// record buffers a frame and writes the buffer once it fills. It must be
// called with smu held.
func (a *App) record(hand *detector.Hand, ts int64) {
	if a.recording == nil {
		return
	}

	f := store.Frame{TimestampMs: ts}
	if hand != nil {
		h := *hand
		f.Hand = &h
	}
	a.recording.pending = append(a.recording.pending, f)

	if len(a.recording.pending) < RecordFlushSize {
		return
	}
	id := a.recording.rec.ID
	if _, err := a.config.Store.Frames().Append(id, a.recording.pending); err != nil {
		log.Errorw("writing recorded frames", "recording", id, "frames", len(a.recording.pending), "error", err)
	}
	a.recording.pending = nil
}

func (a *App) viewport() geometry.Viewport {
	if w, h := a.Camera().Resolution(); w > 0 && h > 0 {
		return geometry.Viewport{Width: float64(w), Height: float64(h)}
	}
	return geometry.Viewport{Width: float64(a.config.Camera.Width), Height: float64(a.config.Camera.Height)}
}
