package app

import (
	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/store"
)

// Replay runs a stored recording through a fresh session. The recording's
// profile replaces the one in opts; the reference scale in opts is kept.
func Replay(st *store.Store, recordingID string, opts session.Options) ([]session.Result, error) {
	rec, err := st.Recordings().GetByID(recordingID)
	if err != nil {
		return nil, err
	}
	frames, err := st.Frames().List(recordingID)
	if err != nil {
		return nil, err
	}

	opts.Profile = calibration.Profile{Gender: rec.Gender, Size: rec.HandSize}
	s := session.New(opts)

	results := make([]session.Result, 0, len(frames))
	for _, f := range frames {
		results = append(results, s.Process(session.Frame{
			Hand:        f.Hand,
			Viewport:    rec.Viewport,
			TimestampMs: f.TimestampMs,
		}))
	}
	return results, nil
}
