package app

import (
	"errors"
	"time"

	"github.com/mdobak/go-xerrors"
	"gocv.io/x/gocv"

	"github.com/ayusman/lune/internal/capture"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/log"
)

// runPipeline is the capture loop. It starts idle; motion switches the gate
// to the active rate, and only active frames reach the detector and the
// session. After IdleTimeout without motion it drops back to idle.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(a.gate.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.Camera().ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrNoFrames) {
					continue
				}
				log.Warnw("reading frame", "error", xerrors.New(err))
				continue
			}

			if a.step(frame, now) {
				ticker.Reset(a.gate.Interval())
			}
			frame.Close()
		}
	}
}

// step runs one frame through the gate and, when active, the detector and
// session. It reports whether the gate changed mode.
func (a *App) step(frame *gocv.Mat, now time.Time) (modeChanged bool) {
	a.storeFrame(frame)
	motion := a.motion.Detect(frame)
	if a.gate.Observe(motion.Moved, now) {
		modeChanged = true
		a.Camera().SetFPS(a.gate.FPS())
		log.Debugw("capture mode changed", "active", a.gate.Active(), "fps", a.gate.FPS(), "change_pct", motion.ChangePct)
	}

	d := a.Detector()
	if !a.gate.Active() || d == nil {
		return modeChanged
	}

	hands, err := d.Detect(frame)
	if err != nil {
		log.Warnw("detecting hands", "error", xerrors.New(err))
		return modeChanged
	}

	vp := geometry.Viewport{Width: float64(frame.Cols()), Height: float64(frame.Rows())}
	a.Track(detector.First(hands), vp, now)
	return modeChanged
}
