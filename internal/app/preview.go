package app

import "gocv.io/x/gocv"

// storeFrame keeps a copy of the most recent camera frame for previews.
func (a *App) storeFrame(frame *gocv.Mat) {
	a.fmu.Lock()
	defer a.fmu.Unlock()
	if a.frame == nil {
		m := gocv.NewMat()
		a.frame = &m
	}
	frame.CopyTo(a.frame)
}

// LatestFrame returns a copy of the most recent camera frame. The caller
// must Close it.
func (a *App) LatestFrame() (*gocv.Mat, bool) {
	a.fmu.Lock()
	defer a.fmu.Unlock()
	if a.frame == nil || a.frame.Empty() {
		return nil, false
	}
	m := a.frame.Clone()
	return &m, true
}

func (a *App) releaseFrame() {
	a.fmu.Lock()
	defer a.fmu.Unlock()
	if a.frame != nil {
		a.frame.Close()
		a.frame = nil
	}
}
