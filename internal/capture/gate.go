package capture

import "time"

// Frame rates for the two gate modes.
const (
	IdleFPS     = 5
	ActiveFPS   = 15
	IdleTimeout = 2 * time.Second
)

// Gate switches between an idle and an active frame rate. Motion promotes it
// to active at once; it drops back to idle after IdleTimeout without motion.
type Gate struct {
	active     bool
	lastMotion time.Time
	timeout    time.Duration
}

// NewGate returns an idle gate.
func NewGate(timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = IdleTimeout
	}
	return &Gate{timeout: timeout}
}

// Observe records one frame and reports whether the mode changed.
func (g *Gate) Observe(moved bool, now time.Time) (changed bool) {
	if moved {
		g.lastMotion = now
		if !g.active {
			g.active = true
			return true
		}
		return false
	}
	if g.active && now.Sub(g.lastMotion) > g.timeout {
		g.active = false
		return true
	}
	return false
}

// Active reports whether the gate is in active mode.
func (g *Gate) Active() bool {
	return g.active
}

// FPS returns the frame rate for the current mode.
func (g *Gate) FPS() int {
	if g.active {
		return ActiveFPS
	}
	return IdleFPS
}

// Interval returns the frame interval for the current mode.
func (g *Gate) Interval() time.Duration {
	return time.Second / time.Duration(g.FPS())
}

// Force sets the mode directly, as if motion had just been seen.
func (g *Gate) Force(active bool, now time.Time) {
	g.active = active
	g.lastMotion = now
}
