package capture

import (
	"testing"
	"time"
)

func TestGate(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	g := NewGate(0)

	if g.Active() || g.FPS() != IdleFPS {
		t.Fatalf("new gate should be idle at %d fps", IdleFPS)
	}
	if g.Interval() != 200*time.Millisecond {
		t.Errorf("idle Interval() = %v", g.Interval())
	}

	if !g.Observe(true, start) {
		t.Error("motion should switch the gate to active")
	}
	if g.FPS() != ActiveFPS {
		t.Errorf("FPS() = %d, want %d", g.FPS(), ActiveFPS)
	}
	if g.Observe(true, start.Add(100*time.Millisecond)) {
		t.Error("motion while active should not report a change")
	}

	if g.Observe(false, start.Add(IdleTimeout)) {
		t.Error("gate should stay active until the timeout elapses")
	}
	if !g.Observe(false, start.Add(100*time.Millisecond+IdleTimeout+time.Millisecond)) {
		t.Error("gate should drop to idle after the timeout")
	}
	if g.Active() {
		t.Error("gate should be idle")
	}
	if g.Observe(false, start.Add(time.Hour)) {
		t.Error("idle gate without motion should not change")
	}

	g.Force(true, start)
	if !g.Active() {
		t.Error("Force(true) should activate the gate")
	}
}
