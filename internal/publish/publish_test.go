package publish

import (
	"encoding/json"
	"testing"

	"github.com/ayusman/lune/internal/overlay"
	"github.com/ayusman/lune/internal/ringsize"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/stabilizer"
)

func TestTopics(t *testing.T) {
	m, o := Topics("lune/studio")
	if m != "lune/studio/measurement" || o != "lune/studio/overlay" {
		t.Errorf("Topics() = %q, %q", m, o)
	}
}

func TestMessages(t *testing.T) {
	entry, _ := ringsize.ByUS(7)
	res := session.Result{
		SessionID:   "abc",
		Seq:         3,
		TimestampMs: 1200,
		Visible:     true,
		Measurement: stabilizer.Measurement{DiameterMm: 17.3, CircumferenceMm: 54.35, Samples: 8},
		Size:        &entry,
		Transform:   overlay.Transform{Position: overlay.Point{X: 10, Y: 20}, Visible: true},
	}

	mm, om := Messages(res)
	if mm.SessionID != "abc" || mm.Seq != 3 || mm.Size.UK != "N" {
		t.Errorf("unexpected measurement message %+v", mm)
	}
	if om.Transform.Position.X != 10 || !om.Transform.Visible {
		t.Errorf("unexpected overlay message %+v", om)
	}

	data, err := json.Marshal(mm)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["measurement"]; !ok {
		t.Errorf("payload missing measurement: %s", data)
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(session.Result{}); err != nil {
		t.Errorf("Nop.Publish() error = %v", err)
	}
	p.Close()
}
