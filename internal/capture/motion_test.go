package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestMotionDetector_Threshold(t *testing.T) {
	md := NewMotionDetector(5)
	defer md.Close()

	md.SetThreshold(0)
	md.SetThreshold(-1)
	if md.Threshold() != 5 {
		t.Errorf("Threshold() = %v, want 5", md.Threshold())
	}
	md.SetThreshold(2.5)
	if md.Threshold() != 2.5 {
		t.Errorf("Threshold() = %v, want 2.5", md.Threshold())
	}
}

func TestMotionDetector_Detect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	md := NewMotionDetector(1)
	defer md.Close()

	still := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer still.Close()

	if got := md.Detect(&still); got.Moved {
		t.Error("first frame should only prime the detector")
	}
	if got := md.Detect(&still); got.Moved || got.ChangePct != 0 {
		t.Errorf("identical frame reported %+v", got)
	}

	moved := still.Clone()
	defer moved.Close()
	DrawMarker(&moved, 60, 60, 120)

	got := md.Detect(&moved)
	if !got.Moved {
		t.Errorf("expected motion, got %+v", got)
	}
	if got.ChangePct <= 1 || got.ChangePct > 100 {
		t.Errorf("ChangePct = %v out of range", got.ChangePct)
	}

	md.Reset()
	if got := md.Detect(&still); got.Moved {
		t.Error("frame after Reset should only prime the detector")
	}
}

func TestMotionDetector_EmptyFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	md := NewMotionDetector(1)
	defer md.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if got := md.Detect(&empty); got.Moved {
		t.Error("empty frame should not report motion")
	}
	if got := md.Detect(nil); got.Moved {
		t.Error("nil frame should not report motion")
	}
}
