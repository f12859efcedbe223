package capture

import (
	"errors"
	"testing"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantFPS int
	}{
		{
			name:    "default config",
			cfg:     DefaultConfig(),
			wantFPS: IdleFPS,
		},
		{
			name:    "zero fps falls back to idle",
			cfg:     Config{DeviceID: 1},
			wantFPS: IdleFPS,
		},
		{
			name:    "explicit fps",
			cfg:     Config{DeviceID: 2, FPS: 30},
			wantFPS: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.cfg)
			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}
			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be open initially")
			}
			if w, h := cam.Resolution(); w != 0 || h != 0 {
				t.Errorf("Resolution() before Open = %dx%d, want 0x0", w, h)
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DefaultConfig())

	tests := []struct {
		fps     int
		wantFPS int
	}{
		{10, 10},
		{ActiveFPS, ActiveFPS},
		{1, 1},
		{0, 1},
		{-5, 1},
	}

	for _, tt := range tests {
		cam.SetFPS(tt.fps)
		if got := cam.FPS(); got != tt.wantFPS {
			t.Errorf("SetFPS(%d): FPS() = %d, want %d", tt.fps, got, tt.wantFPS)
		}
	}
}

func TestCamera_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultConfig())

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera = %v, want nil", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DefaultConfig())
	if err := cam.Open(); err != nil {
		t.Skipf("camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should be true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		w, h := cam.Resolution()
		if mat.Cols() != w || mat.Rows() != h {
			t.Logf("frame %dx%d differs from negotiated %dx%d", mat.Cols(), mat.Rows(), w, h)
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should be false after Close()")
	}
}
