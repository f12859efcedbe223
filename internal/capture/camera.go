// Package capture reads frames from a camera with GoCV and gates the
// tracking pipeline on motion.
package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/lune/internal/log"
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEmptyFrame is returned when the device delivers no image data.
	ErrEmptyFrame = errors.New("captured frame is empty")
	// ErrNoFrames is returned by MockCamera when playback is exhausted.
	ErrNoFrames = errors.New("no more frames")
)

// Config describes the capture device.
type Config struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
}

// DefaultConfig captures 1280x720 at the idle frame rate. Landmark
// precision scales with resolution, so this is larger than a pure preview
// would need.
func DefaultConfig() Config {
	return Config{Width: 1280, Height: 720, FPS: IdleFPS}
}

// Camera is a frame source.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller must Close it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	// Resolution is the negotiated frame size; zero before Open.
	Resolution() (width, height int)
}

type cameraImpl struct {
	cfg     Config
	capture *gocv.VideoCapture
	width   int
	height  int
	mu      sync.Mutex
}

// NewCamera returns a Camera for the configured device. Nothing is opened
// until Open.
func NewCamera(cfg Config) Camera {
	if cfg.FPS <= 0 {
		cfg.FPS = IdleFPS
	}
	return &cameraImpl{cfg: cfg}
}

func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.cfg.DeviceID)
	if err != nil {
		return err
	}
	if c.cfg.Width > 0 && c.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	}
	vc.Set(gocv.VideoCaptureFPS, float64(c.cfg.FPS))

	// Drivers may pick a different mode than requested.
	c.width = int(vc.Get(gocv.VideoCaptureFrameWidth))
	c.height = int(vc.Get(gocv.VideoCaptureFrameHeight))
	c.capture = vc

	log.Infow("camera opened", "device", c.cfg.DeviceID, "width", c.width, "height", c.height, "fps", c.cfg.FPS)
	return nil
}

func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	c.width, c.height = 0, 0
	return err
}

func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}
	if c.width == 0 {
		c.width, c.height = mat.Cols(), mat.Rows()
	}
	return &mat, nil
}

// SetFPS ignores non-positive values.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.FPS = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.FPS
}

func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

func (c *cameraImpl) Resolution() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}
