// Package app runs the camera tracking loop: frames pass the motion gate,
// the detector finds a hand, and a single Session turns it into a ring
// measurement and overlay transform for every listener.
package app

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/capture"
	"github.com/ayusman/lune/internal/detector"
	"github.com/ayusman/lune/internal/geometry"
	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/publish"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/store"
)

// DefaultMotionThreshold is the percentage of changed pixels that counts as
// motion.
const DefaultMotionThreshold = 1.0

// RecordFlushSize is the number of buffered frames written to the store at
// once while recording.
const RecordFlushSize = 30

var (
	// ErrNoStore is returned by recording operations when no store is set.
	ErrNoStore = errors.New("no store configured")
	// ErrRecording is returned when a recording is already in progress.
	ErrRecording = errors.New("recording already in progress")
	// ErrNotRecording is returned when stopping without a recording.
	ErrNotRecording = errors.New("no recording in progress")
)

// Config holds configuration options for the application.
type Config struct {
	Store        *store.Store
	Camera       capture.Config
	MotionThresh float64
	Session      session.Options
	Publisher    publish.Publisher
	// Detector overrides the MediaPipe detector when set.
	Detector detector.Detector
}

// Listener receives every processed result.
type Listener func(res session.Result)

// App owns the camera pipeline and its tracking session.
type App struct {
	config   Config
	camera   capture.Camera
	motion   *capture.MotionDetector
	gate     *capture.Gate
	detector detector.Detector
	enabled  bool
	mu       sync.RWMutex
	stopCh   chan struct{}
	doneCh   chan struct{}

	// smu guards the session, the last result and the active recording.
	smu       sync.Mutex
	session   *session.Session
	last      *session.Result
	recording *activeRecording

	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int

	fmu   sync.Mutex
	frame *gocv.Mat
}

type activeRecording struct {
	rec     *store.Recording
	pending []store.Frame
}

// New creates an App. Without an injected detector it tries MediaPipe and
// falls back to the mock detector.
func New(config Config) *App {
	if config.MotionThresh <= 0 {
		config.MotionThresh = DefaultMotionThreshold
	}
	if config.Camera.Width == 0 && config.Camera.Height == 0 {
		id := config.Camera.DeviceID
		config.Camera = capture.DefaultConfig()
		config.Camera.DeviceID = id
	}
	if config.Session.Window == 0 {
		config.Session = session.DefaultOptions()
	}
	if config.Publisher == nil {
		config.Publisher = publish.Nop{}
	}

	a := &App{
		config:    config,
		camera:    capture.NewCamera(config.Camera),
		motion:    capture.NewMotionDetector(config.MotionThresh),
		gate:      capture.NewGate(capture.IdleTimeout),
		detector:  config.Detector,
		session:   session.New(config.Session),
		listeners: make(map[int]Listener),
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			log.Infow("using MediaPipe hand detection")
		} else {
			log.Warnw("MediaPipe not available, using mock detector", "error", err)
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// SetEnabled enables or disables tracking.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether tracking is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector replaces the hand detector.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the hand detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetCamera replaces the camera. It must be called before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// Camera returns the camera.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// Subscribe registers a listener and returns a function that removes it.
func (a *App) Subscribe(fn Listener) (unsubscribe func()) {
	a.lmu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.lmu.Unlock()

	return func() {
		a.lmu.Lock()
		delete(a.listeners, id)
		a.lmu.Unlock()
	}
}

// Start opens the camera and begins the tracking loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(capture.IdleFPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Infow("tracking pipeline started")
	return nil
}

// Stop halts the tracking loop and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.camera.Close(); err != nil {
		log.Errorw("closing camera", "error", err)
	}
	a.motion.Close()
	a.releaseFrame()
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Errorw("closing detector", "error", err)
		}
	}
	a.config.Publisher.Close()

	log.Infow("tracking pipeline stopped")
}

// Track feeds one detector delivery through the session and fans the
// result out. A nil hand is a miss.
func (a *App) Track(hand *detector.Hand, vp geometry.Viewport, now time.Time) session.Result {
	ts := now.UnixMilli()

	a.smu.Lock()
	res := a.session.Process(session.Frame{Hand: hand, Viewport: vp, TimestampMs: ts})
	a.last = &res
	a.record(hand, ts)
	a.smu.Unlock()

	if err := a.config.Publisher.Publish(res); err != nil {
		log.Warnw("publish failed", "error", err)
	}

	a.lmu.RLock()
	listeners := make([]Listener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.lmu.RUnlock()

	for _, fn := range listeners {
		fn(res)
	}
	return res
}

// LastResult returns the most recent result, if any.
func (a *App) LastResult() (session.Result, bool) {
	a.smu.Lock()
	defer a.smu.Unlock()
	if a.last == nil {
		return session.Result{}, false
	}
	return *a.last, true
}

// SessionID returns the ID of the camera session.
func (a *App) SessionID() string {
	a.smu.Lock()
	defer a.smu.Unlock()
	return a.session.ID
}

// SetReference switches the camera session to reference calibration.
func (a *App) SetReference(ref calibration.ReferenceScale) {
	a.smu.Lock()
	defer a.smu.Unlock()
	a.session.SetReference(ref)
}

// ClearReference returns the camera session to anatomical calibration.
func (a *App) ClearReference() {
	a.smu.Lock()
	defer a.smu.Unlock()
	a.session.ClearReference()
}

// SetProfile changes the anatomical profile of the camera session.
func (a *App) SetProfile(p calibration.Profile) {
	a.smu.Lock()
	defer a.smu.Unlock()
	a.session.SetProfile(p)
}

// SetTargetDiameter pins the overlay to a ring diameter; zero unpins it.
func (a *App) SetTargetDiameter(mm float64) {
	a.smu.Lock()
	defer a.smu.Unlock()
	a.session.SetTargetDiameter(mm)
}

// Options returns the camera session's current options.
func (a *App) Options() session.Options {
	a.smu.Lock()
	defer a.smu.Unlock()
	return a.session.Options()
}

// Reset clears the measurement window and overlay smoothing.
func (a *App) Reset() {
	a.smu.Lock()
	defer a.smu.Unlock()
	a.session.Reset()
	a.last = nil
}
