// Package server exposes ring measurement over HTTP and websockets: size
// table lookups, stateless single-frame measurement, per-connection tracking
// sessions, the live camera feed and stored recordings.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ayusman/lune/internal/app"
	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	// App enables the camera routes when set.
	App *app.App
	// Session is the starting configuration of every tracking session.
	Session session.Options
}

// Server is the HTTP front end.
type Server struct {
	config Config
	router *mux.Router
	live   *Hub
	start  time.Time
	srv    *http.Server

	unsubscribe func()
}

// New creates a Server and registers its routes.
func New(config Config) *Server {
	if config.Session.Window == 0 {
		config.Session = session.DefaultOptions()
	}

	s := &Server{
		config: config,
		router: mux.NewRouter(),
		live:   NewHub(),
		start:  time.Now(),
	}
	s.setupRoutes()

	if config.App != nil {
		s.unsubscribe = config.App.Subscribe(s.live.Broadcast)
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/sizes", s.handleSizes).Methods(http.MethodGet)
	r.HandleFunc("/api/sizes/lookup", s.handleLookup).Methods(http.MethodGet)
	r.HandleFunc("/api/measure", s.handleMeasure).Methods(http.MethodPost)
	r.Handle("/api/track", NewTrackHandler(s.config.Session)).Methods(http.MethodGet)

	if s.config.Store != nil {
		rh := &recordingHandler{store: s.config.Store, session: s.config.Session}
		r.HandleFunc("/api/recordings", rh.list).Methods(http.MethodGet)
		r.HandleFunc("/api/recordings", rh.create).Methods(http.MethodPost)
		r.HandleFunc("/api/recordings/{id}", rh.get).Methods(http.MethodGet)
		r.HandleFunc("/api/recordings/{id}", rh.delete).Methods(http.MethodDelete)
		r.HandleFunc("/api/recordings/{id}/frames", rh.listFrames).Methods(http.MethodGet)
		r.HandleFunc("/api/recordings/{id}/frames", rh.appendFrames).Methods(http.MethodPost)
		r.HandleFunc("/api/recordings/{id}/replay", rh.replay).Methods(http.MethodGet)
	}

	if s.config.App != nil {
		ch := &cameraHandler{app: s.config.App}
		r.HandleFunc("/api/camera", ch.status).Methods(http.MethodGet)
		r.HandleFunc("/api/camera/enabled", ch.setEnabled).Methods(http.MethodPut)
		r.HandleFunc("/api/camera/calibration", ch.setCalibration).Methods(http.MethodPut)
		r.HandleFunc("/api/camera/profile", ch.setProfile).Methods(http.MethodPut)
		r.HandleFunc("/api/camera/target", ch.setTarget).Methods(http.MethodPut)
		r.HandleFunc("/api/camera/reset", ch.reset).Methods(http.MethodPost)
		r.HandleFunc("/api/camera/recording", ch.startRecording).Methods(http.MethodPost)
		r.HandleFunc("/api/camera/recording", ch.stopRecording).Methods(http.MethodDelete)
		r.Handle("/api/live", s.live).Methods(http.MethodGet)
		r.Handle("/api/stream", NewStreamHandler(s.config.App, s.config.Session.Overlay.Mirror)).Methods(http.MethodGet)
	}

	if s.config.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
		"live":   s.live.Len(),
	})
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infow("http server listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes live connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.live.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
