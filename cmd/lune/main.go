package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"

	"github.com/ayusman/lune/internal/app"
	"github.com/ayusman/lune/internal/capture"
	"github.com/ayusman/lune/internal/config"
	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/publish"
	"github.com/ayusman/lune/internal/server"
	"github.com/ayusman/lune/internal/session"
	"github.com/ayusman/lune/internal/store"
	"github.com/ayusman/lune/internal/tray"
)

const usage = `usage: lune [serve] [-env file]
       lune replay [-env file] <recording-id>`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	envFile := fs.String("env", ".env", "environment file to load")
	fs.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	switch cmd {
	case "serve":
		serve(cfg)
	case "replay":
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		replay(cfg, fs.Arg(0))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func sessionOptions(cfg *config.Config) session.Options {
	opts := session.DefaultOptions()
	opts.Profile = cfg.Profile()
	opts.Reference = cfg.Reference()
	opts.Window = cfg.StabilizerWindow
	opts.Tolerance = cfg.StabilizerTolerance
	return opts
}

func openStore(cfg *config.Config) *store.Store {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalw("failed to create data directory", "dir", cfg.DataDir, "error", xerrors.New(err))
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Fatalw("failed to open store", "path", cfg.DBPath(), "error", xerrors.New(err))
	}
	return st
}

func serve(cfg *config.Config) {
	st := openStore(cfg)
	defer st.Close()

	opts := sessionOptions(cfg)

	var pub publish.Publisher = publish.Nop{}
	if cfg.MQTTBroker != "" {
		p, err := publish.NewMQTT(cfg.MQTTBroker, "lune-"+uuid.NewString()[:8], cfg.MQTTTopic)
		if err != nil {
			log.Warnw("mqtt disabled", "broker", cfg.MQTTBroker, "error", xerrors.New(err))
		} else {
			pub = p
		}
	}

	var a *app.App
	if cfg.CameraEnabled {
		camCfg := capture.DefaultConfig()
		camCfg.DeviceID = cfg.CameraID
		a = app.New(app.Config{
			Store:        st,
			Camera:       camCfg,
			MotionThresh: cfg.MotionThreshold,
			Session:      opts,
			Publisher:    pub,
		})
		if err := a.Start(); err != nil {
			log.Fatalw("failed to start camera", "device", cfg.CameraID, "error", xerrors.New(err))
		}
		a.SetEnabled(true)
		defer a.Stop()
	} else {
		defer pub.Close()
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.Infow("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		App:       a,
		Session:   opts,
	})

	stop := make(chan struct{})
	var once sync.Once
	shutdown := func() { once.Do(func() { close(stop) }) }

	go func() {
		if err := srv.ListenAndServe(cfg.HTTPAddr); err != nil {
			log.Errorw("server failed", "error", xerrors.New(err))
		}
		shutdown()
	}()

	go waitForSignal(stop, shutdown)
	if cfg.Tray && a != nil {
		runTray(cfg, a, stop, shutdown)
	} else {
		<-stop
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("server shutdown", "error", err)
	}
}

func waitForSignal(stop <-chan struct{}, shutdown func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	select {
	case s := <-sig:
		log.Infow("shutting down", "signal", s.String())
		shutdown()
	case <-stop:
	}
}

// runTray blocks on the tray until Quit or shutdown.
func runTray(cfg *config.Config, a *app.App, stop <-chan struct{}, shutdown func()) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnRecord(func(recording bool) error {
		if recording {
			_, err := a.StartRecording("tray " + time.Now().Format(time.DateTime))
			return err
		}
		_, err := a.StopRecording()
		return err
	})
	t.OnOpen(func() { openBrowser(browserURL(cfg.HTTPAddr)) })
	t.OnQuit(shutdown)
	a.Subscribe(t.Update)

	go func() {
		<-stop
		t.Quit()
	}()
	t.Run()
}

func replay(cfg *config.Config, id string) {
	st := openStore(cfg)
	defer st.Close()

	results, err := app.Replay(st, id, sessionOptions(cfg))
	if err != nil {
		log.Fatalw("replay failed", "recording", id, "error", xerrors.New(err))
	}

	enc := json.NewEncoder(os.Stdout)
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			log.Fatalw("writing result", "error", err)
		}
	}
	if len(results) > 0 {
		last := results[len(results)-1]
		log.Infow("replay finished", "recording", id, "frames", len(results),
			"diameter_mm", last.Measurement.DiameterMm, "size", last.Size)
	}
}

func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warnw("failed to open browser", "url", url, "error", err)
	}
}

// findWebDir looks for a web directory next to the working directory, then
// under the data directory.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
