// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/handsize"
)

// Config holds all application configuration values.
type Config struct {
	// HTTP
	HTTPAddr  string
	StaticDir string

	// Storage
	DataDir string

	// Camera
	CameraEnabled   bool
	CameraID        int
	MotionThreshold float64

	// Measurement
	Gender              handsize.Gender
	HandSize            handsize.Size
	ReferenceMm         float64
	ReferencePx         float64
	StabilizerWindow    int
	StabilizerTolerance float64

	// MQTT
	MQTTBroker string
	MQTTTopic  string

	Tray  bool
	Debug bool
}

// Load reads the given .env files (or ./.env when none are named) into the
// process environment and builds a Config from it. Missing files are not an
// error; variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from LUNE_* environment variables.
func FromEnv() (*Config, error) {
	var err error
	cfg := &Config{
		HTTPAddr:   getEnv("LUNE_HTTP_ADDR", ":8080"),
		StaticDir:  getEnv("LUNE_STATIC_DIR", ""),
		DataDir:    expandHome(getEnv("LUNE_DATA_DIR", "~/.lune")),
		MQTTBroker: getEnv("LUNE_MQTT_BROKER", ""),
		MQTTTopic:  getEnv("LUNE_MQTT_TOPIC", "lune"),
	}

	if cfg.CameraEnabled, err = getEnvBool("LUNE_CAMERA_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.CameraID, err = getEnvInt("LUNE_CAMERA_ID", 0); err != nil {
		return nil, err
	}
	if cfg.MotionThreshold, err = getEnvFloat("LUNE_MOTION_THRESHOLD", 1.0); err != nil {
		return nil, err
	}
	if cfg.Gender, err = handsize.ParseGender(getEnv("LUNE_GENDER", "female")); err != nil {
		return nil, fmt.Errorf("LUNE_GENDER: %w", err)
	}
	if cfg.HandSize, err = handsize.ParseSize(getEnv("LUNE_HAND_SIZE", "auto")); err != nil {
		return nil, fmt.Errorf("LUNE_HAND_SIZE: %w", err)
	}
	if cfg.ReferenceMm, err = getEnvFloat("LUNE_REFERENCE_MM", 0); err != nil {
		return nil, err
	}
	if cfg.ReferencePx, err = getEnvFloat("LUNE_REFERENCE_PX", 0); err != nil {
		return nil, err
	}
	if cfg.StabilizerWindow, err = getEnvInt("LUNE_STABILIZER_WINDOW", 10); err != nil {
		return nil, err
	}
	if cfg.StabilizerTolerance, err = getEnvFloat("LUNE_STABILIZER_TOLERANCE", 0.10); err != nil {
		return nil, err
	}
	if cfg.Tray, err = getEnvBool("LUNE_TRAY", false); err != nil {
		return nil, err
	}
	if cfg.Debug, err = getEnvBool("LUNE_DEBUG", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("LUNE_HTTP_ADDR must not be empty")
	}
	if c.StabilizerWindow < 1 {
		return fmt.Errorf("LUNE_STABILIZER_WINDOW must be positive, got %d", c.StabilizerWindow)
	}
	if c.StabilizerTolerance <= 0 || c.StabilizerTolerance >= 1 {
		return fmt.Errorf("LUNE_STABILIZER_TOLERANCE must be in (0, 1), got %v", c.StabilizerTolerance)
	}
	if c.ReferenceMm < 0 || c.ReferencePx < 0 {
		return errors.New("reference scale must not be negative")
	}
	if c.MotionThreshold < 0 {
		return fmt.Errorf("LUNE_MOTION_THRESHOLD must not be negative, got %v", c.MotionThreshold)
	}
	return nil
}

// Profile returns the configured anatomical profile.
func (c *Config) Profile() calibration.Profile {
	return calibration.Profile{Gender: c.Gender, Size: c.HandSize}
}

// Reference returns the configured reference scale, or nil when none is set.
func (c *Config) Reference() *calibration.ReferenceScale {
	if c.ReferenceMm <= 0 {
		return nil
	}
	return &calibration.ReferenceScale{KnownMm: c.ReferenceMm, MeasuredPx: c.ReferencePx}
}

// DBPath returns the sqlite database location inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "lune.db")
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
