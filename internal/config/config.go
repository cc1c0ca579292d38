// Package config loads smilecast settings from defaults, an optional YAML
// file and SMILECAST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SMILECAST_"

type CameraConfig struct {
	Index  int  `yaml:"index"`
	Mirror bool `yaml:"mirror"`
	FPS    int  `yaml:"fps"`
}

type DetectorConfig struct {
	FaceCascade  string `yaml:"face_cascade"`
	SmileCascade string `yaml:"smile_cascade"`
}

type SmileConfig struct {
	DebounceSeconds float64 `yaml:"debounce_seconds"`
}

// Debounce returns the debounce interval as a duration.
func (c SmileConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceSeconds * float64(time.Second))
}

type NotifyConfig struct {
	URI string `yaml:"websocket_uri"`
	// Persistent reuses one websocket connection across messages.
	Persistent bool `yaml:"persistent"`
	// OnEveryTransition also notifies when a smile ends.
	OnEveryTransition bool `yaml:"on_every_transition"`
}

type UploadConfig struct {
	FolderID        string        `yaml:"folder_id"`
	CredentialsPath string        `yaml:"credentials_path"`
	BatchSize       int           `yaml:"batch_size"`
	Timeout         time.Duration `yaml:"timeout"`
	StopTimeout     time.Duration `yaml:"stop_timeout"`
	// DrainTimeout bounds how long shutdown waits for queued batches.
	// Zero skips draining.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

type DisplayConfig struct {
	Headless bool   `yaml:"headless"`
	Window   string `yaml:"window"`
	Tray     bool   `yaml:"tray"`
}

type ServerConfig struct {
	// Addr is the status API listen address. Empty disables the server.
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Dir receives smilecast.log when set.
	Dir  string `yaml:"dir"`
	JSON bool   `yaml:"json"`
}

// Config holds all smilecast settings.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Smile    SmileConfig    `yaml:"smile"`
	Notify   NotifyConfig   `yaml:"notify"`
	Upload   UploadConfig   `yaml:"upload"`
	Output   OutputConfig   `yaml:"output"`
	Display  DisplayConfig  `yaml:"display"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{Index: 0, Mirror: true, FPS: 30},
		Detector: DetectorConfig{
			FaceCascade:  filepath.Join("data", "haarcascade_frontalface_default.xml"),
			SmileCascade: filepath.Join("data", "haarcascade_smile.xml"),
		},
		Smile:  SmileConfig{DebounceSeconds: 1.0},
		Notify: NotifyConfig{URI: "ws://localhost:12345"},
		Upload: UploadConfig{
			CredentialsPath: "credentials.json",
			BatchSize:       3,
			Timeout:         60 * time.Second,
			StopTimeout:     5 * time.Second,
		},
		Output:  OutputConfig{Dir: "captures"},
		Display: DisplayConfig{Window: "Smile Detector"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load returns the defaults overlaid with the YAML file at path (when it
// exists) and then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Camera.Index = getEnvAsInt("CAMERA_INDEX", c.Camera.Index)
	c.Camera.Mirror = getEnvAsBool("MIRROR", c.Camera.Mirror)
	c.Detector.FaceCascade = getEnv("FACE_CASCADE", c.Detector.FaceCascade)
	c.Detector.SmileCascade = getEnv("SMILE_CASCADE", c.Detector.SmileCascade)
	c.Smile.DebounceSeconds = getEnvAsFloat("DEBOUNCE_SECONDS", c.Smile.DebounceSeconds)
	c.Notify.URI = getEnv("WEBSOCKET_URI", c.Notify.URI)
	c.Notify.Persistent = getEnvAsBool("NOTIFY_PERSISTENT", c.Notify.Persistent)
	c.Upload.FolderID = getEnv("FOLDER_ID", c.Upload.FolderID)
	c.Upload.CredentialsPath = getEnv("CREDENTIALS_PATH", c.Upload.CredentialsPath)
	c.Upload.BatchSize = getEnvAsInt("BATCH_SIZE", c.Upload.BatchSize)
	c.Upload.Timeout = getEnvAsDuration("UPLOAD_TIMEOUT", c.Upload.Timeout)
	c.Upload.DrainTimeout = getEnvAsDuration("DRAIN_TIMEOUT", c.Upload.DrainTimeout)
	c.Output.Dir = getEnv("OUTPUT_DIR", c.Output.Dir)
	c.Display.Headless = getEnvAsBool("HEADLESS", c.Display.Headless)
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	c.Store.Path = getEnv("DB_PATH", c.Store.Path)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Dir = getEnv("LOG_DIR", c.Log.Dir)
}

// Validate rejects settings the capture loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Upload.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("upload.batch_size must be positive, got %d", c.Upload.BatchSize))
	}
	if c.Smile.DebounceSeconds < 0 {
		errs = append(errs, fmt.Errorf("smile.debounce_seconds must not be negative, got %g", c.Smile.DebounceSeconds))
	}
	if c.Notify.URI == "" {
		errs = append(errs, errors.New("notify.websocket_uri is required"))
	}
	if c.Camera.Index < 0 {
		errs = append(errs, fmt.Errorf("camera.index must not be negative, got %d", c.Camera.Index))
	}
	if c.Upload.Timeout < 0 || c.Upload.DrainTimeout < 0 || c.Upload.StopTimeout < 0 {
		errs = append(errs, errors.New("upload timeouts must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
