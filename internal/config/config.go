// Package config provides configuration loading for facecam commands.
//
// Values are layered: defaults, then an optional YAML file, then a .env
// file, then FACECAM_* environment variables. Commands apply flag
// overrides last and call Validate before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultPort          = "8080"
	DefaultModelURI      = "/models"
	DefaultModelDir      = "models"
	DefaultCacheDir      = ".cache/facecam/models"
	DefaultCamera        = "0"
	DefaultDisplayWidth  = 720
	DefaultDisplayHeight = 560
	DefaultInterval      = 100 * time.Millisecond
	DefaultSignalPort    = 8443
	DefaultProducer      = "reachymini"

	// CameraRemote selects the WebRTC camera instead of a local device.
	CameraRemote = "remote"
)

// EnvFile is the dotenv file consulted by Load.
var EnvFile = ".env"

// Config holds all configuration for the facecam service.
type Config struct {
	Port     string `yaml:"port" validate:"required,numeric"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFile  string `yaml:"log_file"`

	Models    ModelsConfig    `yaml:"models"`
	Camera    CameraConfig    `yaml:"camera"`
	Display   DisplayConfig   `yaml:"display"`
	Detection DetectionConfig `yaml:"detection"`
}

// ModelsConfig locates the four model bundles.
type ModelsConfig struct {
	// URI is a directory, the served prefix "/models", or an http(s) URL.
	URI string `yaml:"uri" validate:"required"`

	// Dir is the local directory served at /models.
	Dir string `yaml:"dir" validate:"required"`

	// CacheDir receives files downloaded from an http(s) URI.
	CacheDir string `yaml:"cache_dir" validate:"required"`

	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// CameraConfig selects and shapes the capture device.
type CameraConfig struct {
	// Source is a device index ("0") or "remote".
	Source string `yaml:"source" validate:"required"`

	Width  int `yaml:"width" validate:"gte=0"`
	Height int `yaml:"height" validate:"gte=0"`
	FPS    int `yaml:"fps" validate:"gte=0,lte=120"`

	// Remote camera (GStreamer WebRTC signalling).
	RobotIP    string `yaml:"robot_ip" validate:"required_if=Source remote"`
	SignalPort int    `yaml:"signal_port" validate:"gt=0,lte=65535"`
	Producer   string `yaml:"producer"`
}

// DisplayConfig is the rendered size of the video element.
type DisplayConfig struct {
	Width  int `yaml:"width" validate:"gt=0"`
	Height int `yaml:"height" validate:"gt=0"`
}

// DetectionConfig tunes the detection loop.
type DetectionConfig struct {
	Interval       time.Duration `yaml:"interval" validate:"gt=0"`
	InputSize      int           `yaml:"input_size" validate:"gt=0"`
	ScoreThreshold float64       `yaml:"score_threshold" validate:"gt=0,lte=1"`
	MinConfidence  float64       `yaml:"min_confidence" validate:"gte=0,lte=1"`
	Descriptors    bool          `yaml:"descriptors"`
}

// Default returns production defaults.
func Default() Config {
	return Config{
		Port:     DefaultPort,
		LogLevel: "info",
		Models: ModelsConfig{
			URI:      DefaultModelURI,
			Dir:      DefaultModelDir,
			CacheDir: DefaultCacheDir,
			Timeout:  2 * time.Minute,
		},
		Camera: CameraConfig{
			Source:     DefaultCamera,
			Width:      1280,
			Height:     720,
			FPS:        30,
			SignalPort: DefaultSignalPort,
			Producer:   DefaultProducer,
		},
		Display: DisplayConfig{
			Width:  DefaultDisplayWidth,
			Height: DefaultDisplayHeight,
		},
		Detection: DetectionConfig{
			Interval:       DefaultInterval,
			InputSize:      416,
			ScoreThreshold: 0.5,
			MinConfidence:  0.1,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (optional),
// the dotenv file and the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load %s: %w", EnvFile, err)
	}

	if err := cfg.LoadEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv applies FACECAM_* environment overrides.
func (c *Config) LoadEnv() error {
	setString(&c.Port, "FACECAM_PORT")
	setString(&c.LogLevel, "FACECAM_LOG_LEVEL")
	setString(&c.LogFile, "FACECAM_LOG_FILE")
	setString(&c.Models.URI, "FACECAM_MODELS")
	setString(&c.Models.Dir, "FACECAM_MODEL_DIR")
	setString(&c.Models.CacheDir, "FACECAM_CACHE_DIR")
	setString(&c.Camera.Source, "FACECAM_CAMERA")
	c.Camera.RobotIP = RobotIP(c.Camera.RobotIP)

	if v := os.Getenv("FACECAM_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FACECAM_INTERVAL: %w", err)
		}
		c.Detection.Interval = d
	}
	if v := os.Getenv("FACECAM_SCORE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FACECAM_SCORE_THRESHOLD: %w", err)
		}
		c.Detection.ScoreThreshold = f
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &Error{Field: verrs[0].Namespace(), Tag: verrs[0].Tag(), Err: err}
		}
		return err
	}
	return nil
}

// IsRemoteCamera reports whether the WebRTC camera is selected.
func (c Config) IsRemoteCamera() bool {
	return c.Camera.Source == CameraRemote
}

// CameraIndex parses Source as a local device index.
func (c Config) CameraIndex() (int, error) {
	idx, err := strconv.Atoi(c.Camera.Source)
	if err != nil {
		return 0, fmt.Errorf("camera source %q is not a device index", c.Camera.Source)
	}
	return idx, nil
}

// Error reports the first failed constraint.
type Error struct {
	Field string
	Tag   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s failed %q", e.Field, e.Tag)
}

func (e *Error) Unwrap() error { return e.Err }

// RobotIP returns the robot IP from ROBOT_IP env var.
// Falls back to the provided default if not set.
func RobotIP(defaultIP string) string {
	if ip := os.Getenv("ROBOT_IP"); ip != "" {
		return ip
	}
	return defaultIP
}

var (
	vld     *validator.Validate
	vldOnce sync.Once
)

func validate() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}
