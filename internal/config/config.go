// Package config handles scrollshot configuration
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
)

// EnvPrefix is prepended to every environment key.
const EnvPrefix = "SCROLLSHOT_"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type CaptureConfig struct {
	DisplayID        uint32        `yaml:"display_id"`
	ScaleFactor      float64       `yaml:"scale_factor"`
	MaxSteps         int           `yaml:"max_steps"`
	SettleDelay      time.Duration `yaml:"settle_delay"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

type StorageConfig struct {
	OutputDir   string `yaml:"output_dir"`
	HistoryPath string `yaml:"history_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	base := dataDir()
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        "127.0.0.1:8700",
			ShutdownTimeout: 5 * time.Second,
		},
		Capture: CaptureConfig{
			ScaleFactor:      1,
			MaxSteps:         50,
			SettleDelay:      500 * time.Millisecond,
			BreakerThreshold: 4,
			BreakerReset:     3 * time.Second,
		},
		Storage: StorageConfig{
			OutputDir:   filepath.Join(base, "captures"),
			HistoryPath: filepath.Join(base, "history.db"),
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load returns the defaults overridden by SCROLLSHOT_* environment variables.
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile overlays a YAML file on the defaults, then the environment, and
// validates the result. An empty path behaves like Load plus Validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "parse config %s", path)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Capture.DisplayID = uint32(getEnvInt("DISPLAY_ID", int(c.Capture.DisplayID)))
	c.Capture.ScaleFactor = getEnvFloat("SCALE_FACTOR", c.Capture.ScaleFactor)
	c.Capture.MaxSteps = getEnvInt("MAX_STEPS", c.Capture.MaxSteps)
	c.Capture.SettleDelay = getEnvDuration("SETTLE_DELAY", c.Capture.SettleDelay)
	c.Capture.BreakerThreshold = getEnvInt("BREAKER_THRESHOLD", c.Capture.BreakerThreshold)
	c.Capture.BreakerReset = getEnvDuration("BREAKER_RESET", c.Capture.BreakerReset)

	c.Storage.OutputDir = getEnv("OUTPUT_DIR", c.Storage.OutputDir)
	c.Storage.HistoryPath = getEnv("HISTORY_PATH", c.Storage.HistoryPath)

	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", c.Log.Format))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.HTTPAddr == "":
		return invalid("server.http_addr is empty")
	case c.Server.ShutdownTimeout <= 0:
		return invalid("server.shutdown_timeout must be positive")
	case c.Capture.ScaleFactor <= 0:
		return invalid("capture.scale_factor must be positive")
	case c.Capture.MaxSteps < 1:
		return invalid("capture.max_steps must be at least 1")
	case c.Capture.SettleDelay <= 0:
		return invalid("capture.settle_delay must be positive")
	case c.Capture.BreakerThreshold < 1:
		return invalid("capture.breaker_threshold must be at least 1")
	case c.Capture.BreakerReset <= 0:
		return invalid("capture.breaker_reset must be positive")
	case c.Storage.OutputDir == "":
		return invalid("storage.output_dir is empty")
	case c.Storage.HistoryPath == "":
		return invalid("storage.history_path is empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level must be debug, info, warn or error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format must be text or json")
	}
	return nil
}

func invalid(msg string) error {
	return apperrors.New(apperrors.CodeConfigInvalid, msg)
}

func dataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".scrollshot")
	}
	return filepath.Join(os.TempDir(), "scrollshot")
}

func getEnv(key, def string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
