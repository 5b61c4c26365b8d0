package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/teelog/internal/shmlog"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Shm       ShmConfig
	Drain     DrainConfig
	Attach    AttachConfig
	Sinks     SinkConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the control API configuration.
type ServerConfig struct {
	Port    string `envconfig:"PORT"`
	Host    string `envconfig:"HOST"`
	Enabled bool   `envconfig:"SERVER_ENABLED"`
}

// ShmConfig locates the shared log region.
type ShmConfig struct {
	Path string `envconfig:"SHM_PATH"`
	Addr uint64 `envconfig:"SHM_ADDR"`
	Size uint32 `envconfig:"SHM_SIZE"`
}

// DrainConfig controls the periodic drain.
type DrainConfig struct {
	Interval time.Duration `envconfig:"DRAIN_INTERVAL"`
	ReadMax  int           `envconfig:"DRAIN_READ_MAX"`
	LineMax  int           `envconfig:"DRAIN_LINE_MAX"`
	Mode     uint32        `envconfig:"DRAIN_MODE"`
}

// AttachConfig controls retries while the producer is not ready.
type AttachConfig struct {
	RetryMaxElapsed time.Duration `envconfig:"ATTACH_RETRY_MAX_ELAPSED"`
}

// SinkConfig selects where drained lines go. The logger sink is always on.
type SinkConfig struct {
	File        string `envconfig:"SINK_FILE"`
	FileMaxMB   int    `envconfig:"SINK_FILE_MAX_MB"`
	FileBackups int    `envconfig:"SINK_FILE_BACKUPS"`
	Archive     string `envconfig:"SINK_ARCHIVE"`
	RemoteURL   string `envconfig:"SINK_REMOTE_URL"`
	Tail        bool   `envconfig:"SINK_TAIL"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL"`
	Development bool   `envconfig:"LOG_DEV"`
}

// RateLimitConfig holds control API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED"`
}

// Load loads configuration from environment variables on top of Default.
func Load() (*Config, error) {
	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

func applyEnv(cfg *Config) error {
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    "9464",
			Host:    "127.0.0.1",
			Enabled: true,
		},
		Shm: ShmConfig{
			Path: "/dev/mem",
			Addr: 0,
			Size: 0x40000,
		},
		Drain: DrainConfig{
			Interval: time.Second,
			ReadMax:  shmlog.DefaultReadMax,
			LineMax:  shmlog.DefaultLineMax,
			Mode:     shmlog.ModeEnabled,
		},
		Attach: AttachConfig{
			RetryMaxElapsed: 30 * time.Second,
		},
		Sinks: SinkConfig{
			FileMaxMB:   16,
			FileBackups: 4,
			Tail:        true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

var ErrInvalid = errors.New("invalid configuration")

// Validate rejects settings the bridge cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Shm.Path == "":
		return fmt.Errorf("%w: shm path is empty", ErrInvalid)
	case c.Shm.Size <= shmlog.DataOffset:
		return fmt.Errorf("%w: shm size %d leaves no data region", ErrInvalid, c.Shm.Size)
	case c.Drain.Interval <= 0:
		return fmt.Errorf("%w: drain interval must be positive", ErrInvalid)
	case c.Drain.ReadMax < 1:
		return fmt.Errorf("%w: read max must be at least 1", ErrInvalid)
	case c.Drain.LineMax < 3:
		return fmt.Errorf("%w: line max must be at least 3", ErrInvalid)
	case c.Sinks.FileMaxMB < 0 || c.Sinks.FileBackups < 0:
		return fmt.Errorf("%w: file sink limits must not be negative", ErrInvalid)
	}
	return nil
}
