package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the on-disk schema. Durations are strings ("1s", "250ms")
// so both formats read them the same way; absent keys keep their defaults.
type fileConfig struct {
	Server *struct {
		Port    *string `yaml:"port" toml:"port"`
		Host    *string `yaml:"host" toml:"host"`
		Enabled *bool   `yaml:"enabled" toml:"enabled"`
	} `yaml:"server" toml:"server"`
	Shm *struct {
		Path *string `yaml:"path" toml:"path"`
		Addr *uint64 `yaml:"addr" toml:"addr"`
		Size *uint32 `yaml:"size" toml:"size"`
	} `yaml:"shm" toml:"shm"`
	Drain *struct {
		Interval *string `yaml:"interval" toml:"interval"`
		ReadMax  *int    `yaml:"read_max" toml:"read_max"`
		LineMax  *int    `yaml:"line_max" toml:"line_max"`
		Mode     *uint32 `yaml:"mode" toml:"mode"`
	} `yaml:"drain" toml:"drain"`
	Attach *struct {
		RetryMaxElapsed *string `yaml:"retry_max_elapsed" toml:"retry_max_elapsed"`
	} `yaml:"attach" toml:"attach"`
	Sinks *struct {
		File        *string `yaml:"file" toml:"file"`
		FileMaxMB   *int    `yaml:"file_max_mb" toml:"file_max_mb"`
		FileBackups *int    `yaml:"file_backups" toml:"file_backups"`
		Archive     *string `yaml:"archive" toml:"archive"`
		RemoteURL   *string `yaml:"remote_url" toml:"remote_url"`
		Tail        *bool   `yaml:"tail" toml:"tail"`
	} `yaml:"sinks" toml:"sinks"`
	Logging *struct {
		Level       *string `yaml:"level" toml:"level"`
		Development *bool   `yaml:"development" toml:"development"`
	} `yaml:"logging" toml:"logging"`
	RateLimit *struct {
		RequestsPerSecond *int  `yaml:"rps" toml:"rps"`
		Burst             *int  `yaml:"burst" toml:"burst"`
		Enabled           *bool `yaml:"enabled" toml:"enabled"`
	} `yaml:"rate_limit" toml:"rate_limit"`
}

// LoadFile reads a YAML or TOML file (chosen by extension) over the
// defaults, then applies environment variables on top.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg := Default()
	if err := fc.apply(cfg); err != nil {
		return nil, fmt.Errorf("invalid value in %s: %w", path, err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if s := fc.Server; s != nil {
		set(&cfg.Server.Port, s.Port)
		set(&cfg.Server.Host, s.Host)
		set(&cfg.Server.Enabled, s.Enabled)
	}
	if s := fc.Shm; s != nil {
		set(&cfg.Shm.Path, s.Path)
		set(&cfg.Shm.Addr, s.Addr)
		set(&cfg.Shm.Size, s.Size)
	}
	if d := fc.Drain; d != nil {
		if err := setDuration(&cfg.Drain.Interval, d.Interval); err != nil {
			return fmt.Errorf("drain.interval: %w", err)
		}
		set(&cfg.Drain.ReadMax, d.ReadMax)
		set(&cfg.Drain.LineMax, d.LineMax)
		set(&cfg.Drain.Mode, d.Mode)
	}
	if a := fc.Attach; a != nil {
		if err := setDuration(&cfg.Attach.RetryMaxElapsed, a.RetryMaxElapsed); err != nil {
			return fmt.Errorf("attach.retry_max_elapsed: %w", err)
		}
	}
	if s := fc.Sinks; s != nil {
		set(&cfg.Sinks.File, s.File)
		set(&cfg.Sinks.FileMaxMB, s.FileMaxMB)
		set(&cfg.Sinks.FileBackups, s.FileBackups)
		set(&cfg.Sinks.Archive, s.Archive)
		set(&cfg.Sinks.RemoteURL, s.RemoteURL)
		set(&cfg.Sinks.Tail, s.Tail)
	}
	if l := fc.Logging; l != nil {
		set(&cfg.Logging.Level, l.Level)
		set(&cfg.Logging.Development, l.Development)
	}
	if r := fc.RateLimit; r != nil {
		set(&cfg.RateLimit.RequestsPerSecond, r.RequestsPerSecond)
		set(&cfg.RateLimit.Burst, r.Burst)
		set(&cfg.RateLimit.Enabled, r.Enabled)
	}
	return nil
}
