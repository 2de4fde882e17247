// Package config loads the stretch settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName          = "stretch"
	settingsFileName = "config.yaml"

	MinIntervalMinutes     = 1
	MaxIntervalMinutes     = 480
	DefaultIntervalMinutes = 60
	DefaultOverlayURL      = "https://www.youtube.com/embed/mnrKTIa1hZ0?autoplay=1&controls=1"
	DefaultOverlayAddr     = "127.0.0.1:7420"
	DefaultStoreKey        = "stretch-timer-state"
	DefaultClaimDebounce   = 250 * time.Millisecond
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
	BackendNone   = "none"
)

// Config holds every setting of a stretch instance.
type Config struct {
	IntervalMinutes int
	AutoStart       bool
	OverlayURL      string
	ClaimDebounce   time.Duration
	Store           StoreConfig
	Bus             BusConfig
	OverlayAddr     string
	MetricsAddr     string
}

// StoreConfig selects where the shared record lives.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	Key       string `yaml:"key"`
	Codec     string `yaml:"codec"`
}

// BusConfig selects how change notifications travel between instances.
type BusConfig struct {
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	NATSURL   string `yaml:"nats_url"`
}

type yamlConfig struct {
	IntervalMinutes int         `yaml:"interval_minutes"`
	AutoStart       *bool       `yaml:"auto_start"`
	OverlayURL      string      `yaml:"overlay_url"`
	ClaimDebounce   string      `yaml:"claim_debounce"`
	Store           StoreConfig `yaml:"store"`
	Bus             BusConfig   `yaml:"bus"`
	OverlayAddr     string      `yaml:"overlay_addr"`
	MetricsAddr     string      `yaml:"metrics_addr"`
}

// Default returns the settings used when no file exists. The record lives
// in the shared sqlite file so separate processes coordinate out of the box.
func Default() Config {
	return Config{
		IntervalMinutes: DefaultIntervalMinutes,
		AutoStart:       true,
		OverlayURL:      DefaultOverlayURL,
		ClaimDebounce:   DefaultClaimDebounce,
		Store:           StoreConfig{Backend: BackendSQLite, Key: DefaultStoreKey, Codec: "json"},
		Bus:             BusConfig{Backend: BackendNone},
		OverlayAddr:     DefaultOverlayAddr,
	}
}

// DefaultPath returns the settings file under the user config directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, settingsFileName), nil
}

// DefaultSQLitePath returns the shared database file used when the sqlite
// backend has no explicit path.
func DefaultSQLitePath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, "state.db"), nil
}

// Load reads the settings at path. A missing file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	var fileData yamlConfig
	if err := yaml.Unmarshal(raw, &fileData); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := apply(&cfg, fileData); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	autoStart := cfg.AutoStart
	fileData := yamlConfig{
		IntervalMinutes: cfg.IntervalMinutes,
		AutoStart:       &autoStart,
		OverlayURL:      cfg.OverlayURL,
		ClaimDebounce:   cfg.ClaimDebounce.String(),
		Store:           cfg.Store,
		Bus:             cfg.Bus,
		OverlayAddr:     cfg.OverlayAddr,
		MetricsAddr:     cfg.MetricsAddr,
	}
	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return fmt.Errorf("marshal config yaml: %w", err)
	}
	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ClampInterval forces minutes into the accepted range. Zero or negative
// values mean "unset" and yield the default.
func ClampInterval(minutes int) int {
	switch {
	case minutes <= 0:
		return DefaultIntervalMinutes
	case minutes > MaxIntervalMinutes:
		return MaxIntervalMinutes
	}
	return minutes
}

// ValidInterval reports whether minutes is accepted as an explicit setting.
func ValidInterval(minutes int) bool {
	return minutes >= MinIntervalMinutes && minutes <= MaxIntervalMinutes
}

func apply(cfg *Config, fileData yamlConfig) error {
	cfg.IntervalMinutes = ClampInterval(fileData.IntervalMinutes)
	if fileData.AutoStart != nil {
		cfg.AutoStart = *fileData.AutoStart
	}
	if fileData.OverlayURL != "" {
		cfg.OverlayURL = fileData.OverlayURL
	}
	if fileData.ClaimDebounce != "" {
		d, err := time.ParseDuration(fileData.ClaimDebounce)
		if err != nil {
			return fmt.Errorf("parse claim_debounce: %w", err)
		}
		if d >= 0 {
			cfg.ClaimDebounce = d
		}
	}

	switch fileData.Store.Backend {
	case "", BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", fileData.Store.Backend)
	}
	if fileData.Store.Backend != "" {
		cfg.Store.Backend = fileData.Store.Backend
	}
	if fileData.Store.Path != "" {
		cfg.Store.Path = fileData.Store.Path
	}
	if fileData.Store.RedisAddr != "" {
		cfg.Store.RedisAddr = fileData.Store.RedisAddr
	}
	if fileData.Store.Key != "" {
		cfg.Store.Key = fileData.Store.Key
	}
	if fileData.Store.Codec != "" {
		cfg.Store.Codec = fileData.Store.Codec
	}

	switch fileData.Bus.Backend {
	case "", BackendNone, BackendRedis, BackendNATS:
	default:
		return fmt.Errorf("unknown bus backend %q", fileData.Bus.Backend)
	}
	if fileData.Bus.Backend != "" {
		cfg.Bus.Backend = fileData.Bus.Backend
	}
	cfg.Bus.RedisAddr = fileData.Bus.RedisAddr
	cfg.Bus.NATSURL = fileData.Bus.NATSURL

	if fileData.OverlayAddr != "" {
		cfg.OverlayAddr = fileData.OverlayAddr
	}
	cfg.MetricsAddr = fileData.MetricsAddr
	return nil
}
