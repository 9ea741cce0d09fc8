// Package config owns tmuxgate's on-disk configuration: the tunables a
// Registry and its Monitors run on, loaded from YAML with the teacher's
// atomic temp-file-then-rename save discipline, and optionally hot-reloaded
// via an fsnotify watch.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default tunables, matching SPEC_FULL.md §4.10.
const (
	DefaultThrottleMs           = 16
	DefaultSettleMs             = 100
	DefaultSettleMaxMs          = 500
	DefaultSyncPollMs           = 50
	DefaultHeartbeatMs          = 15000
	DefaultPauseAfterSeconds    = 5
	DefaultBurstEventsPerWindow = 20
	DefaultBurstWindowMs        = 100
	DefaultInitialCols          = 200
	DefaultInitialRows          = 50
	DefaultBindAddress          = "127.0.0.1"
	DefaultPort                 = 7337
)

// Config is tmuxgate's full set of runtime tunables.
type Config struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	ThrottleMs   int `yaml:"throttle_ms"`
	SettleMs     int `yaml:"settle_ms"`
	SettleMaxMs  int `yaml:"settle_max_ms"`
	SyncPollMs   int `yaml:"sync_poll_ms"`
	HeartbeatMs  int `yaml:"heartbeat_ms"`

	PauseAfterSeconds    int `yaml:"pause_after_seconds"`
	BurstEventsPerWindow int `yaml:"burst_events_per_window"`
	BurstWindowMs        int `yaml:"burst_window_ms"`

	InitialCols int `yaml:"initial_cols"`
	InitialRows int `yaml:"initial_rows"`

	path string
}

// CreateDefault returns a Config populated with SPEC_FULL.md §4.10's
// documented defaults, carrying configPath for a later Save.
func CreateDefault(configPath string) *Config {
	return &Config{
		BindAddress:          DefaultBindAddress,
		Port:                 DefaultPort,
		ThrottleMs:           DefaultThrottleMs,
		SettleMs:             DefaultSettleMs,
		SettleMaxMs:          DefaultSettleMaxMs,
		SyncPollMs:           DefaultSyncPollMs,
		HeartbeatMs:          DefaultHeartbeatMs,
		PauseAfterSeconds:    DefaultPauseAfterSeconds,
		BurstEventsPerWindow: DefaultBurstEventsPerWindow,
		BurstWindowMs:        DefaultBurstWindowMs,
		InitialCols:          DefaultInitialCols,
		InitialRows:          DefaultInitialRows,
		path:                 configPath,
	}
}

// Load reads and parses the YAML config at configPath, filling in any zero
// tunable with its documented default (a config that only overrides a
// handful of fields is valid).
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
	}

	cfg := CreateDefault(configPath)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", configPath, err)
	}
	cfg.path = configPath
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills any field a partial YAML document left at its zero
// value, so a minimal override file (e.g. just `port: 8080`) still yields a
// fully-populated Config.
func (c *Config) applyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = DefaultBindAddress
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ThrottleMs == 0 {
		c.ThrottleMs = DefaultThrottleMs
	}
	if c.SettleMs == 0 {
		c.SettleMs = DefaultSettleMs
	}
	if c.SettleMaxMs == 0 {
		c.SettleMaxMs = DefaultSettleMaxMs
	}
	if c.SyncPollMs == 0 {
		c.SyncPollMs = DefaultSyncPollMs
	}
	if c.HeartbeatMs == 0 {
		c.HeartbeatMs = DefaultHeartbeatMs
	}
	if c.PauseAfterSeconds == 0 {
		c.PauseAfterSeconds = DefaultPauseAfterSeconds
	}
	if c.BurstEventsPerWindow == 0 {
		c.BurstEventsPerWindow = DefaultBurstEventsPerWindow
	}
	if c.BurstWindowMs == 0 {
		c.BurstWindowMs = DefaultBurstWindowMs
	}
	if c.InitialCols == 0 {
		c.InitialCols = DefaultInitialCols
	}
	if c.InitialRows == 0 {
		c.InitialRows = DefaultInitialRows
	}
}

// Validate rejects a Config whose tunables can't produce a working Monitor
// loop (e.g. a settle window longer than its own ceiling).
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.SettleMs > c.SettleMaxMs {
		return fmt.Errorf("config: settle_ms (%d) cannot exceed settle_max_ms (%d)", c.SettleMs, c.SettleMaxMs)
	}
	if c.ThrottleMs <= 0 {
		return fmt.Errorf("config: throttle_ms must be positive, got %d", c.ThrottleMs)
	}
	if c.InitialCols <= 0 || c.InitialRows <= 0 {
		return fmt.Errorf("config: initial_cols/initial_rows must be positive, got %dx%d", c.InitialCols, c.InitialRows)
	}
	return nil
}

// Save writes the config to the path it was loaded from or created with,
// via a temp-file-then-rename so a concurrent reader never observes a
// half-written file.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config: path not set: use Load() or CreateDefault() with a path")
	}

	dir := filepath.Dir(c.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("config: failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: failed to rename into place: %w", err)
	}
	return nil
}

// DefaultPath returns ~/.tmuxgate/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".tmuxgate", "config.yaml"), nil
}

// Exists reports whether the config file at DefaultPath already exists.
func Exists() bool {
	path, err := DefaultPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// EnsureExists creates a default config at DefaultPath if one doesn't
// already exist, matching the teacher's first-run behavior but without the
// interactive prompt (cmd/tmuxgate/setup.go owns the huh-driven wizard;
// this is the non-interactive fallback a daemon start calls when setup was
// skipped).
func EnsureExists() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	if Exists() {
		return Load(path)
	}
	cfg := CreateDefault(path)
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("config: failed to save default config: %w", err)
	}
	fmt.Printf("[config] created default config at %s\n", path)
	return cfg, nil
}
