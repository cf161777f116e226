// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.aimuz.me/orb/internal/types"
	"go.aimuz.me/orb/overlay"
)

const (
	appName        = "orb"
	configFileName = "config.json"
)

// Defaults.
const (
	DefaultStatusURL  = "http://127.0.0.1:9877"
	DefaultListenAddr = "127.0.0.1:9877"
	DefaultHotkey     = "ctrl+shift+space"
)

// Duration is a time.Duration stored as a string such as "100ms".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// Config represents the application configuration.
type Config struct {
	// StatusURL is the assistant's status endpoint.
	StatusURL string `json:"status_url"`
	// ListenAddr is where overlayctl serve listens.
	ListenAddr string `json:"listen_addr"`

	PollInterval Duration `json:"poll_interval"`
	PollTimeout  Duration `json:"poll_timeout"`
	RevealSpeed  Duration `json:"reveal_speed"` // per character

	// Labels overrides state labels, keyed by state name.
	Labels map[string]string `json:"labels,omitempty"`

	// Hotkey toggles interaction mode, e.g. "ctrl+shift+space". Empty disables it.
	Hotkey string `json:"hotkey"`

	// Push subscribes to the status server's websocket feed in addition to
	// polling.
	Push bool `json:"push"`
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, filling unset fields with defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Fields absent from the file keep their defaults.
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveFile(path)
}

// SaveFile writes the configuration to path as indented JSON.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks label keys and durations.
func (c *Config) Validate() error {
	for name := range c.Labels {
		if _, err := types.ParseState(name); err != nil {
			return fmt.Errorf("invalid label: %w", err)
		}
	}
	if c.PollInterval < 0 || c.PollTimeout < 0 || c.RevealSpeed < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// OverlayConfig returns the synchronizer settings described by c.
func (c *Config) OverlayConfig() overlay.Config {
	cfg := overlay.DefaultConfig()
	cfg.PollInterval = time.Duration(c.PollInterval)
	cfg.PollTimeout = time.Duration(c.PollTimeout)
	cfg.RevealSpeed = time.Duration(c.RevealSpeed)
	cfg.Labels = c.OverlayLabels()
	return cfg
}

// OverlayLabels merges the configured labels over the defaults.
func (c *Config) OverlayLabels() overlay.Labels {
	labels := overlay.DefaultLabels()
	for name, text := range c.Labels {
		state, err := types.ParseState(name)
		if err != nil {
			slog.Warn("skip label", "error", err)
			continue
		}
		if text != "" {
			labels[state] = text
		}
	}
	return labels
}

// Path returns the config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{Hotkey: DefaultHotkey}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	def := overlay.DefaultConfig()
	if c.StatusURL == "" {
		c.StatusURL = DefaultStatusURL
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(def.PollInterval)
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = Duration(def.PollTimeout)
	}
	if c.RevealSpeed == 0 {
		c.RevealSpeed = Duration(def.RevealSpeed)
	}
}
