package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Defaults shared by the flags and DefaultConfig.
const (
	DefaultHost       = "127.0.0.1"
	DefaultWindow     = 10
	DefaultInputFile  = "input.txt"
	DefaultClientName = "Spearman"
	DefaultBackend    = "auto"
	DefaultOutput     = "-"
)

// Config holds CLI configuration for rankflow.
type Config struct {
	Mode string

	// Net mode
	Host          string
	Port          int
	ClientName    string
	OverflowRate  int
	QueueCapacity int
	DialTimeout   time.Duration
	Reconnect     bool
	MaxReconnects int

	// File mode
	File         string
	Follow       bool
	PollInterval time.Duration
	Resume       bool

	Window  int
	Backend string

	Output      string
	Listen      string
	WebhookURL  string
	AuthKey     string
	HTTPTimeout time.Duration

	StateDir string
	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Mode:          "net",
		Host:          DefaultHost,
		ClientName:    DefaultClientName,
		OverflowRate:  100,
		QueueCapacity: 65536,
		DialTimeout:   5 * time.Second,
		MaxReconnects: 0,
		File:          DefaultInputFile,
		PollInterval:  500 * time.Millisecond,
		Window:        DefaultWindow,
		Backend:       DefaultBackend,
		Output:        DefaultOutput,
		HTTPTimeout:   10 * time.Second,
		LogLevel:      "info",
		AuthKey:       os.Getenv("RANKFLOW_AUTH_KEY"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	switch c.Mode {
	case "net":
		if c.Host == "" {
			return fmt.Errorf("host is required in net mode")
		}
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("port is required in net mode (1-65535), got %d", c.Port)
		}
		if c.OverflowRate <= 0 {
			return fmt.Errorf("overflow rate must be positive")
		}
	case "file":
		if c.File == "" {
			return fmt.Errorf("file is required in file mode")
		}
		if c.PollInterval <= 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		if c.Resume && c.StateDir == "" {
			c.StateDir = filepath.Dir(c.File)
		}
	default:
		return fmt.Errorf("unknown mode %q (want net or file)", c.Mode)
	}

	if c.Window < 2 {
		return fmt.Errorf("window must be at least 2, got %d", c.Window)
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("max reconnects must not be negative")
	}

	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}

	// Ensure no trailing slash
	c.WebhookURL = strings.TrimRight(c.WebhookURL, "/")

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if positive.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
