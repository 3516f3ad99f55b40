package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Mode          string `toml:"mode"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	ClientName    string `toml:"client_name"`
	OverflowRate  int    `toml:"overflow_rate"`
	QueueCapacity int    `toml:"queue_capacity"`
	DialTimeout   string `toml:"dial_timeout"`
	Reconnect     *bool  `toml:"reconnect"`
	MaxReconnects int    `toml:"max_reconnects"`
	File          string `toml:"file"`
	Follow        *bool  `toml:"follow"`
	PollInterval  string `toml:"poll_interval"`
	Resume        *bool  `toml:"resume"`
	Window        int    `toml:"window"`
	Backend       string `toml:"backend"`
	Output        string `toml:"output"`
	Listen        string `toml:"listen"`
	WebhookURL    string `toml:"webhook_url"`
	AuthKey       string `toml:"auth_key"`
	HTTPTimeout   string `toml:"http_timeout"`
	StateDir      string `toml:"state_dir"`
	LogLevel      string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.rankflow/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".rankflow", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("mode", fc.Mode, &cfg.Mode)
	s.setString("host", fc.Host, &cfg.Host)
	s.setString("client-name", fc.ClientName, &cfg.ClientName)
	s.setString("file", fc.File, &cfg.File)
	s.setString("backend", fc.Backend, &cfg.Backend)
	s.setString("output", fc.Output, &cfg.Output)
	s.setString("listen", fc.Listen, &cfg.Listen)
	s.setString("webhook-url", fc.WebhookURL, &cfg.WebhookURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("dial-timeout", fc.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("overflow-rate", fc.OverflowRate, &cfg.OverflowRate)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)
	s.setInt("max-reconnects", fc.MaxReconnects, &cfg.MaxReconnects)
	s.setInt("window", fc.Window, &cfg.Window)

	s.setBool("reconnect", fc.Reconnect, &cfg.Reconnect)
	s.setBool("follow", fc.Follow, &cfg.Follow)
	s.setBool("resume", fc.Resume, &cfg.Resume)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
