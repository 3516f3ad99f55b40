package cliconfig

import "os"

// EnvPrefix prefixes every environment variable rankflow reads.
const EnvPrefix = "RANKFLOW_"

func env(name string) string { return os.Getenv(EnvPrefix + name) }

// ApplyEnvConfig applies configuration from environment variables (RANKFLOW_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("mode", env("MODE"), &cfg.Mode)
	s.setString("host", env("HOST"), &cfg.Host)
	s.setString("client-name", env("CLIENT_NAME"), &cfg.ClientName)
	s.setString("file", env("FILE"), &cfg.File)
	s.setString("backend", env("BACKEND"), &cfg.Backend)
	s.setString("output", env("OUTPUT"), &cfg.Output)
	s.setString("listen", env("LISTEN"), &cfg.Listen)
	s.setString("webhook-url", env("WEBHOOK_URL"), &cfg.WebhookURL)
	s.setString("auth-key", env("AUTH_KEY"), &cfg.AuthKey)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("dial-timeout", env("DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", env("POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	for _, v := range []struct {
		flag, name string
		dst        *int
	}{
		{"port", "PORT", &cfg.Port},
		{"overflow-rate", "OVERFLOW_RATE", &cfg.OverflowRate},
		{"queue-capacity", "QUEUE_CAPACITY", &cfg.QueueCapacity},
		{"max-reconnects", "MAX_RECONNECTS", &cfg.MaxReconnects},
		{"window", "WINDOW", &cfg.Window},
	} {
		if err := s.setIntFromString(v.flag, env(v.name), v.dst); err != nil {
			return err
		}
	}

	s.setBoolFromString("reconnect", env("RECONNECT"), &cfg.Reconnect)
	s.setBoolFromString("follow", env("FOLLOW"), &cfg.Follow)
	s.setBoolFromString("resume", env("RESUME"), &cfg.Resume)

	return nil
}
