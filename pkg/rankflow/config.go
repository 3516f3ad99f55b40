package rankflow

import (
	"fmt"
	"time"

	"github.com/bft-labs/rankflow/internal/compute"
	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/model"
)

// Config configures a Rankflow instance.
type Config struct {
	// Mode is "net" or "file".
	Mode   string
	Window int

	// Net mode
	Host          string
	Port          int
	ClientName    string
	OverflowRate  int
	QueueCapacity int
	DialTimeout   time.Duration

	// Reconnect restarts a net session after the server disconnects or a
	// connection fails. MaxReconnects bounds consecutive restarts; zero is unlimited.
	Reconnect     bool
	MaxReconnects int
	RetryMin      time.Duration
	RetryMax      time.Duration

	// File mode
	File         string
	Follow       bool
	PollInterval time.Duration

	// StateDir enables status.json checkpoints in file mode.
	StateDir string
	Resume   bool

	// Backend is auto, cpu, gpu or emulated. Ignored when WithBackend is used.
	Backend string

	// Listen enables the HTTP surface (/ws, /metrics, /healthz, /latest).
	Listen string

	// WebhookURL enables the webhook sink.
	WebhookURL  string
	AuthKey     string
	HTTPTimeout time.Duration

	StageBuffer int
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Mode == "" {
		c.Mode = string(model.ModeNet)
	}
	if c.Window == 0 {
		c.Window = 10
	}
	if c.ClientName == "" {
		c.ClientName = "Spearman"
	}
	if c.OverflowRate == 0 {
		c.OverflowRate = 100
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.RetryMin == 0 {
		c.RetryMin = 500 * time.Millisecond
	}
	if c.RetryMax == 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.Backend == "" {
		c.Backend = string(compute.PreferAuto)
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 10 * time.Second
	}
}

// Validate reports configuration errors before any I/O. Errors wrap
// domain.ErrConfiguration.
func (c Config) Validate() error {
	mode, err := model.ParseMode(c.Mode)
	if err != nil {
		return err
	}
	if err := c.params().Validate(mode); err != nil {
		return err
	}
	if _, err := compute.ParsePreference(c.Backend); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("%w: max reconnects must not be negative", domain.ErrConfiguration)
	}
	return nil
}

func (c Config) params() model.Params {
	return model.Params{
		Window:        c.Window,
		Host:          c.Host,
		Port:          c.Port,
		ClientName:    c.ClientName,
		OverflowRate:  c.OverflowRate,
		QueueCapacity: c.QueueCapacity,
		DialTimeout:   c.DialTimeout,
		Path:          c.File,
		Follow:        c.Follow,
		PollInterval:  c.PollInterval,
		Resume:        c.Resume,
	}
}
