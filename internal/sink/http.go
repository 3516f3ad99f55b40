package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/lifecycle"
	"github.com/bft-labs/rankflow/pkg/log"
)

// HTTPConfig configures an HTTP sink.
type HTTPConfig struct {
	URL        string
	AuthKey    string
	Timeout    time.Duration
	MaxRetries int
	RetryMin   time.Duration
	RetryMax   time.Duration
	Client     *http.Client
	Logger     log.Logger
}

// HTTP posts every result as JSON to a webhook.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
	logger log.Logger
}

// NewHTTP creates a webhook sink.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryMin <= 0 {
		cfg.RetryMin = 500 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 10 * time.Second
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTP{
		cfg:    cfg,
		client: client,
		logger: log.With(cfg.Logger, log.String("component", "http_sink"), log.String("url", cfg.URL)),
	}
}

// errPermanent marks responses that a retry cannot fix.
var errPermanent = errors.New("permanent failure")

// Publish posts r, retrying transport errors and 5xx responses with backoff.
func (h *HTTP) Publish(ctx context.Context, r *domain.Result) error {
	body, err := Encode(r)
	if err != nil {
		return err
	}

	backoff := lifecycle.NewBackoff(h.cfg.RetryMin, h.cfg.RetryMax)
	for attempt := 0; ; attempt++ {
		err = h.post(ctx, body)
		if err == nil || errors.Is(err, errPermanent) || attempt >= h.cfg.MaxRetries {
			return err
		}
		h.logger.Debug("webhook post failed, retrying",
			log.Int("attempt", attempt+1),
			log.Uint64("seq", r.Seq),
			log.Err(err),
		)
		if werr := backoff.Wait(ctx); werr != nil {
			return werr
		}
	}
}

func (h *HTTP) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.cfg.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.AuthKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned %s", resp.Status)
	default:
		return fmt.Errorf("%w: webhook returned %s", errPermanent, resp.Status)
	}
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
