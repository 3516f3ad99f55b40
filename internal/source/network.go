package source

import (
	"context"
	"io"
	"time"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/ingest"
	"github.com/bft-labs/rankflow/internal/metrics"
	"github.com/bft-labs/rankflow/pkg/log"
	"github.com/bft-labs/rankflow/pkg/nmc"
)

// DefaultClientName is the name registered with the NMC server.
const DefaultClientName = "Spearman"

// ConnectError reports a refused connection. It matches domain.ErrConnectFailure.
type ConnectError struct {
	Addr string
}

func (e *ConnectError) Error() string { return "error connecting to " + e.Addr }
func (e *ConnectError) Unwrap() error { return domain.ErrConnectFailure }

// NetworkConfig configures a NetworkReader.
type NetworkConfig struct {
	Host          string
	Port          int
	ClientName    string
	OverflowRate  int
	QueueCapacity int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	Logger        log.Logger
	Metrics       *metrics.Metrics
}

// NetworkReader reads windows from an NMC server.
type NetworkReader struct {
	cfg      NetworkConfig
	pipeline *ingest.Pipeline
	cancel   context.CancelFunc
}

// NewNetworkReader creates a reader; nothing is dialed until Start.
func NewNetworkReader(cfg NetworkConfig) *NetworkReader {
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	return &NetworkReader{cfg: cfg}
}

// Start launches the ingest worker, connects and registers.
func (r *NetworkReader) Start(ctx context.Context) error {
	clientCfg := nmc.Config{
		Host:        r.cfg.Host,
		Port:        r.cfg.Port,
		DialTimeout: r.cfg.DialTimeout,
		Logger:      r.cfg.Logger,
	}
	r.pipeline = ingest.New(ingest.Config{
		Client:        clientCfg,
		QueueCapacity: r.cfg.QueueCapacity,
		OverflowRate:  r.cfg.OverflowRate,
		ReadTimeout:   r.cfg.ReadTimeout,
		Logger:        r.cfg.Logger,
		Metrics:       r.cfg.Metrics,
	})

	wctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.pipeline.Start(wctx)

	ok, err := r.pipeline.Connect(ctx)
	if err != nil {
		cancel()
		return err
	}
	if !ok {
		cancel()
		return &ConnectError{Addr: clientCfg.Addr()}
	}
	if err := r.pipeline.Register(ctx, r.cfg.ClientName); err != nil {
		cancel()
		return err
	}
	return nil
}

// Get returns the next window. After the stream ended it returns io.EOF
// with an empty window carrying the last sample rate.
func (r *NetworkReader) Get(ctx context.Context, windowSize int) (domain.Window, error) {
	if r.pipeline == nil {
		return domain.Window{SampleRate: domain.DefaultSampleRate}, io.EOF
	}
	w, ok := r.pipeline.Get(ctx, windowSize)
	if !ok {
		end := domain.Window{SampleRate: sampleRate(r.pipeline.LastRate())}
		if err := ctx.Err(); err != nil {
			return end, err
		}
		return end, io.EOF
	}
	w.SampleRate = sampleRate(w.SampleRate)
	return w, nil
}

// sampleRate substitutes the default for a frame that carried no rate.
func sampleRate(r float64) float64 {
	if r == 0 {
		return domain.DefaultSampleRate
	}
	return r
}

// Stop disconnects and waits briefly for the worker to exit.
func (r *NetworkReader) Stop() error {
	if r.pipeline == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := r.pipeline.Disconnect(ctx)
	r.cancel()
	select {
	case <-r.pipeline.Done():
	case <-ctx.Done():
	}
	return err
}
