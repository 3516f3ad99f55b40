package rankflow

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/rankflow/internal/compute"
	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/metrics"
	"github.com/bft-labs/rankflow/internal/model"
	"github.com/bft-labs/rankflow/internal/pipeline"
	"github.com/bft-labs/rankflow/internal/server"
	"github.com/bft-labs/rankflow/internal/sink"
	"github.com/bft-labs/rankflow/pkg/lifecycle"
	"github.com/bft-labs/rankflow/pkg/log"
	"github.com/bft-labs/rankflow/pkg/state"
)

// Errors returned by Rankflow. Configuration errors wrap ErrConfiguration.
var (
	ErrConfiguration   = domain.ErrConfiguration
	ErrConnectFailure  = domain.ErrConnectFailure
	ErrOpenFailed      = domain.ErrOpenFailed
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = lifecycle.ErrShutdownTimeout
)

// Rankflow computes rolling Spearman correlation matrices over one input.
// Use New() to create an instance, then Start() to begin processing.
type Rankflow struct {
	config   Config
	mode     model.Mode
	opts     options
	logger   log.Logger
	emitter  *eventEmitter
	manager  *lifecycle.DefaultManager
	runner   *lifecycle.Runner
	backend  Backend
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	latest   *sink.Latest

	results atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	server  *server.Server
	lastErr error
}

// New creates an instance in StateStopped. The compute backend is probed
// here, once for the lifetime of the instance.
func New(cfg Config, opts ...Option) (*Rankflow, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)

	backend := o.backend
	if backend == nil {
		pref, err := compute.ParsePreference(cfg.Backend)
		if err != nil {
			return nil, err
		}
		if backend, err = compute.Select(pref, logger); err != nil {
			return nil, err
		}
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	mode := model.Mode(cfg.Mode)
	emitter := &eventEmitter{handler: o.eventHandler}

	return &Rankflow{
		config:  cfg,
		mode:    mode,
		opts:    o,
		logger:  logger,
		emitter: emitter,
		manager: lifecycle.NewManager(logger, emitter),
		runner: lifecycle.NewRunner(lifecycle.RunnerConfig{
			Reconnect:     cfg.Reconnect && mode == model.ModeNet,
			MaxReconnects: cfg.MaxReconnects,
			RetryMin:      cfg.RetryMin,
			RetryMax:      cfg.RetryMax,
			Retryable:     retryable,
		}, logger),
		backend:  backend,
		registry: registry,
		metrics:  m,
		latest:   sink.NewLatest(),
	}, nil
}

// retryable rejects errors a restart cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrConfiguration) && !errors.Is(err, domain.ErrOpenFailed)
}

// Start begins processing in the background and returns once the HTTP
// surface, if any, is listening.
func (r *Rankflow) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.manager.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := r.manager.TransitionTo(lifecycle.StateStarting, "Start() called"); err != nil {
		return err
	}

	out, srv := r.buildSinks()
	if srv != nil {
		if err := srv.Start(); err != nil {
			_ = out.Close()
			_ = r.manager.TransitionTo(lifecycle.StateCrashed, "http listen failed: "+err.Error())
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.server = srv
	r.lastErr = nil
	r.manager.SetCancel(cancel)

	r.manager.AddWorker()
	go func() {
		defer r.manager.WorkerDone()
		defer cancel()

		if err := r.manager.TransitionTo(lifecycle.StateRunning, "session starting"); err != nil {
			r.logger.Debug("stopped before running", log.Err(err))
			r.teardown(out, srv)
			return
		}

		err := r.runner.Run(runCtx, func(ctx context.Context) error {
			return r.runSession(ctx, out)
		})
		r.teardown(out, srv)

		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("rankflow stopped with error", log.Err(err))
			r.setErr(err)
			_ = r.manager.TransitionTo(lifecycle.StateCrashed, err.Error())
			return
		}
		// Stop() may already own the Stopping transition.
		if r.manager.TransitionTo(lifecycle.StateStopping, "input exhausted") == nil {
			_ = r.manager.TransitionTo(lifecycle.StateStopped, "input exhausted")
		}
	}()

	return nil
}

func (r *Rankflow) buildSinks() (*sink.Multi, *server.Server) {
	out := sink.NewMulti(r.metrics, r.latest)
	for _, s := range r.opts.sinks {
		out.Add(s)
	}
	if r.config.WebhookURL != "" {
		out.Add(sink.NewHTTP(sink.HTTPConfig{
			URL:      r.config.WebhookURL,
			AuthKey:  r.config.AuthKey,
			Timeout:  r.config.HTTPTimeout,
			RetryMin: r.config.RetryMin,
			RetryMax: r.config.RetryMax,
			Logger:   r.logger,
		}))
	}
	if r.config.Listen == "" {
		return out, nil
	}

	ws := sink.NewWebSocket(r.logger)
	out.Add(ws)
	return out, server.New(server.Config{
		Addr:      r.config.Listen,
		Gatherer:  r.registry,
		WebSocket: ws,
		Latest:    r.latest,
		Status:    func() string { return r.Status().String() },
		Logger:    r.logger,
	})
}

// runSession opens one session and drives it to the end of its input.
func (r *Rankflow) runSession(ctx context.Context, out *sink.Multi) error {
	params := r.config.params()
	if r.mode == model.ModeFile && r.config.StateDir != "" {
		params.Checkpoints = state.NewFileRepository(r.config.StateDir)
	}
	// A later Start continues from the last checkpoint.
	if r.results.Load() > 0 {
		params.Resume = true
	}

	session, err := model.Open(ctx, r.mode, params, r.backend, r.logger, r.metrics)
	if err != nil {
		return err
	}
	defer session.Close()

	p := pipeline.New(session, out, pipeline.Config{
		StageBuffer: r.config.StageBuffer,
		Logger:      r.logger,
		OnResult: func(res *domain.Result) {
			r.results.Add(1)
			r.emitter.OnResult(res)
		},
	})
	n, err := p.Run(ctx)
	r.logger.Info("session finished", log.Uint64("results", n))
	return err
}

func (r *Rankflow) teardown(out io.Closer, srv *server.Server) {
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			r.logger.Warn("http shutdown", log.Err(err))
		}
		cancel()

		r.mu.Lock()
		if r.server == srv {
			r.server = nil
		}
		r.mu.Unlock()
	}
	if err := out.Close(); err != nil {
		r.logger.Warn("closing sinks", log.Err(err))
	}
}

// Stop cancels processing and waits for the session to close.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (r *Rankflow) Stop() error {
	r.mu.Lock()
	if !r.manager.CanStop() {
		r.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := r.manager.TransitionTo(lifecycle.StateStopping, "Stop() called"); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	err := r.manager.WaitWithTimeout(lifecycle.ShutdownTimeout)
	if err != nil {
		_ = r.manager.TransitionTo(lifecycle.StateCrashed, "shutdown timeout")
	} else if r.Status() == lifecycle.StateStopping {
		_ = r.manager.TransitionTo(lifecycle.StateStopped, "graceful shutdown")
	}
	return err
}

// Wait blocks until the instance leaves Starting and Running, or ctx is done.
func (r *Rankflow) Wait(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch r.Status() {
		case lifecycle.StateStopped, lifecycle.StateCrashed:
			return r.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops a running instance and releases the backend.
func (r *Rankflow) Close() error {
	if err := r.Stop(); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		return err
	}
	if c, ok := r.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Status returns the current lifecycle state.
func (r *Rankflow) Status() State {
	return r.manager.State()
}

// Err returns the error that crashed the last run, if any.
func (r *Rankflow) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Rankflow) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// Results returns the number of results published since New.
func (r *Rankflow) Results() uint64 {
	return r.results.Load()
}

// Latest returns the most recent result, or nil.
func (r *Rankflow) Latest() *Result {
	return r.latest.Get()
}

// Backend returns the name of the compute backend in use.
func (r *Rankflow) Backend() string {
	return r.backend.Name()
}

// Addr returns the HTTP listen address while running, or "".
func (r *Rankflow) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.server == nil {
		return ""
	}
	return r.server.Addr()
}
