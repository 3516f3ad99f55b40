package model

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/metrics"
	"github.com/bft-labs/rankflow/internal/ports"
	"github.com/bft-labs/rankflow/pkg/log"
)

// Option configures a Model.
type Option func(*Model)

// WithMetrics records step metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(model *Model) {
		model.metrics = m
	}
}

// Model runs correlation steps for one session at a time.
//
// mu guards the session pointer and is never held across I/O. step
// serializes Step with session teardown, so StopSession interrupts a
// blocked Step before closing the input under it.
type Model struct {
	backend ports.ComputeBackend
	logger  log.Logger
	metrics *metrics.Metrics

	ctl  sync.Mutex
	step sync.Mutex

	mu      sync.Mutex
	session *Session
	ended   bool
}

// New creates a Model using backend for every session.
func New(backend ports.ComputeBackend, logger log.Logger, opts ...Option) *Model {
	m := &Model{backend: backend, logger: log.OrNoop(logger)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartSession opens a new session. Any previous session is stopped first.
// Configuration errors are reported before any I/O.
func (m *Model) StartSession(ctx context.Context, mode Mode, p Params) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	_ = m.shutdown(m.detach())
	s, err := Open(ctx, mode, p, m.backend, m.logger, m.metrics)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.session = s
	m.ended = false
	m.mu.Unlock()
	return nil
}

// Session returns the active session or nil.
func (m *Model) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Step processes one window. It returns nil, nil once the input is
// exhausted, the server disconnected or the session was stopped.
func (m *Model) Step(ctx context.Context) (*domain.Result, error) {
	m.mu.Lock()
	s, ended := m.session, m.ended
	m.mu.Unlock()

	if s == nil {
		return nil, domain.ErrNoSession
	}
	if ended {
		return nil, nil
	}

	m.step.Lock()
	defer m.step.Unlock()
	if s.Interrupted() {
		return nil, nil
	}
	ctx, cancel := s.bind(ctx)
	defer cancel()

	job, err := s.Next(ctx)
	if errors.Is(err, io.EOF) {
		m.mu.Lock()
		if m.session == s {
			m.ended = true
		}
		m.mu.Unlock()
		s.logger.Info("input exhausted")
		return nil, nil
	}
	if err != nil {
		if s.Interrupted() {
			return nil, nil
		}
		return nil, err
	}

	job.Workload, err = s.engine.Prepare(job.Window)
	if err != nil {
		return nil, err
	}
	job.Diffs, err = s.engine.Run(ctx, job.Workload)
	if err != nil {
		if s.Interrupted() {
			return nil, nil
		}
		return nil, err
	}
	return s.Complete(ctx, job)
}

// StopSession releases the input, interrupting a Step blocked on it.
// Stopping without a session is a no-op.
func (m *Model) StopSession() error {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	return m.shutdown(m.detach())
}

// detach clears the active session and returns it.
func (m *Model) detach() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session
	m.session = nil
	m.ended = false
	return s
}

func (m *Model) shutdown(s *Session) error {
	if s == nil {
		return nil
	}
	s.Interrupt()
	m.step.Lock()
	defer m.step.Unlock()
	return s.Close()
}
