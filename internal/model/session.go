package model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/rankflow/internal/compute"
	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/metrics"
	"github.com/bft-labs/rankflow/internal/ports"
	"github.com/bft-labs/rankflow/internal/source"
	"github.com/bft-labs/rankflow/internal/spearman"
	"github.com/bft-labs/rankflow/pkg/log"
	"github.com/bft-labs/rankflow/pkg/state"
)

// Mode selects the input of a session.
type Mode string

const (
	ModeNet  Mode = "net"
	ModeFile Mode = "file"
)

// ParseMode validates s.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNet, ModeFile:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownMode, s)
	}
}

// Params configures a session. Net fields are ignored in file mode and
// the other way round.
type Params struct {
	Window int

	// Net mode
	Host          string
	Port          int
	ClientName    string
	OverflowRate  int
	QueueCapacity int
	DialTimeout   time.Duration

	// File mode
	Path         string
	Follow       bool
	PollInterval time.Duration

	// Checkpoints persists file progress after every window when set.
	Checkpoints ports.CheckpointRepository

	// Resume continues from the saved checkpoint of the same path.
	Resume bool
}

// Validate checks Params for mode before any I/O happens.
func (p Params) Validate(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	if p.Window < 2 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidWindow, p.Window)
	}
	switch mode {
	case ModeNet:
		if p.Host == "" {
			return fmt.Errorf("%w: host is required in net mode", domain.ErrConfiguration)
		}
		if p.Port <= 0 || p.Port > 65535 {
			return fmt.Errorf("%w: port %d out of range", domain.ErrConfiguration, p.Port)
		}
	case ModeFile:
		if p.Path == "" {
			return fmt.Errorf("%w: file is required in file mode", domain.ErrConfiguration)
		}
	}
	return nil
}

// Job carries one window through the engine stages.
type Job struct {
	Window   domain.Window
	Workload spearman.Workload
	Diffs    []float64
	Started  time.Time

	offset int64
}

// Session is one open input together with its engine.
type Session struct {
	ID     string
	Mode   Mode
	params Params

	src     ports.SourceReader
	file    *source.FileReader
	engine  *spearman.Engine
	logger  log.Logger
	metrics *metrics.Metrics

	seq   uint64
	state state.State

	// done is canceled by Interrupt and Close.
	done   context.Context
	cancel context.CancelFunc
}

// Open validates p, builds the engine and starts the input.
func Open(ctx context.Context, mode Mode, p Params, backend ports.ComputeBackend, logger log.Logger, m *metrics.Metrics) (*Session, error) {
	if err := p.Validate(mode); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = compute.NewCPU()
	}
	engine, err := spearman.NewEngine(p.Window, backend)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:      uuid.NewString(),
		Mode:    mode,
		params:  p,
		engine:  engine,
		metrics: m,
	}
	s.logger = log.With(logger, log.String("session", s.ID), log.String("mode", string(mode)))

	switch mode {
	case ModeNet:
		s.src = source.NewNetworkReader(source.NetworkConfig{
			Host:          p.Host,
			Port:          p.Port,
			ClientName:    p.ClientName,
			OverflowRate:  p.OverflowRate,
			QueueCapacity: p.QueueCapacity,
			DialTimeout:   p.DialTimeout,
			Logger:        s.logger,
			Metrics:       m,
		})
	case ModeFile:
		offset, err := s.restore(ctx)
		if err != nil {
			return nil, err
		}
		s.file = source.NewFileReader(source.FileConfig{
			Path:         p.Path,
			Offset:       offset,
			Follow:       p.Follow,
			PollInterval: p.PollInterval,
			Logger:       s.logger,
		})
		s.src = s.file
	}

	if err := s.src.Start(ctx); err != nil {
		return nil, err
	}
	s.done, s.cancel = context.WithCancel(context.Background())
	s.logger.Info("session started",
		log.Int("window", p.Window),
		log.String("backend", backend.Name()),
	)
	return s, nil
}

// restore loads the checkpoint when resuming and returns the start offset.
func (s *Session) restore(ctx context.Context) (int64, error) {
	if s.params.Checkpoints == nil || !s.params.Resume {
		return 0, nil
	}
	st, err := s.params.Checkpoints.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if !st.Matches(s.params.Path) {
		s.logger.Info("no checkpoint for file, starting at the beginning")
		return 0, nil
	}
	s.state = st
	s.seq = st.Windows
	s.logger.Info("resuming",
		log.Int64("offset", st.Offset),
		log.Uint64("windows", st.Windows),
	)
	return st.Offset, nil
}

// Engine returns the session engine.
func (s *Session) Engine() *spearman.Engine {
	return s.engine
}

// Next reads the next window. It returns io.EOF at end of input.
func (s *Session) Next(ctx context.Context) (*Job, error) {
	w, err := s.src.Get(ctx, s.engine.Window())
	if err != nil {
		return nil, err
	}
	job := &Job{Window: w, Started: time.Now()}
	if s.file != nil {
		job.offset = s.file.Offset()
	}
	return job, nil
}

// Complete turns finished backend output into a result and records progress.
func (s *Session) Complete(ctx context.Context, job *Job) (*domain.Result, error) {
	m, err := s.engine.Finish(job.Workload, job.Diffs)
	if err != nil {
		return nil, err
	}

	s.seq++
	now := time.Now()
	res := &domain.Result{
		SessionID:  s.ID,
		Seq:        s.seq,
		Keys:       job.Workload.Channels,
		Kfs:        m,
		SampleRate: job.Window.SampleRate,
		Partial:    job.Window.Partial,
		Backend:    s.engine.Backend().Name(),
		Duration:   now.Sub(job.Started),
		At:         now,
	}
	s.metrics.Window(res.Backend, res.Keys, res.Duration)
	s.checkpoint(ctx, job)
	return res, nil
}

func (s *Session) checkpoint(ctx context.Context, job *Job) {
	if s.file == nil || s.params.Checkpoints == nil {
		return
	}
	s.state.SessionID = s.ID
	s.state.Advance(s.params.Path, job.offset)
	if err := s.params.Checkpoints.Save(ctx, s.state); err != nil {
		s.logger.Warn("checkpoint not saved", log.Err(err))
	}
}

// Interrupt cancels reads in flight. The input stays open until Close.
func (s *Session) Interrupt() {
	s.cancel()
}

// Interrupted reports whether Interrupt or Close was called.
func (s *Session) Interrupted() bool {
	return s.done.Err() != nil
}

// bind returns a context that is also canceled by Interrupt.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.done, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Close stops the input.
func (s *Session) Close() error {
	s.cancel()
	err := s.src.Stop()
	s.logger.Info("session stopped", log.Uint64("results", s.seq))
	return err
}
