// Package ingest moves rows from the NMC socket to the analytics consumer.
//
// A single worker goroutine owns the protocol client. The consumer talks to it
// only through channels: commands with reply channels, a buffered row queue
// and a latest-wins sample rate channel. When the consumer falls behind, Get
// decimates the backlog instead of letting latency grow without bound.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/metrics"
	"github.com/bft-labs/rankflow/pkg/log"
	"github.com/bft-labs/rankflow/pkg/nmc"
)

// Defaults.
const (
	DefaultQueueCapacity = 65536
	DefaultOverflowRate  = 100
	DefaultReadTimeout   = 100 * time.Millisecond
)

// Config configures a Pipeline.
type Config struct {
	Client nmc.Config

	// QueueCapacity is the row channel buffer.
	QueueCapacity int

	// OverflowRate multiplied by the window size is the backlog that
	// triggers decimation.
	OverflowRate int

	// ReadTimeout is how long the worker waits for data before checking
	// for commands again.
	ReadTimeout time.Duration

	Logger  log.Logger
	Metrics *metrics.Metrics
}

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdRegister
	cmdDisconnect
)

type command struct {
	kind  commandKind
	ctx   context.Context
	name  string
	reply chan error
}

// errRefused is the worker's reply to a failed connect.
var errRefused = errors.New("connection refused")

// Pipeline is the asynchronous ingest worker plus its consumer side.
// Get must be called from a single goroutine.
type Pipeline struct {
	cfg    Config
	logger log.Logger
	client *nmc.Client

	cmds  chan command
	rows  chan domain.Row
	rates chan float64
	done  chan struct{}

	startOnce sync.Once
	lastRate  float64
}

// New creates a Pipeline. Call Start to launch the worker.
func New(cfg Config) *Pipeline {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.OverflowRate <= 0 {
		cfg.OverflowRate = DefaultOverflowRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Client.Logger == nil {
		cfg.Client.Logger = cfg.Logger
	}
	return &Pipeline{
		cfg:    cfg,
		logger: log.With(cfg.Logger, log.String("component", "ingest")),
		client: nmc.NewClient(cfg.Client),
		cmds:   make(chan command),
		rows:   make(chan domain.Row, cfg.QueueCapacity),
		rates:  make(chan float64, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the worker. It runs until ctx is canceled, the server
// disconnects or Disconnect is called.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.run(ctx)
	})
}

// Done is closed when the worker has exited.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

// Connect asks the worker to dial the server.
func (p *Pipeline) Connect(ctx context.Context) (bool, error) {
	err := p.send(ctx, command{kind: cmdConnect, ctx: ctx})
	if errors.Is(err, errRefused) {
		return false, nil
	}
	return err == nil, err
}

// Register asks the worker to register under name. Streaming starts after.
func (p *Pipeline) Register(ctx context.Context, name string) error {
	return p.send(ctx, command{kind: cmdRegister, ctx: ctx, name: name})
}

// Disconnect stops the worker and closes the socket. The row queue is
// closed once the worker exits.
func (p *Pipeline) Disconnect(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	err := p.send(ctx, command{kind: cmdDisconnect, ctx: ctx})
	if errors.Is(err, errWorkerStopped) {
		return nil
	}
	return err
}

var errWorkerStopped = errors.New("ingest worker stopped")

func (p *Pipeline) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case p.cmds <- cmd:
	case <-p.done:
		return errWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth returns the number of rows waiting.
func (p *Pipeline) QueueDepth() int {
	return len(p.rows)
}

// Get collects windowSize rows. When the backlog exceeds
// windowSize*OverflowRate it keeps one row of every step+1, where
// step = backlog / (windowSize*OverflowRate). It returns false once the
// worker has ended and the queue is drained, or when ctx is done.
func (p *Pipeline) Get(ctx context.Context, windowSize int) (domain.Window, bool) {
	depth := len(p.rows)
	step := depth / (windowSize * p.cfg.OverflowRate)
	p.cfg.Metrics.QueueDepth(depth)

	rows := make([]domain.Row, 0, windowSize)
	for len(rows) < windowSize {
		for i := 0; i < step; i++ {
			if _, ok := p.recv(ctx); !ok {
				return domain.Window{}, false
			}
		}
		row, ok := p.recv(ctx)
		if !ok {
			return domain.Window{}, false
		}
		rows = append(rows, row)
	}
	p.cfg.Metrics.RowsDiscarded(step * windowSize)

	rate := p.LastRate() / float64(step+1)
	p.cfg.Metrics.SampleRate(rate)
	if step > 0 {
		p.logger.Debug("overflow decimation",
			log.Int("queue_depth", depth),
			log.Int("step", step),
			log.Float64("sample_rate", rate),
		)
	}
	return domain.Window{Rows: rows, SampleRate: rate}, true
}

// LastRate returns the most recent raw sample rate, or 0 before the first
// frame. Like Get it belongs to the consumer goroutine.
func (p *Pipeline) LastRate() float64 {
	select {
	case r := <-p.rates:
		p.lastRate = r
	default:
	}
	return p.lastRate
}

func (p *Pipeline) recv(ctx context.Context) (domain.Row, bool) {
	select {
	case row, ok := <-p.rows:
		return row, ok
	case <-ctx.Done():
		return nil, false
	}
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	defer close(p.rows)
	defer p.client.Close()

	registered := false
	for {
		if !registered {
			select {
			case cmd := <-p.cmds:
				var stop bool
				registered, stop = p.handle(cmd, registered)
				if stop {
					return
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case cmd := <-p.cmds:
			if _, stop := p.handle(cmd, registered); stop {
				return
			}
			continue
		case <-ctx.Done():
			return
		default:
		}

		ok, err := p.client.WaitReadable(p.cfg.ReadTimeout)
		if err != nil {
			p.logger.Warn("connection lost", log.Err(err))
			return
		}
		if !ok {
			continue
		}

		frame, err := p.client.ReadFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, nmc.ErrIdle):
			continue
		case errors.Is(err, nmc.ErrBrokenPackage):
			p.logger.Debug("broken package", log.Err(err))
			p.cfg.Metrics.BrokenPackage()
			continue
		case errors.Is(err, nmc.ErrServerDisconnect):
			p.logger.Info("server closed the stream")
			return
		case ctx.Err() != nil:
			return
		default:
			p.logger.Warn("stream read failed", log.Err(err))
			return
		}

		p.publishRate(float64(frame.SampleRateRaw))
		rows := frame.Rows()
		for _, row := range rows {
			if !p.enqueue(ctx, row, registered) {
				return
			}
		}
		p.cfg.Metrics.RowsReceived(len(rows))
	}
}

// enqueue blocks until row is queued. Commands arriving while the queue is
// full are still served. It reports false when the worker must exit.
func (p *Pipeline) enqueue(ctx context.Context, row domain.Row, registered bool) bool {
	for {
		select {
		case p.rows <- row:
			return true
		case cmd := <-p.cmds:
			if _, stop := p.handle(cmd, registered); stop {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}

// handle executes one command and reports the new registration state and
// whether the worker must exit.
func (p *Pipeline) handle(cmd command, registered bool) (bool, bool) {
	switch cmd.kind {
	case cmdConnect:
		if !p.client.Connect(cmd.ctx) {
			cmd.reply <- errRefused
			return registered, false
		}
		cmd.reply <- nil
		return registered, false
	case cmdRegister:
		err := p.client.Register(cmd.name)
		cmd.reply <- err
		return err == nil, false
	case cmdDisconnect:
		p.logger.Debug("disconnect requested")
		cmd.reply <- nil
		return registered, true
	}
	cmd.reply <- errors.New("unknown command")
	return registered, false
}

// publishRate replaces any unread rate with r.
func (p *Pipeline) publishRate(r float64) {
	select {
	case <-p.rates:
	default:
	}
	select {
	case p.rates <- r:
	default:
	}
}
