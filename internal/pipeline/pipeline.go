// Package pipeline runs a session as four concurrent stages:
//
//	listener -> line handler -> compute handler -> output handler
//
// The listener reads windows, the line handler ranks them and builds the
// pair workload, the compute handler runs the backend and the output handler
// turns the result into coefficients and publishes it. Stages are connected
// by buffered channels, so order is preserved. The first failing stage
// cancels the others; end of input drains the stages one after another.
package pipeline

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/model"
	"github.com/bft-labs/rankflow/internal/ports"
	"github.com/bft-labs/rankflow/pkg/log"
)

// DefaultStageBuffer is the channel capacity between stages.
const DefaultStageBuffer = 4

// Config configures a Pipeline.
type Config struct {
	StageBuffer int
	Logger      log.Logger

	// OnResult is called by the output stage after every publication.
	OnResult func(*domain.Result)
}

// Pipeline drives one session.
type Pipeline struct {
	session *model.Session
	sink    ports.ResultSink
	cfg     Config
	logger  log.Logger
}

// New creates a pipeline for an open session.
func New(session *model.Session, sink ports.ResultSink, cfg Config) *Pipeline {
	if cfg.StageBuffer <= 0 {
		cfg.StageBuffer = DefaultStageBuffer
	}
	return &Pipeline{
		session: session,
		sink:    sink,
		cfg:     cfg,
		logger:  log.With(cfg.Logger, log.String("component", "pipeline")),
	}
}

// Run processes windows until the input ends, ctx is canceled or a stage
// fails. It returns the number of results published. End of input is not an
// error.
func (p *Pipeline) Run(ctx context.Context) (uint64, error) {
	g, gctx := errgroup.WithContext(ctx)

	windows := make(chan *model.Job, p.cfg.StageBuffer)
	prepared := make(chan *model.Job, p.cfg.StageBuffer)
	computed := make(chan *model.Job, p.cfg.StageBuffer)
	var published uint64

	g.Go(func() error {
		defer close(windows)
		return p.listen(gctx, windows)
	})
	g.Go(func() error {
		defer close(prepared)
		return stage(gctx, windows, prepared, func(job *model.Job) error {
			wl, err := p.session.Engine().Prepare(job.Window)
			job.Workload = wl
			return err
		})
	})
	g.Go(func() error {
		defer close(computed)
		return stage(gctx, prepared, computed, func(job *model.Job) error {
			diffs, err := p.session.Engine().Run(gctx, job.Workload)
			job.Diffs = diffs
			return err
		})
	})
	g.Go(func() error {
		for job := range computed {
			res, err := p.session.Complete(gctx, job)
			if err != nil {
				return err
			}
			if p.sink != nil {
				if err := p.sink.Publish(gctx, res); err != nil {
					p.logger.Warn("publish failed", log.Uint64("seq", res.Seq), log.Err(err))
				}
			}
			published++
			if p.cfg.OnResult != nil {
				p.cfg.OnResult(res)
			}
		}
		return nil
	})

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return published, ctx.Err()
	}
	return published, err
}

func (p *Pipeline) listen(ctx context.Context, out chan<- *model.Job) error {
	for {
		job, err := p.session.Next(ctx)
		if errors.Is(err, io.EOF) {
			p.logger.Info("input exhausted")
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// stage applies fn to every job from in and forwards it to out.
func stage(ctx context.Context, in <-chan *model.Job, out chan<- *model.Job, fn func(*model.Job) error) error {
	for job := range in {
		if err := fn(job); err != nil {
			return err
		}
		select {
		case out <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
