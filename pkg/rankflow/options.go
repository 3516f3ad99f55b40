package rankflow

import (
	"context"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/log"
)

// Result is one published correlation matrix.
type Result = domain.Result

// Sink receives every result. Sinks passed to WithSink are closed when the
// run ends.
type Sink interface {
	Publish(ctx context.Context, r *Result) error
	Close() error
}

// Backend runs the per-pair squared rank difference kernel.
type Backend interface {
	Name() string
	RunPairwiseSquaredDiff(ctx context.Context, one, two []float64, pairs, window int) ([]float64, error)
}

// Option configures optional behavior of Rankflow.
type Option func(*options)

type options struct {
	logger       log.Logger
	eventHandler EventHandler
	backend      Backend
	sinks        []Sink
}

// WithLogger sets a custom logger. Without it nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for state changes and results.
// Handlers are called synchronously and should return quickly.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithBackend overrides the backend chosen from Config.Backend.
func WithBackend(b Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithSink adds a result sink. May be given more than once.
func WithSink(s Sink) Option {
	return func(o *options) {
		o.sinks = append(o.sinks, s)
	}
}
