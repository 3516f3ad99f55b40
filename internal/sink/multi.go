package sink

import (
	"context"
	"errors"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/metrics"
	"github.com/bft-labs/rankflow/internal/ports"
)

// Multi publishes to every sink in order. A failing sink does not stop the
// others; the errors are joined.
type Multi struct {
	sinks   []ports.ResultSink
	metrics *metrics.Metrics
}

// NewMulti fans out to sinks. Nil entries are skipped.
func NewMulti(m *metrics.Metrics, sinks ...ports.ResultSink) *Multi {
	out := &Multi{metrics: m}
	for _, s := range sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

// Add appends a sink.
func (m *Multi) Add(s ports.ResultSink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Publish(ctx context.Context, r *domain.Result) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	m.metrics.Published(err)
	return err
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
