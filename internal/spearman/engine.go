package spearman

import (
	"context"
	"fmt"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/internal/ports"
)

// Engine computes correlation matrices for a fixed window size. The channel
// count is fixed by the first window it sees.
//
// The three stages are exported separately so the concurrent pipeline can
// run them in different goroutines; Compute runs them in sequence.
type Engine struct {
	window   int
	backend  ports.ComputeBackend
	channels int
}

// NewEngine validates window and binds the backend.
func NewEngine(window int, backend ports.ComputeBackend) (*Engine, error) {
	if window < 2 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidWindow, window)
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: no compute backend", domain.ErrConfiguration)
	}
	return &Engine{window: window, backend: backend}, nil
}

// Window returns the configured window size.
func (e *Engine) Window() int {
	return e.window
}

// Backend returns the bound backend.
func (e *Engine) Backend() ports.ComputeBackend {
	return e.backend
}

// Channels returns the channel count fixed so far, or 0.
func (e *Engine) Channels() int {
	return e.channels
}

// Prepare ranks the window and builds the backend workload.
func (e *Engine) Prepare(w domain.Window) (Workload, error) {
	ranked, err := RankWindow(w.Rows)
	if err != nil {
		return Workload{}, err
	}
	n := len(ranked)
	if e.channels == 0 {
		e.channels = n
	} else if n != e.channels {
		return Workload{}, fmt.Errorf("%w: session has %d channels, window has %d",
			domain.ErrChannelMismatch, e.channels, n)
	}
	return BuildWorkload(ranked, e.window), nil
}

// Run evaluates the squared differences of wl on the backend.
func (e *Engine) Run(ctx context.Context, wl Workload) ([]float64, error) {
	if wl.Pairs == 0 {
		return nil, nil
	}
	diffs, err := e.backend.RunPairwiseSquaredDiff(ctx, wl.One, wl.Two, wl.Pairs, wl.Window)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", e.backend.Name(), err)
	}
	return diffs, nil
}

// Finish converts backend output to coefficients.
func (e *Engine) Finish(wl Workload, diffs []float64) (domain.Matrix, error) {
	return Coefficients(diffs, wl.Window, wl.Channels)
}

// Compute runs all three stages for one window.
func (e *Engine) Compute(ctx context.Context, w domain.Window) (domain.Matrix, error) {
	wl, err := e.Prepare(w)
	if err != nil {
		return nil, err
	}
	diffs, err := e.Run(ctx, wl)
	if err != nil {
		return nil, err
	}
	return e.Finish(wl, diffs)
}
