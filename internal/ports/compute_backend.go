package ports

import "context"

// ComputeBackend evaluates the elementwise squared difference used by the pair
// engine.
//
// Contract: len(out) == len(one) == len(two) == pairs*window and
// out[k] == (one[k]-two[k])^2.
type ComputeBackend interface {
	Name() string
	RunPairwiseSquaredDiff(ctx context.Context, one, two []float64, pairs, window int) ([]float64, error)
}
