package compute

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// CPU computes squared differences with gonum.
type CPU struct{}

// NewCPU returns the CPU backend.
func NewCPU() *CPU {
	return &CPU{}
}

// Name returns "cpu".
func (*CPU) Name() string {
	return "cpu"
}

// RunPairwiseSquaredDiff returns (one[k]-two[k])^2 for every k.
func (*CPU) RunPairwiseSquaredDiff(ctx context.Context, one, two []float64, pairs, window int) ([]float64, error) {
	if err := checkInput(one, two, pairs, window); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(one))
	if len(out) == 0 {
		return out, nil
	}
	floats.SubTo(out, one, two)
	floats.Mul(out, out)
	return out, nil
}

func checkInput(one, two []float64, pairs, window int) error {
	if len(one) != len(two) {
		return fmt.Errorf("%w: vectors of length %d and %d", ErrBadInput, len(one), len(two))
	}
	if pairs*window != len(one) {
		return fmt.Errorf("%w: %d pairs of %d do not cover %d values", ErrBadInput, pairs, window, len(one))
	}
	return nil
}
