package compute

import (
	"context"
	"fmt"
)

// ThreadsPerMajor scales the block size with the compute capability.
const ThreadsPerMajor = 128

// GPU runs the kernel on a Device.
type GPU struct {
	dev Device
}

// NewGPU wraps dev.
func NewGPU(dev Device) *GPU {
	return &GPU{dev: dev}
}

// Name returns "gpu" followed by the device name.
func (g *GPU) Name() string {
	return "gpu:" + g.dev.Name()
}

// Device returns the wrapped device.
func (g *GPU) Device() Device {
	return g.dev
}

// LaunchConfig returns the grid and block sizes for n elements.
func (g *GPU) LaunchConfig(n int) (grid, block int) {
	major, _ := g.dev.ComputeCapability()
	if major < 1 {
		major = 1
	}
	block = ThreadsPerMajor * major
	if limit := g.dev.MaxThreadsPerBlock(); limit > 0 && block > limit {
		block = limit
	}
	grid = (n + block - 1) / block
	return grid, block
}

// RunPairwiseSquaredDiff launches one kernel over all pairs.
func (g *GPU) RunPairwiseSquaredDiff(ctx context.Context, one, two []float64, pairs, window int) ([]float64, error) {
	if err := checkInput(one, two, pairs, window); err != nil {
		return nil, err
	}
	out := make([]float64, len(one))
	if len(out) == 0 {
		return out, nil
	}
	grid, block := g.LaunchConfig(len(out))
	if err := g.dev.Launch(ctx, out, one, two, grid, block); err != nil {
		return nil, fmt.Errorf("launch %dx%d on %s: %w", grid, block, g.dev.Name(), err)
	}
	return out, nil
}

// Close releases the device.
func (g *GPU) Close() error {
	return g.dev.Close()
}
