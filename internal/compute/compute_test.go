package compute

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/rankflow/internal/ports"
	"github.com/bft-labs/rankflow/pkg/log"
)

var (
	_ ports.ComputeBackend = (*CPU)(nil)
	_ ports.ComputeBackend = (*GPU)(nil)
	_ Device               = (*EmulatedDevice)(nil)
)

func randomInput(n int, seed int64) ([]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	one, two := make([]float64, n), make([]float64, n)
	for i := range one {
		one[i] = float64(rng.Intn(50))
		two[i] = float64(rng.Intn(50))
	}
	return one, two
}

func TestCPU(t *testing.T) {
	out, err := NewCPU().RunPairwiseSquaredDiff(context.Background(),
		[]float64{0, 1, 2, 0, 1, 2}, []float64{2, 1, 0, 1, 0, 2}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0, 4, 1, 1, 0}, out)
}

func TestCPUInputChecks(t *testing.T) {
	ctx := context.Background()
	_, err := NewCPU().RunPairwiseSquaredDiff(ctx, []float64{1, 2}, []float64{1}, 1, 2)
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = NewCPU().RunPairwiseSquaredDiff(ctx, []float64{1, 2}, []float64{1, 2}, 3, 2)
	assert.ErrorIs(t, err, ErrBadInput)

	out, err := NewCPU().RunPairwiseSquaredDiff(ctx, nil, nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLaunchConfig(t *testing.T) {
	tests := []struct {
		name       string
		maxThreads int
		major      int
		n          int
		wantGrid   int
		wantBlock  int
	}{
		{"capability 3 fits", 1024, 3, 1000, 3, 384},
		{"clamped to device limit", 512, 8, 1000, 2, 512},
		{"exact multiple", 1024, 2, 512, 2, 256},
		{"single element", 1024, 1, 1, 1, 128},
		{"zero major treated as 1", 1024, 0, 300, 3, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGPU(&EmulatedDevice{MaxThreads: tt.maxThreads, Major: tt.major})
			grid, block := g.LaunchConfig(tt.n)
			assert.Equal(t, tt.wantGrid, grid)
			assert.Equal(t, tt.wantBlock, block)
			assert.GreaterOrEqual(t, grid*block, tt.n)
		})
	}
}

func TestEmulatedMatchesCPU(t *testing.T) {
	ctx := context.Background()
	for _, size := range []struct{ pairs, window int }{{1, 2}, {3, 3}, {406, 24}, {4060, 10}} {
		n := size.pairs * size.window
		one, two := randomInput(n, int64(n))

		want, err := NewCPU().RunPairwiseSquaredDiff(ctx, one, two, size.pairs, size.window)
		require.NoError(t, err)

		dev := NewEmulatedDevice()
		got, err := NewGPU(dev).RunPairwiseSquaredDiff(ctx, one, two, size.pairs, size.window)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, int64(1), dev.Launches())
		assert.GreaterOrEqual(t, dev.Threads(), int64(n))
	}
}

func TestEmulatedRejectsBadGrid(t *testing.T) {
	dev := NewEmulatedDevice()
	dst := make([]float64, 10)
	assert.Error(t, dev.Launch(context.Background(), dst, dst, dst, 1, 4))
	assert.Error(t, dev.Launch(context.Background(), dst, dst, dst, 1, 2048))
}

func TestEmulatedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	one, two := randomInput(100, 1)
	_, err := NewGPU(NewEmulatedDevice()).RunPairwiseSquaredDiff(ctx, one, two, 10, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingLogger struct {
	log.NoopLogger
	warnings []string
}

func (r *recordingLogger) Warn(msg string, _ ...log.Field) { r.warnings = append(r.warnings, msg) }

func withOpenDevice(t *testing.T, fn func() (Device, error)) {
	t.Helper()
	prev := openDevice
	openDevice = fn
	t.Cleanup(func() { openDevice = prev })
}

func TestSelectAutoFallsBack(t *testing.T) {
	withOpenDevice(t, func() (Device, error) { return nil, ErrNoDevice })
	logger := &recordingLogger{}

	b, err := Select(PreferAuto, logger)
	require.NoError(t, err)
	assert.Equal(t, "cpu", b.Name())
	assert.Len(t, logger.warnings, 1)
}

func TestSelectAutoUsesDevice(t *testing.T) {
	withOpenDevice(t, func() (Device, error) { return NewEmulatedDevice(), nil })

	b, err := Select(PreferAuto, nil)
	require.NoError(t, err)
	assert.Equal(t, "gpu:emulated", b.Name())
}

func TestSelectForced(t *testing.T) {
	withOpenDevice(t, func() (Device, error) { return nil, errors.New("driver missing") })

	b, err := Select(PreferCPU, nil)
	require.NoError(t, err)
	assert.Equal(t, "cpu", b.Name())

	_, err = Select(PreferGPU, nil)
	assert.Error(t, err)

	b, err = Select(PreferEmulated, nil)
	require.NoError(t, err)
	assert.Equal(t, "gpu:emulated", b.Name())
}

func TestParsePreference(t *testing.T) {
	p, err := ParsePreference("")
	require.NoError(t, err)
	assert.Equal(t, PreferAuto, p)

	p, err = ParsePreference("gpu")
	require.NoError(t, err)
	assert.Equal(t, PreferGPU, p)

	_, err = ParsePreference("tpu")
	assert.Error(t, err)
}
