package compute

import (
	"context"
	"errors"
)

var (
	// ErrNoDevice is returned when no GPU is available.
	ErrNoDevice = errors.New("compute: no GPU device")

	// ErrBadInput is returned when the input vectors do not match the pair layout.
	ErrBadInput = errors.New("compute: input does not match pair layout")
)

// Device is a GPU able to run the subtract_and_square kernel.
type Device interface {
	// Name identifies the device in logs.
	Name() string

	// MaxThreadsPerBlock is the device limit for one block.
	MaxThreadsPerBlock() int

	// ComputeCapability returns the major and minor version.
	ComputeCapability() (major, minor int)

	// Launch runs the kernel over grid blocks of block threads each.
	// Thread t of block b handles index b*block+t when it is below len(dst).
	Launch(ctx context.Context, dst, one, two []float64, grid, block int) error

	// Close releases the device context.
	Close() error
}

// subtractAndSquare is the per-thread kernel body.
func subtractAndSquare(dst, one, two []float64, blockIdx, blockDim, threadIdx int) {
	i := blockIdx*blockDim + threadIdx
	if i < len(dst) {
		d := one[i] - two[i]
		dst[i] = d * d
	}
}
