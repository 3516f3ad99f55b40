package compute

import (
	"context"
	"fmt"
	"sync/atomic"
)

// EmulatedDevice executes the kernel in software, one call per
// (block, thread). It records launches for inspection in tests.
type EmulatedDevice struct {
	MaxThreads int
	Major      int
	Minor      int

	launches atomic.Int64
	threads  atomic.Int64
}

// NewEmulatedDevice returns a device that looks like a capability 3.5 card
// with 1024 threads per block.
func NewEmulatedDevice() *EmulatedDevice {
	return &EmulatedDevice{MaxThreads: 1024, Major: 3, Minor: 5}
}

func (d *EmulatedDevice) Name() string { return "emulated" }

func (d *EmulatedDevice) MaxThreadsPerBlock() int { return d.MaxThreads }

func (d *EmulatedDevice) ComputeCapability() (int, int) { return d.Major, d.Minor }

// Launch runs every thread of every block. Blocks are checked for
// cancellation between each other.
func (d *EmulatedDevice) Launch(ctx context.Context, dst, one, two []float64, grid, block int) error {
	if block <= 0 || block > d.MaxThreads {
		return fmt.Errorf("block size %d outside 1..%d", block, d.MaxThreads)
	}
	if grid*block < len(dst) {
		return fmt.Errorf("grid %dx%d does not cover %d elements", grid, block, len(dst))
	}
	d.launches.Add(1)
	for b := 0; b < grid; b++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for t := 0; t < block; t++ {
			subtractAndSquare(dst, one, two, b, block, t)
		}
		d.threads.Add(int64(block))
	}
	return nil
}

// Launches returns the number of kernel launches so far.
func (d *EmulatedDevice) Launches() int64 { return d.launches.Load() }

// Threads returns the number of threads run so far.
func (d *EmulatedDevice) Threads() int64 { return d.threads.Load() }

func (d *EmulatedDevice) Close() error { return nil }
