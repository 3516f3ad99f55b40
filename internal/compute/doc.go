// Package compute provides the ComputeBackend implementations.
//
// CPU evaluates the kernel in-process with gonum. GPU partitions the work
// over a 1-D grid on a Device: a CUDA device when built with the cuda tag
// and cgo, or EmulatedDevice, which runs the same per-thread kernel in
// software. Select probes the hardware once at startup.
package compute
