// Package ports defines the interfaces that connect the analytics core to
// infrastructure adapters.
//
// # Port Interfaces
//
//   - [SourceReader]: produces windows of rows from the network or a file
//   - [ComputeBackend]: runs the per-pair squared difference kernel
//   - [ResultSink]: receives every published correlation result
//   - [CheckpointRepository]: persists file-mode progress
//
// The model and pipeline packages depend only on these interfaces.
// internal/source, internal/compute, internal/sink and pkg/state provide the
// implementations.
package ports
