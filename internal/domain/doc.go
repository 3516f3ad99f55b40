// Package domain contains the core entities of rankflow.
//
// This package is the innermost layer. It has no dependencies on transport,
// file system or logging and holds only data and the invariants on it.
//
// # Entities
//
//   - [Frame]: one decoded NMC data frame (29 channels x 24 samples)
//   - [Row]: one simultaneous sample across all channels
//   - [Window]: the rows consumed by one correlation step
//   - [Pair] and [Matrix]: channel pairs and their Spearman coefficients
//   - [Result]: what one step publishes to the presentation layer
package domain
