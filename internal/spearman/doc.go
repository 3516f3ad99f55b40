// Package spearman turns windows of rows into pairwise Spearman coefficients.
//
// A window is transposed into one column per channel and every column is
// replaced by its ordinal rank vector. The ranked columns of every unordered
// channel pair are flattened into two parallel vectors (a Workload) so that a
// ComputeBackend can evaluate all squared differences in one launch. The
// backend output is then summed per pair and turned into
//
//	|1 - 6*sum / (w*(w^2-1))|
//
// where w is the window size. Ties are ranked by original position; no tie
// correction is applied.
package spearman
