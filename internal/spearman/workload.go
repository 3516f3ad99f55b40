package spearman

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/bft-labs/rankflow/internal/domain"
)

// Workload is the flattened input of one backend launch.
// One and Two both have Pairs*Window entries.
type Workload struct {
	One      []float64
	Two      []float64
	Pairs    int
	Window   int
	Channels int
}

// BuildWorkload lays out every pair (i<j) in canonical order. Columns shorter
// than window are padded with zeros.
func BuildWorkload(columns []RankedColumn, window int) Workload {
	n := len(columns)
	pairs := domain.PairCount(n)
	wl := Workload{
		One:      make([]float64, pairs*window),
		Two:      make([]float64, pairs*window),
		Pairs:    pairs,
		Window:   window,
		Channels: n,
	}

	off := 0
	for _, p := range domain.Pairs(n) {
		fill(wl.One[off:off+window], columns[p.I])
		fill(wl.Two[off:off+window], columns[p.J])
		off += window
	}
	return wl
}

// fill copies col into dst; the remainder of dst stays zero.
func fill(dst []float64, col RankedColumn) {
	for k := 0; k < len(dst) && k < len(col); k++ {
		dst[k] = float64(col[k])
	}
}

// Coefficients sums diffs in window-sized groups and converts each sum into
// a coefficient, keyed by pair in canonical order.
func Coefficients(diffs []float64, window, channels int) (domain.Matrix, error) {
	if window < 2 {
		return nil, domain.ErrInvalidWindow
	}
	pairs := domain.Pairs(channels)
	if len(diffs) != len(pairs)*window {
		return nil, fmt.Errorf("spearman: got %d differences, want %d", len(diffs), len(pairs)*window)
	}

	w := float64(window)
	denominator := w * (w*w - 1)
	m := make(domain.Matrix, len(pairs))
	for k, p := range pairs {
		sum := floats.Sum(diffs[k*window : (k+1)*window])
		m[p] = abs(1 - 6*sum/denominator)
	}
	return m, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
