package spearman

import (
	"fmt"
	"sort"

	"github.com/bft-labs/rankflow/internal/domain"
)

// RankedColumn holds the original indices of a column's values in ascending
// value order. Equal values keep their original order.
type RankedColumn []int

// Transpose turns rows into columns. The column count is taken from the
// first row; shorter rows leave zeros and longer rows are truncated, so
// callers that care check with RankWindow.
func Transpose(rows []domain.Row) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	cols := make([][]float64, len(rows[0]))
	for c := range cols {
		col := make([]float64, len(rows))
		for r, row := range rows {
			if c < len(row) {
				col[r] = row[c]
			}
		}
		cols[c] = col
	}
	return cols
}

// Rank returns the stable ascending argsort of values.
func Rank(values []float64) RankedColumn {
	idx := make(RankedColumn, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] < values[idx[b]]
	})
	return idx
}

// RankWindow transposes rows and ranks every channel. Rows of differing
// length are ErrChannelMismatch.
func RankWindow(rows []domain.Row) ([]RankedColumn, error) {
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("%w: row %d has %d values, row 0 has %d",
				domain.ErrChannelMismatch, i, len(row), len(rows[0]))
		}
	}
	cols := Transpose(rows)
	ranked := make([]RankedColumn, len(cols))
	for i, col := range cols {
		ranked[i] = Rank(col)
	}
	return ranked, nil
}
