package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Pair is an unordered channel pair with I < J, 0-indexed.
type Pair struct {
	I int
	J int
}

// String returns "(i,j)".
func (p Pair) String() string {
	return fmt.Sprintf("(%d,%d)", p.I, p.J)
}

// PairCount returns the number of unordered pairs among n channels.
func PairCount(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// Pairs enumerates every pair among n channels in canonical order:
// (0,1),(0,2),...,(0,n-1),(1,2),...
func Pairs(n int) []Pair {
	out := make([]Pair, 0, PairCount(n))
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, Pair{I: i, J: j})
		}
	}
	return out
}

// Matrix maps each channel pair to its coefficient.
type Matrix map[Pair]float64

// Sorted returns the entries in canonical pair order.
func (m Matrix) Sorted() []MatrixEntry {
	entries := make([]MatrixEntry, 0, len(m))
	for p, v := range m {
		entries = append(entries, MatrixEntry{Pair: p, Value: v})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Pair.I != entries[b].Pair.I {
			return entries[a].Pair.I < entries[b].Pair.I
		}
		return entries[a].Pair.J < entries[b].Pair.J
	})
	return entries
}

// MatrixEntry is one pair with its coefficient.
type MatrixEntry struct {
	Pair  Pair
	Value float64
}

// MarshalJSON encodes the entry as [[i,j],value].
func (e MatrixEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{[2]int{e.Pair.I, e.Pair.J}, e.Value})
}

// MarshalJSON encodes the matrix as a list of [[i,j],value] in canonical order.
func (m Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Sorted())
}
