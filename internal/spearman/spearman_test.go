package spearman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/rankflow/internal/domain"
)

func TestTranspose(t *testing.T) {
	rows := []domain.Row{{1, 2, 3}, {4, 5, 6}}
	assert.Equal(t, [][]float64{{1, 4}, {2, 5}, {3, 6}}, Transpose(rows))
	assert.Nil(t, Transpose(nil))
}

func TestRank(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   RankedColumn
	}{
		{"ascending", []float64{1, 2, 3}, RankedColumn{0, 1, 2}},
		{"descending", []float64{3, 2, 1}, RankedColumn{2, 1, 0}},
		{"mixed", []float64{0.5, -1, 7, 2}, RankedColumn{1, 0, 3, 2}},
		{"ties keep order", []float64{5, 1, 5, 1}, RankedColumn{1, 3, 0, 2}},
		{"empty", []float64{}, RankedColumn{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rank(tt.values))
		})
	}
}

func TestRankWindowRagged(t *testing.T) {
	_, err := RankWindow([]domain.Row{{1, 2}, {3}})
	assert.ErrorIs(t, err, domain.ErrChannelMismatch)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestBuildWorkloadOrderAndPadding(t *testing.T) {
	cols := []RankedColumn{{0, 1}, {1, 0}, {0, 1}}
	wl := BuildWorkload(cols, 3)

	assert.Equal(t, 3, wl.Pairs)
	assert.Equal(t, 3, wl.Channels)
	// Pairs (0,1), (0,2), (1,2), each padded to 3.
	assert.Equal(t, []float64{0, 1, 0, 0, 1, 0, 1, 0, 0}, wl.One)
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 1, 0}, wl.Two)
}

func TestBuildWorkloadSingleChannel(t *testing.T) {
	wl := BuildWorkload([]RankedColumn{{0, 1}}, 2)
	assert.Zero(t, wl.Pairs)
	assert.Empty(t, wl.One)
}

func TestCoefficients(t *testing.T) {
	// Sums 8, 2, 6 over a window of 3; denominator 24.
	diffs := []float64{4, 0, 4, 1, 1, 0, 1, 1, 4}
	m, err := Coefficients(diffs, 3, 3)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m[domain.Pair{I: 0, J: 1}], 1e-12)
	assert.InDelta(t, 0.5, m[domain.Pair{I: 0, J: 2}], 1e-12)
	assert.InDelta(t, 0.5, m[domain.Pair{I: 1, J: 2}], 1e-12)
}

func TestCoefficientsErrors(t *testing.T) {
	_, err := Coefficients(make([]float64, 3), 1, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = Coefficients(make([]float64, 5), 3, 3)
	assert.Error(t, err)
}
