package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveRidge_ClosedForm(t *testing.T) {
	// centered single predictor: beta = sum(x*y) / (sum(x^2) + lambda)
	x := [][]float64{{-2}, {-1}, {0}, {1}, {2}}
	y := []float64{1, 2, 3, 4, 5}

	s := solveRidge(x, y, []float64{0}, 10000, 1e-10)
	require.True(t, s.converged)
	assert.InDelta(t, 1.0, s.coef[0], 1e-8) // 10/10
	assert.InDelta(t, 3.0, s.intercept, 1e-8)

	s = solveRidge(x, y, []float64{10}, 10000, 1e-10)
	require.True(t, s.converged)
	assert.InDelta(t, 0.5, s.coef[0], 1e-8) // 10/(10+10)
	assert.InDelta(t, 3.0, s.intercept, 1e-8)
}

func TestSolveRidge_PenaltyShrinks(t *testing.T) {
	x := [][]float64{{-2}, {-1}, {0}, {1}, {2}}
	y := []float64{1, 2, 3, 4, 5}

	loose := solveRidge(x, y, []float64{0.1}, 10000, 1e-10)
	tight := solveRidge(x, y, []float64{5}, 10000, 1e-10)
	require.True(t, loose.converged)
	require.True(t, tight.converged)
	assert.Less(t, tight.coef[0], loose.coef[0])
	assert.Greater(t, tight.coef[0], 0.0)
}

func TestSolveRidge_Deterministic(t *testing.T) {
	x := [][]float64{{1.3, -0.2}, {0.7, 1.1}, {-1.9, 0.4}, {0.2, -2.2}}
	y := []float64{0.5, 1.7, -2.1, 0.9}
	pen := []float64{0.3, 0.7}

	a := solveRidge(x, y, pen, 10000, 1e-9)
	b := solveRidge(x, y, pen, 10000, 1e-9)
	require.True(t, a.converged)
	assert.Equal(t, a.coef, b.coef)
	assert.Equal(t, a.intercept, b.intercept)
	assert.Equal(t, a.iters, b.iters)
}

func TestSolveRidge_ZeroColumn(t *testing.T) {
	// all-zero column with zero penalty stays at zero instead of dividing by 0
	x := [][]float64{{1, 0}, {2, 0}, {3, 0}}
	y := []float64{1, 2, 3}

	s := solveRidge(x, y, []float64{0, 0}, 10000, 1e-10)
	require.True(t, s.converged)
	assert.Equal(t, 0.0, s.coef[1])
}

func TestSolveLogistic(t *testing.T) {
	x := [][]float64{{-1}, {-1}, {-1}, {-1}, {1}, {1}, {1}, {1}}
	y := []float64{0, 0, 0, 1, 1, 1, 1, 0}

	s := solveLogistic(x, y, []float64{0.5}, 20000, 1e-6)
	require.True(t, s.converged)
	assert.Greater(t, s.coef[0], 0.0)
	// balanced labels keep the intercept near zero
	assert.InDelta(t, 0, s.intercept, 0.1)
}

func TestSolveLogistic_Deterministic(t *testing.T) {
	x := [][]float64{{-1}, {-1}, {-1}, {-1}, {1}, {1}, {1}, {1}}
	y := []float64{0, 0, 0, 1, 1, 1, 1, 0}

	a := solveLogistic(x, y, []float64{0.5}, 20000, 1e-6)
	b := solveLogistic(x, y, []float64{0.5}, 20000, 1e-6)
	assert.Equal(t, a.coef, b.coef)
	assert.Equal(t, a.intercept, b.intercept)
}

func TestSolveLogistic_PenaltyShrinks(t *testing.T) {
	x := [][]float64{{-1}, {-1}, {-1}, {-1}, {1}, {1}, {1}, {1}}
	y := []float64{0, 0, 0, 1, 1, 1, 1, 0}

	loose := solveLogistic(x, y, []float64{0.1}, 50000, 1e-6)
	tight := solveLogistic(x, y, []float64{2}, 50000, 1e-6)
	require.True(t, loose.converged)
	require.True(t, tight.converged)
	assert.Less(t, tight.coef[0], loose.coef[0])
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 1e-12)
	assert.InDelta(t, 1, sigmoid(40), 1e-9)
	assert.InDelta(t, 0, sigmoid(-40), 1e-9)
}

func BenchmarkSolveRidge(b *testing.B) {
	n, p := 200, 10
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = float64((i*31+j*17)%13) - 6
		}
		x[i] = row
		y[i] = row[0] - 0.5*row[1] + float64(i%7)
	}
	pen := make([]float64, p)
	for j := range pen {
		pen[j] = 0.5
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		solveRidge(x, y, pen, 10000, 1e-6)
	}
}

func TestFullRank(t *testing.T) {
	// independent columns
	assert.True(t, fullRank([][]float64{{1, 0}, {0, 1}, {1, 1}, {2, -1}}))

	// duplicate columns
	assert.False(t, fullRank([][]float64{{1, 1}, {2, 2}, {3, 3}}))

	// constant column collides with the implicit intercept
	assert.False(t, fullRank([][]float64{{1, 5}, {2, 5}, {3, 5}}))

	// more columns than rows
	assert.False(t, fullRank([][]float64{{1, 2}}))

	assert.False(t, fullRank(nil))
}
