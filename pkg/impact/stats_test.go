package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTwoProportionZ(t *testing.T) {
	// 24/60 vs 8/40: z = 2.1004, two-sided p = 0.0357
	p := twoProportionZ(8, 40, 24, 60)
	assert.InDelta(t, 0.0357, p, 0.0005)

	// symmetric in the two proportions
	assert.InDelta(t, twoProportionZ(24, 60, 8, 40), p, 1e-15)

	// equal rates: no evidence
	assert.InDelta(t, 1.0, twoProportionZ(20, 50, 20, 50), 1e-12)
}

func TestTwoProportionZ_Degenerate(t *testing.T) {
	assert.Equal(t, 1.0, twoProportionZ(0, 10, 0, 10))
	assert.Equal(t, 1.0, twoProportionZ(10, 10, 10, 10))
	assert.Equal(t, 1.0, twoProportionZ(0, 0, 5, 10))
}

func TestFisherExact(t *testing.T) {
	// classic tea-tasting table: p = 0.4857
	p := fisherExact(3, 1, 1, 3)
	assert.InDelta(t, 0.4857, p, 0.001)

	// swapping the rows must not change the two-sided p-value
	assert.InDelta(t, fisherExact(1, 3, 3, 1), p, 1e-12)

	// identical rows carry no evidence
	assert.InDelta(t, 1.0, fisherExact(5, 5, 5, 5), 1e-9)
}

func TestFisherExact_Bounds(t *testing.T) {
	tables := [][4]int{
		{0, 0, 0, 0},
		{1, 0, 0, 1},
		{10, 0, 0, 10},
		{8, 32, 24, 36},
		{100, 1, 1, 100},
	}
	for _, tb := range tables {
		p := fisherExact(tb[0], tb[1], tb[2], tb[3])
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestFisherExact_ExtremeTable(t *testing.T) {
	// strongly lopsided table must be highly significant
	p := fisherExact(0, 20, 18, 2)
	assert.Less(t, p, 1e-6)
}

func TestNormalSF(t *testing.T) {
	assert.InDelta(t, 0.5, normalSF(0), 1e-12)
	assert.InDelta(t, 0.0228, normalSF(2), 0.0005)
	assert.InDelta(t, 0.1587, normalSF(1), 0.0005)
}

func TestLogChoose(t *testing.T) {
	assert.InDelta(t, 0, logChoose(5, 0), 1e-9)
	assert.InDelta(t, 2.302585, logChoose(10, 1), 1e-6) // ln 10
	assert.True(t, logChoose(5, 6) < 0)                 // -Inf outside support
}
