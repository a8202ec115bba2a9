package impact

import "math"

// twoProportionZ returns the two-sided p-value of the pooled two-proportion
// Z-test for x1/n1 vs x2/n2. When the pooled rate is 0 or 1 there is no
// variance to test against and the p-value is 1.
func twoProportionZ(x1, n1, x2, n2 int) float64 {
	if n1 == 0 || n2 == 0 {
		return 1
	}

	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	pooled := float64(x1+x2) / float64(n1+n2)
	if pooled == 0 || pooled == 1 {
		return 1
	}

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	z := (p1 - p2) / se
	return 2 * normalSF(math.Abs(z))
}

// normalSF is the standard normal survival function P(Z > z).
func normalSF(z float64) float64 {
	return 0.5 * math.Erfc(z/math.Sqrt2)
}

// fisherExact returns the two-sided p-value of Fisher's exact test on the
// 2x2 contingency table
//
//	a b   (comparison: selected, rejected)
//	c d   (reference:  selected, rejected)
//
// using the standard sum-of-smaller-probabilities definition: the sum over
// all tables with the same margins whose hypergeometric probability does not
// exceed that of the observed table.
func fisherExact(a, b, c, d int) float64 {
	row1 := a + b
	col1 := a + c
	n := a + b + c + d
	if n == 0 {
		return 1
	}

	// support of a given fixed margins
	lo := max(0, row1+col1-n)
	hi := min(row1, col1)

	obs := hypergeomLogP(a, row1, col1, n)

	// small slack absorbs floating-point noise when comparing probabilities
	const eps = 1e-7
	cutoff := obs + math.Log(1+eps)

	p := 0.0
	for k := lo; k <= hi; k++ {
		lp := hypergeomLogP(k, row1, col1, n)
		if lp <= cutoff {
			p += math.Exp(lp)
		}
	}
	if p > 1 {
		p = 1
	}
	return p
}

// hypergeomLogP is the log probability of drawing k successes in row1 draws
// from a population of n with col1 successes.
func hypergeomLogP(k, row1, col1, n int) float64 {
	return logChoose(col1, k) + logChoose(n-col1, row1-k) - logChoose(n, row1)
}

func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	lnf, _ := math.Lgamma(float64(n + 1))
	lkf, _ := math.Lgamma(float64(k + 1))
	lnkf, _ := math.Lgamma(float64(n - k + 1))
	return lnf - lkf - lnkf
}
