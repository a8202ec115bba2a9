package model

import "math"

// solution is the raw solver output before it is wrapped in a Fitted model.
type solution struct {
	coef      []float64
	intercept float64
	iters     int
	gradNorm  float64
	converged bool
}

// solveRidge minimizes sum (y - b - X beta)^2 + sum penalties_j beta_j^2 by
// cyclic coordinate descent with an unpenalized intercept. Each coordinate
// update is the exact single-variable minimizer, so the objective never
// increases. Iterations are sequential; iteration k+1 depends on k.
func solveRidge(x [][]float64, y, penalties []float64, maxIter int, tol float64) solution {
	n := len(x)
	p := len(penalties)

	sumsq := make([]float64, p)
	for _, row := range x {
		for j, v := range row {
			sumsq[j] += v * v
		}
	}

	coef := make([]float64, p)
	intercept := 0.0

	// residuals r_i = y_i - intercept - x_i . coef
	r := make([]float64, n)
	copy(r, y)

	var s solution
	for it := 1; it <= maxIter; it++ {
		// intercept: unpenalized, minimizer is the mean residual offset
		shift := mean(r)
		intercept += shift
		for i := range r {
			r[i] -= shift
		}

		for j := 0; j < p; j++ {
			denom := sumsq[j] + penalties[j]
			if denom == 0 {
				// all-zero column with zero penalty; leave at zero
				continue
			}
			num := coef[j] * sumsq[j]
			for i, row := range x {
				num += row[j] * r[i]
			}
			next := num / denom
			if delta := next - coef[j]; delta != 0 {
				for i, row := range x {
					r[i] -= delta * row[j]
				}
				coef[j] = next
			}
		}

		s.iters = it
		s.gradNorm = ridgeGradNorm(x, r, coef, penalties)
		if s.gradNorm < tol {
			s.converged = true
			break
		}
	}

	s.coef = coef
	s.intercept = intercept
	return s
}

func ridgeGradNorm(x [][]float64, r, coef, penalties []float64) float64 {
	sum := 0.0
	gb := 0.0
	for _, ri := range r {
		gb += ri
	}
	gb *= -2
	sum += gb * gb

	for j := range coef {
		g := 2 * penalties[j] * coef[j]
		dot := 0.0
		for i, row := range x {
			dot += row[j] * r[i]
		}
		g -= 2 * dot
		sum += g * g
	}
	return math.Sqrt(sum)
}

// solveLogistic minimizes the penalized negative log-likelihood
// sum -(y log p + (1-y) log(1-p)) + sum penalties_j beta_j^2 by gradient
// descent with a fixed step bounded by the loss Lipschitz constant, which
// keeps every step a descent step and the result deterministic.
func solveLogistic(x [][]float64, y, penalties []float64, maxIter int, tol float64) solution {
	n := len(x)
	p := len(penalties)

	// Lipschitz bound for the logistic gradient: 0.25 * lambda_max(A^T A)
	// with A = [1 | X], bounded by the trace, plus the penalty curvature.
	sumsq := float64(n)
	for _, row := range x {
		for _, v := range row {
			sumsq += v * v
		}
	}
	maxPen := 0.0
	for _, w := range penalties {
		if w > maxPen {
			maxPen = w
		}
	}
	step := 1 / (0.25*sumsq + 2*maxPen)

	coef := make([]float64, p)
	intercept := 0.0
	grad := make([]float64, p)

	var s solution
	for it := 1; it <= maxIter; it++ {
		for j := range grad {
			grad[j] = 2 * penalties[j] * coef[j]
		}
		gb := 0.0
		for i, row := range x {
			z := intercept
			for j, v := range row {
				z += coef[j] * v
			}
			d := sigmoid(z) - y[i]
			gb += d
			for j, v := range row {
				grad[j] += d * v
			}
		}

		sum := gb * gb
		for _, g := range grad {
			sum += g * g
		}
		s.iters = it
		s.gradNorm = math.Sqrt(sum)
		if s.gradNorm < tol {
			s.converged = true
			break
		}

		intercept -= step * gb
		for j := range coef {
			coef[j] -= step * grad[j]
		}
	}

	s.coef = coef
	s.intercept = intercept
	return s
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// fullRank checks column rank of the design matrix [1 | X] via Gaussian
// elimination on its Gram matrix. Only called when the penalty vector is all
// zero; any positive ridge penalty regularizes a singular system on its own.
func fullRank(x [][]float64) bool {
	n := len(x)
	if n == 0 {
		return false
	}
	p := len(x[0]) + 1

	// Gram matrix of [1 | X]
	g := make([][]float64, p)
	for a := 0; a < p; a++ {
		g[a] = make([]float64, p)
	}
	for _, row := range x {
		g[0][0]++
		for a := 0; a < p-1; a++ {
			g[0][a+1] += row[a]
			for b := a; b < p-1; b++ {
				g[a+1][b+1] += row[a] * row[b]
			}
		}
	}
	for a := 0; a < p; a++ {
		for b := 0; b < a; b++ {
			g[a][b] = g[b][a]
		}
	}

	scale := 0.0
	for a := 0; a < p; a++ {
		if d := math.Abs(g[a][a]); d > scale {
			scale = d
		}
	}
	if scale == 0 {
		return false
	}
	eps := 1e-10 * scale

	// elimination with partial pivoting
	for col := 0; col < p; col++ {
		pivot := col
		for rIdx := col + 1; rIdx < p; rIdx++ {
			if math.Abs(g[rIdx][col]) > math.Abs(g[pivot][col]) {
				pivot = rIdx
			}
		}
		if math.Abs(g[pivot][col]) < eps {
			return false
		}
		g[col], g[pivot] = g[pivot], g[col]
		for rIdx := col + 1; rIdx < p; rIdx++ {
			f := g[rIdx][col] / g[col][col]
			for c := col; c < p; c++ {
				g[rIdx][c] -= f * g[col][c]
			}
		}
	}
	return true
}
