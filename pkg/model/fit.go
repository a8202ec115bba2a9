// Package model fits fairness-weighted selection models: penalized
// regressions where each predictor's regularization strength grows with the
// adverse impact evidence that predictor carries, so problematic predictors
// are attenuated smoothly instead of excluded outright.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/molmatt/iopsy/pkg/data"
	"github.com/molmatt/iopsy/pkg/impact"
)

const (
	// FamilyAuto picks logistic when every outcome is exactly 0 or 1.
	FamilyAuto = "auto"
	// FamilyLinear forces penalized least squares.
	FamilyLinear = "linear"
	// FamilyLogistic forces penalized logistic regression.
	FamilyLogistic = "logistic"
)

// ErrRankDeficient indicates a column-rank-deficient predictor matrix with
// no penalty to regularize it (BaseL2 == 0).
var ErrRankDeficient = errors.New("predictor matrix is rank deficient and base penalty is zero")

// NonConvergenceError reports a fit that exhausted MaxIterations without
// meeting tolerance. The last iterate is carried so callers can retry with a
// relaxed tolerance or more iterations; an unconverged fit is never returned
// as a final answer.
type NonConvergenceError struct {
	Iterations   int
	GradientNorm float64
	Coefficients []float64
	Intercept    float64
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("solver did not converge after %d iterations (gradient norm %.6g)",
		e.Iterations, e.GradientNorm)
}

// Config holds everything a fit depends on besides the dataset itself.
// Fits are pure functions of (dataset, config); nothing is shared between
// calls, so fits are reproducible and safe to run in parallel.
type Config struct {
	// FairnessLambda scales how strongly adverse impact evidence inflates
	// a predictor's penalty. Zero reduces the model to plain ridge.
	FairnessLambda float64 `json:"fairness_lambda" yaml:"fairnessLambda"`

	// BaseL2 is the baseline ridge penalty applied to every predictor.
	BaseL2 float64 `json:"base_l2" yaml:"baseL2"`

	// SelectionThreshold binarizes each predictor column into a
	// would-select indicator for impact evaluation.
	SelectionThreshold float64 `json:"selection_threshold" yaml:"selectionThreshold"`

	// Family is auto, linear, or logistic.
	Family string `json:"family" yaml:"family"`

	MaxIterations int     `json:"max_iterations" yaml:"maxIterations"`
	Tolerance     float64 `json:"tolerance" yaml:"tolerance"`

	// Impact configures the adverse impact engine (alpha, referent rule,
	// test method) for the per-predictor scans.
	Impact impact.Config `json:"impact" yaml:"impact"`
}

// DefaultConfig returns workable fit defaults.
func DefaultConfig() Config {
	return Config{
		FairnessLambda: 1,
		BaseL2:         0.1,
		Family:         FamilyAuto,
		MaxIterations:  10000,
		Tolerance:      1e-6,
		Impact:         impact.DefaultConfig(),
	}
}

// Fitted is the immutable result of a fit: coefficients, the penalty vector
// that produced them, convergence diagnostics, and the impact report for
// audit. A new fit produces a new instance.
type Fitted struct {
	Coefficients []float64      `json:"coefficients" yaml:"coefficients"`
	Intercept    float64        `json:"intercept" yaml:"intercept"`
	Penalties    []float64      `json:"penalty_vector" yaml:"penaltyVector"`
	Multipliers  []float64      `json:"multipliers" yaml:"multipliers"`
	Family       string         `json:"family" yaml:"family"`
	Iterations   int            `json:"iterations" yaml:"iterations"`
	GradientNorm float64        `json:"gradient_norm" yaml:"gradientNorm"`
	Converged    bool           `json:"converged" yaml:"converged"`
	Report       []*impact.Stat `json:"impact_report" yaml:"impactReport"`
}

// Fit builds the penalty vector from per-predictor adverse impact evidence
// and solves the penalized regression. The dataset is only read.
func Fit(d *data.Dataset, cfg Config) (*Fitted, error) {
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.FairnessLambda < 0 || cfg.BaseL2 < 0 {
		return nil, fmt.Errorf("penalties must be non-negative (lambda=%v, base_l2=%v)",
			cfg.FairnessLambda, cfg.BaseL2)
	}

	family := cfg.Family
	if family == "" || family == FamilyAuto {
		family = FamilyLinear
		if d.BinaryOutcome() {
			family = FamilyLogistic
		}
	}
	if family != FamilyLinear && family != FamilyLogistic {
		return nil, fmt.Errorf("unknown model family %q", cfg.Family)
	}

	pen, err := BuildPenalties(d, cfg)
	if err != nil {
		return nil, fmt.Errorf("building penalty vector: %w", err)
	}

	x := make([][]float64, d.N())
	for i, rec := range d.Records {
		x[i] = rec.Predictors
	}
	y := d.Outcomes()

	if cfg.BaseL2 == 0 && !fullRank(x) {
		return nil, fmt.Errorf("%d predictors over %d records: %w", d.P(), d.N(), ErrRankDeficient)
	}

	var s solution
	switch family {
	case FamilyLinear:
		s = solveRidge(x, y, pen.Weights, cfg.MaxIterations, cfg.Tolerance)
	case FamilyLogistic:
		s = solveLogistic(x, y, pen.Weights, cfg.MaxIterations, cfg.Tolerance)
	}

	if !s.converged {
		return nil, &NonConvergenceError{
			Iterations:   s.iters,
			GradientNorm: s.gradNorm,
			Coefficients: s.coef,
			Intercept:    s.intercept,
		}
	}

	return &Fitted{
		Coefficients: s.coef,
		Intercept:    s.intercept,
		Penalties:    pen.Weights,
		Multipliers:  pen.Multipliers,
		Family:       family,
		Iterations:   s.iters,
		GradientNorm: s.gradNorm,
		Converged:    true,
		Report:       pen.Report,
	}, nil
}

// Predict returns model outputs for the given rows: linear scores for the
// linear family, probabilities for the logistic family.
func (m *Fitted) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(m.Coefficients) {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w",
				i, len(row), len(m.Coefficients), data.ErrDimensionMismatch)
		}
		z := m.Intercept
		for j, v := range row {
			z += m.Coefficients[j] * v
		}
		if m.Family == FamilyLogistic {
			z = sigmoid(z)
		}
		out[i] = z
	}
	return out, nil
}

// Metrics summarizes predictive quality on a scoring dataset.
type Metrics struct {
	RMSE float64 `json:"rmse" yaml:"rmse"`
	MAE  float64 `json:"mae" yaml:"mae"`
	R    float64 `json:"r" yaml:"r"`
}

// Score evaluates the fitted model against a dataset's outcomes.
func (m *Fitted) Score(d *data.Dataset) (*Metrics, error) {
	if d.P() != len(m.Coefficients) {
		return nil, fmt.Errorf("dataset has %d predictors, model has %d: %w",
			d.P(), len(m.Coefficients), data.ErrDimensionMismatch)
	}

	rows := make([][]float64, d.N())
	for i, rec := range d.Records {
		rows[i] = rec.Predictors
	}
	yhat, err := m.Predict(rows)
	if err != nil {
		return nil, err
	}
	y := d.Outcomes()

	var sq, abs float64
	for i := range y {
		r := y[i] - yhat[i]
		sq += r * r
		abs += math.Abs(r)
	}
	n := float64(len(y))

	return &Metrics{
		RMSE: math.Sqrt(sq / n),
		MAE:  abs / n,
		R:    pearson(y, yhat),
	}, nil
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	if n == 0 {
		return 0
	}
	ma, mb := mean(a), mean(b)
	var cov, va, vb float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}
