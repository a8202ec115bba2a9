package model

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/molmatt/iopsy/pkg/data"
	"github.com/molmatt/iopsy/pkg/impact"
)

// Multiplier maps the worst impact ratio observed for a predictor to its
// penalty multiplier: 1 + lambda * max(0, 0.8 - worst) / 0.8. A ratio at or
// above four-fifths leaves the baseline penalty untouched; a ratio of zero
// (complete exclusion of a group) yields the maximal 1 + lambda. The ramp is
// continuous in the ratio, so there is no jump at the legal threshold.
func Multiplier(worstRatio, lambda float64) float64 {
	return 1 + lambda*math.Max(0, impact.FourFifths-worstRatio)/impact.FourFifths
}

// Penalties is the per-predictor regularization derived from adverse impact
// evidence: one multiplier and one weight per predictor column, plus the
// full impact report that produced them.
type Penalties struct {
	Weights     []float64      `json:"weights" yaml:"weights"`
	Multipliers []float64      `json:"multipliers" yaml:"multipliers"`
	Report      []*impact.Stat `json:"report" yaml:"report"`
}

// BuildPenalties scans every predictor column for adverse impact evidence
// and derives the penalty vector. Each column is binarized with the
// configured selection threshold and evaluated across all group pairs; the
// worst (smallest) defined ratio drives the multiplier. Columns where no
// ratio is defined (nobody selected under the threshold) carry no evidence
// and keep the baseline penalty.
//
// Per-column scans are independent and run concurrently; results are indexed
// by column, so the output is deterministic.
func BuildPenalties(d *data.Dataset, cfg Config) (*Penalties, error) {
	p := d.P()
	rule := impact.Cut(cfg.SelectionThreshold)

	reports := make([][]*impact.Stat, p)
	var g errgroup.Group
	for j := 0; j < p; j++ {
		g.Go(func() error {
			stats, err := impact.ColumnReport(d, j, rule, cfg.Impact)
			if err != nil {
				return fmt.Errorf("predictor %d (%s): %w", j, d.PredictorNames[j], err)
			}
			reports[j] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Penalties{
		Weights:     make([]float64, p),
		Multipliers: make([]float64, p),
		Report:      make([]*impact.Stat, 0, p),
	}
	for j := 0; j < p; j++ {
		worst := math.Inf(1)
		for _, st := range reports[j] {
			if st.RatioDefined && st.Ratio < worst {
				worst = st.Ratio
			}
		}
		m := 1.0
		if !math.IsInf(worst, 1) {
			m = Multiplier(worst, cfg.FairnessLambda)
		}
		out.Multipliers[j] = m
		out.Weights[j] = cfg.BaseL2 * m
		out.Report = append(out.Report, reports[j]...)
	}

	// report ordered by predictor, then comparison group
	sort.SliceStable(out.Report, func(i, j int) bool {
		if out.Report[i].PredictorIndex != out.Report[j].PredictorIndex {
			return out.Report[i].PredictorIndex < out.Report[j].PredictorIndex
		}
		return out.Report[i].Comparison < out.Report[j].Comparison
	})

	return out, nil
}
