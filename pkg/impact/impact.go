// Package impact implements adverse impact analysis for selection decisions:
// group selection rates, four-fifths-rule impact ratios, and significance
// tests, computed over a read-only dataset.
package impact

import (
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/molmatt/iopsy/pkg/data"
)

const (
	// FourFifths is the practical-significance threshold: an impact ratio
	// below 0.8 is treated as evidence of adverse impact.
	FourFifths = 0.8

	// MethodZTest identifies the two-proportion Z-test.
	MethodZTest = "ztest"
	// MethodFisher identifies Fisher's exact test.
	MethodFisher = "fisher"
	// MethodAuto selects between the two based on group sample sizes.
	MethodAuto = "auto"
)

var (
	// ErrEmptyGroup indicates a group with zero records in the dataset.
	ErrEmptyGroup = errors.New("group has no records")

	// ErrDegenerateRate indicates a zero reference selection rate, which
	// makes the impact ratio undefined.
	ErrDegenerateRate = errors.New("reference selection rate is zero")
)

// Rule turns a raw score or outcome into a selected/not-selected decision.
// With a cutscore, any value >= the cutscore passes. With pass values, any
// value in the set passes. The zero Rule treats positive values as selected,
// which matches binary 0/1 outcomes.
type Rule struct {
	Cutscore   *float64  `json:"cutscore,omitempty" yaml:"cutscore,omitempty"`
	PassValues []float64 `json:"pass_values,omitempty" yaml:"passValues,omitempty"`
}

// Cut returns a rule selecting values at or above the given cutscore.
func Cut(score float64) Rule {
	return Rule{Cutscore: &score}
}

// Pass applies the rule to a single value.
func (r Rule) Pass(v float64) bool {
	if r.Cutscore != nil {
		return v >= *r.Cutscore
	}
	if len(r.PassValues) > 0 {
		for _, pv := range r.PassValues {
			if v == pv {
				return true
			}
		}
		return false
	}
	return v > 0
}

// Config holds the tunable parts of the analysis. Regulatory guidance on the
// significance test and referent rule varies, so both are configurable.
type Config struct {
	// Alpha is the statistical significance threshold.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Referent pins the reference group. Empty means elect the group with
	// the highest selection rate.
	Referent string `json:"referent,omitempty" yaml:"referent,omitempty"`

	// MinRef is the smallest group size still eligible for referent
	// election, guarding against statistically unstable small groups.
	MinRef int `json:"min_ref" yaml:"minRef"`

	// TestMethod is one of auto, ztest, fisher.
	TestMethod string `json:"test_method" yaml:"testMethod"`

	// ZSampleMin is the per-group sample size above which the Z-test's
	// normal approximation is considered reliable (auto mode only).
	ZSampleMin int `json:"z_sample_min" yaml:"zSampleMin"`
}

// DefaultConfig returns the defaults: alpha 0.05, referent elected by
// highest rate among groups of at least 5, test chosen by sample size.
func DefaultConfig() Config {
	return Config{
		Alpha:      0.05,
		MinRef:     5,
		TestMethod: MethodAuto,
		ZSampleMin: 30,
	}
}

func (c Config) validateMethod() error {
	switch c.TestMethod {
	case "", MethodAuto, MethodZTest, MethodFisher:
		return nil
	}
	return fmt.Errorf("unknown test method %q", c.TestMethod)
}

// Stat is the immutable result of one (reference, comparison) evaluation.
// PredictorIndex is -1 for outcome-level analyses; per-predictor scans set
// it to the predictor column.
type Stat struct {
	PredictorIndex int     `json:"predictor_index" yaml:"predictorIndex"`
	Reference      string  `json:"reference_group" yaml:"referenceGroup"`
	Comparison     string  `json:"comparison_group" yaml:"comparisonGroup"`
	ReferenceRate  float64 `json:"reference_rate" yaml:"referenceRate"`
	ComparisonRate float64 `json:"comparison_rate" yaml:"comparisonRate"`
	ReferenceN     int     `json:"reference_n" yaml:"referenceN"`
	ComparisonN    int     `json:"comparison_n" yaml:"comparisonN"`
	Ratio          float64 `json:"impact_ratio" yaml:"impactRatio"`
	RatioDefined   bool    `json:"ratio_defined" yaml:"ratioDefined"`
	PValue         float64 `json:"p_value" yaml:"pValue"`
	Method         string  `json:"method" yaml:"method"`
	Flagged        bool    `json:"flagged" yaml:"flagged"`
}

// series pairs a score vector with its group labels. All engine math runs
// over a series; the dataset-facing functions just pick which scores to use.
type series struct {
	values []float64
	labels []string
}

func outcomeSeries(d *data.Dataset) series {
	return series{values: d.Outcomes(), labels: d.GroupLabels()}
}

func columnSeries(d *data.Dataset, j int) (series, error) {
	col, err := d.Column(j)
	if err != nil {
		return series{}, err
	}
	return series{values: col, labels: d.GroupLabels()}, nil
}

func (s series) groups() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, g := range s.labels {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

func (s series) counts(rule Rule, group string) (selected, n int) {
	for i, g := range s.labels {
		if g != group {
			continue
		}
		n++
		if rule.Pass(s.values[i]) {
			selected++
		}
	}
	return selected, n
}

func (s series) rate(rule Rule, group string) (float64, int, error) {
	sel, n := s.counts(rule, group)
	if n == 0 {
		return 0, 0, fmt.Errorf("group %q: %w", group, ErrEmptyGroup)
	}
	return float64(sel) / float64(n), n, nil
}

// SelectionRate returns the fraction of records in group whose outcome
// passes the rule, along with the group size.
func SelectionRate(d *data.Dataset, rule Rule, group string) (float64, int, error) {
	return outcomeSeries(d).rate(rule, group)
}

// ImpactRatio returns comparison rate / reference rate plus both rates.
// A zero reference rate makes the four-fifths rule meaningless, so it is
// reported as ErrDegenerateRate rather than as infinity or zero.
func ImpactRatio(d *data.Dataset, rule Rule, reference, comparison string) (ratio, refRate, cmpRate float64, err error) {
	s := outcomeSeries(d)
	refRate, _, err = s.rate(rule, reference)
	if err != nil {
		return 0, 0, 0, err
	}
	cmpRate, _, err = s.rate(rule, comparison)
	if err != nil {
		return 0, 0, 0, err
	}
	if refRate == 0 {
		return 0, refRate, cmpRate, fmt.Errorf("reference %q vs %q: %w",
			reference, comparison, ErrDegenerateRate)
	}
	return cmpRate / refRate, refRate, cmpRate, nil
}

// TestSignificance returns the two-sided p-value for the difference in
// selection rates between the two groups, and the method used. In auto mode
// the two-proportion Z-test is used only when both groups exceed ZSampleMin;
// the normal approximation is unreliable below that.
func TestSignificance(d *data.Dataset, rule Rule, reference, comparison string, cfg Config) (float64, string, error) {
	return outcomeSeries(d).test(rule, reference, comparison, cfg)
}

func (s series) test(rule Rule, reference, comparison string, cfg Config) (float64, string, error) {
	refSel, refN := s.counts(rule, reference)
	if refN == 0 {
		return 0, "", fmt.Errorf("group %q: %w", reference, ErrEmptyGroup)
	}
	cmpSel, cmpN := s.counts(rule, comparison)
	if cmpN == 0 {
		return 0, "", fmt.Errorf("group %q: %w", comparison, ErrEmptyGroup)
	}

	method := cfg.TestMethod
	if method == "" || method == MethodAuto {
		if refN > cfg.ZSampleMin && cmpN > cfg.ZSampleMin {
			method = MethodZTest
		} else {
			method = MethodFisher
		}
	}

	switch method {
	case MethodZTest:
		return twoProportionZ(cmpSel, cmpN, refSel, refN), MethodZTest, nil
	case MethodFisher:
		return fisherExact(cmpSel, cmpN-cmpSel, refSel, refN-refSel), MethodFisher, nil
	default:
		return 0, "", fmt.Errorf("unknown test method %q", cfg.TestMethod)
	}
}

func (s series) evaluate(rule Rule, reference, comparison string, cfg Config) (*Stat, error) {
	refRate, refN, err := s.rate(rule, reference)
	if err != nil {
		return nil, err
	}
	cmpRate, cmpN, err := s.rate(rule, comparison)
	if err != nil {
		return nil, err
	}

	p, method, err := s.test(rule, reference, comparison, cfg)
	if err != nil {
		return nil, err
	}

	st := &Stat{
		PredictorIndex: -1,
		Reference:      reference,
		Comparison:     comparison,
		ReferenceRate:  refRate,
		ComparisonRate: cmpRate,
		ReferenceN:     refN,
		ComparisonN:    cmpN,
		PValue:         p,
		Method:         method,
	}
	if refRate > 0 {
		st.Ratio = cmpRate / refRate
		st.RatioDefined = true
		st.Flagged = st.Ratio < FourFifths && p < cfg.Alpha
	}
	return st, nil
}

// Evaluate composes rates, ratio, and significance into a single statistic.
// Adverse impact is flagged only when the ratio is below four-fifths AND the
// p-value is below alpha: practical and statistical significance are both
// required. A degenerate (zero-reference) ratio is reported as undefined
// rather than failing the caller.
func Evaluate(d *data.Dataset, rule Rule, reference, comparison string, cfg Config) (*Stat, error) {
	return outcomeSeries(d).evaluate(rule, reference, comparison, cfg)
}

func (s series) referent(rule Rule, cfg Config) (string, error) {
	groups := s.groups()
	if len(groups) == 0 {
		return "", ErrEmptyGroup
	}
	if cfg.Referent != "" {
		if _, n := s.counts(rule, cfg.Referent); n == 0 {
			return "", fmt.Errorf("pinned referent %q: %w", cfg.Referent, ErrEmptyGroup)
		}
		return cfg.Referent, nil
	}

	type candidate struct {
		group string
		rate  float64
		n     int
	}
	all := make([]candidate, 0, len(groups))
	eligible := make([]candidate, 0, len(groups))
	for _, g := range groups {
		rate, n, err := s.rate(rule, g)
		if err != nil {
			return "", err
		}
		c := candidate{group: g, rate: rate, n: n}
		all = append(all, c)
		if n >= cfg.MinRef {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		eligible = all
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].rate != eligible[j].rate {
			return eligible[i].rate > eligible[j].rate
		}
		if eligible[i].n != eligible[j].n {
			return eligible[i].n > eligible[j].n
		}
		return eligible[i].group < eligible[j].group
	})
	return eligible[0].group, nil
}

// DetermineReferent elects the reference group: the highest selection rate
// among groups of at least MinRef records, ties broken by larger group, then
// by label for determinism. Falls back to all groups when none reach MinRef.
// A pinned Config.Referent short-circuits election.
func DetermineReferent(d *data.Dataset, rule Rule, cfg Config) (string, error) {
	return outcomeSeries(d).referent(rule, cfg)
}

func (s series) allPairs(rule Rule, cfg Config, predictorIdx int) (iter.Seq[*Stat], error) {
	if err := cfg.validateMethod(); err != nil {
		return nil, err
	}
	groups := s.groups()
	if len(groups) == 0 {
		return nil, ErrEmptyGroup
	}

	referent, err := s.referent(rule, cfg)
	if err != nil {
		return nil, err
	}

	return func(yield func(*Stat) bool) {
		for _, g := range groups {
			if g == referent {
				continue
			}
			st, err := s.evaluate(rule, referent, g, cfg)
			if err != nil {
				// the method is validated and groups come from the labels
				// themselves, so per-pair evaluation cannot fail; guard anyway
				continue
			}
			st.PredictorIndex = predictorIdx
			if !yield(st) {
				return
			}
		}
	}, nil
}

// AllPairs evaluates every non-referent group against the referent and
// returns the statistics as a lazy, restartable sequence ordered by group
// label. A single-group dataset yields an empty sequence; that is not an
// error, there is simply nothing to compare.
func AllPairs(d *data.Dataset, rule Rule, cfg Config) (iter.Seq[*Stat], error) {
	return outcomeSeries(d).allPairs(rule, cfg, -1)
}

// Report materializes AllPairs into an ordered slice.
func Report(d *data.Dataset, rule Rule, cfg Config) ([]*Stat, error) {
	seq, err := AllPairs(d, rule, cfg)
	if err != nil {
		return nil, err
	}
	return collect(seq), nil
}

// ColumnReport runs the all-pairs evaluation treating predictor column j,
// thresholded by the rule, as the selection decision. This is how the
// selection model gathers per-predictor impact evidence.
func ColumnReport(d *data.Dataset, j int, rule Rule, cfg Config) ([]*Stat, error) {
	s, err := columnSeries(d, j)
	if err != nil {
		return nil, err
	}
	seq, err := s.allPairs(rule, cfg, j)
	if err != nil {
		return nil, err
	}
	return collect(seq), nil
}

func collect(seq iter.Seq[*Stat]) []*Stat {
	out := make([]*Stat, 0)
	for s := range seq {
		out = append(out, s)
	}
	return out
}
