package data

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrEmptyDataset indicates a dataset with no records.
	ErrEmptyDataset = errors.New("dataset has no records")

	// ErrDimensionMismatch indicates predictor/outcome/group lengths disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrMissingValue indicates a NaN, Inf, or empty value in a record.
	// Missing values are rejected, never imputed.
	ErrMissingValue = errors.New("missing or non-finite value")
)

// Record is a single applicant/incumbent observation: an ordered vector of
// predictor values, one outcome (binary selection or continuous criterion),
// and one group label.
type Record struct {
	Predictors []float64 `json:"predictors" yaml:"predictors"`
	Outcome    float64   `json:"outcome" yaml:"outcome"`
	Group      string    `json:"group" yaml:"group"`
}

// Dataset is an ordered, non-empty collection of records sharing the same
// predictor dimensionality and group-label universe. It is read-only after
// construction; analyses never mutate it.
type Dataset struct {
	Name           string   `json:"name" yaml:"name"`
	PredictorNames []string `json:"predictor_names" yaml:"predictorNames"`
	OutcomeName    string   `json:"outcome_name" yaml:"outcomeName"`
	GroupName      string   `json:"group_name" yaml:"groupName"`
	Records        []Record `json:"records" yaml:"records"`
}

// NewDataset validates and assembles a dataset. Every record must carry
// exactly len(predictorNames) finite predictor values, a finite outcome, and
// a non-empty group label.
func NewDataset(name string, predictorNames []string, records []Record) (*Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrEmptyDataset)
	}
	if len(predictorNames) == 0 {
		return nil, fmt.Errorf("dataset %q: no predictor columns", name)
	}

	p := len(predictorNames)
	for i, r := range records {
		if len(r.Predictors) != p {
			return nil, fmt.Errorf("record %d has %d predictors, want %d: %w",
				i, len(r.Predictors), p, ErrDimensionMismatch)
		}
		if r.Group == "" {
			return nil, fmt.Errorf("record %d has empty group label: %w", i, ErrMissingValue)
		}
		if !isFinite(r.Outcome) {
			return nil, fmt.Errorf("record %d outcome: %w", i, ErrMissingValue)
		}
		for j, v := range r.Predictors {
			if !isFinite(v) {
				return nil, fmt.Errorf("record %d predictor %d (%s): %w",
					i, j, predictorNames[j], ErrMissingValue)
			}
		}
	}

	return &Dataset{
		Name:           name,
		PredictorNames: predictorNames,
		Records:        records,
	}, nil
}

// FromMatrix assembles a dataset from parallel predictor, outcome, and
// group vectors, failing with ErrDimensionMismatch when their lengths
// disagree. Predictor columns get generated x0..xN names.
func FromMatrix(name string, x [][]float64, y []float64, groups []string) (*Dataset, error) {
	if len(x) != len(y) || len(x) != len(groups) {
		return nil, fmt.Errorf("rows=%d outcomes=%d groups=%d: %w",
			len(x), len(y), len(groups), ErrDimensionMismatch)
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrEmptyDataset)
	}

	names := make([]string, len(x[0]))
	for j := range names {
		names[j] = fmt.Sprintf("x%d", j)
	}

	records := make([]Record, len(x))
	for i := range x {
		records[i] = Record{Predictors: x[i], Outcome: y[i], Group: groups[i]}
	}
	return NewDataset(name, names, records)
}

// P returns the predictor dimensionality.
func (d *Dataset) P() int {
	return len(d.PredictorNames)
}

// N returns the record count.
func (d *Dataset) N() int {
	return len(d.Records)
}

// Groups returns the distinct group labels in deterministic (sorted) order.
func (d *Dataset) Groups() []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, r := range d.Records {
		if !seen[r.Group] {
			seen[r.Group] = true
			out = append(out, r.Group)
		}
	}
	sort.Strings(out)
	return out
}

// GroupSize returns the number of records with the given group label.
func (d *Dataset) GroupSize(group string) int {
	n := 0
	for _, r := range d.Records {
		if r.Group == group {
			n++
		}
	}
	return n
}

// Column returns a copy of predictor column j.
func (d *Dataset) Column(j int) ([]float64, error) {
	if j < 0 || j >= d.P() {
		return nil, fmt.Errorf("predictor index %d out of range [0,%d): %w",
			j, d.P(), ErrDimensionMismatch)
	}
	out := make([]float64, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Predictors[j]
	}
	return out, nil
}

// Outcomes returns a copy of the outcome vector.
func (d *Dataset) Outcomes() []float64 {
	out := make([]float64, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Outcome
	}
	return out
}

// GroupLabels returns a copy of the group-label vector.
func (d *Dataset) GroupLabels() []string {
	out := make([]string, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Group
	}
	return out
}

// BinaryOutcome reports whether every outcome is exactly 0 or 1.
func (d *Dataset) BinaryOutcome() bool {
	for _, r := range d.Records {
		if r.Outcome != 0 && r.Outcome != 1 {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
