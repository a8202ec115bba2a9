package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molmatt/iopsy/pkg/data"
)

// binaryDataset builds an outcome-only dataset from per-group
// (selected, total) counts. A constant predictor keeps the shape valid.
func binaryDataset(t *testing.T, groups map[string][2]int) *data.Dataset {
	t.Helper()
	recs := make([]data.Record, 0)
	for g, c := range groups {
		sel, n := c[0], c[1]
		for i := 0; i < n; i++ {
			out := 0.0
			if i < sel {
				out = 1.0
			}
			recs = append(recs, data.Record{Predictors: []float64{1}, Outcome: out, Group: g})
		}
	}
	d, err := data.NewDataset("t", []string{"x"}, recs)
	require.NoError(t, err)
	return d
}

func TestSelectionRate(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {24, 60}, "B": {8, 40}})

	rate, n, err := SelectionRate(d, Rule{}, "A")
	require.NoError(t, err)
	assert.InDelta(t, 0.4, rate, 1e-12)
	assert.Equal(t, 60, n)

	rate, n, err = SelectionRate(d, Rule{}, "B")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, rate, 1e-12)
	assert.Equal(t, 40, n)

	_, _, err = SelectionRate(d, Rule{}, "C")
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestImpactRatio(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {24, 60}, "B": {8, 40}})

	ratio, refRate, cmpRate, err := ImpactRatio(d, Rule{}, "A", "B")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, ratio, 1e-12)
	assert.InDelta(t, 0.4, refRate, 1e-12)
	assert.InDelta(t, 0.2, cmpRate, 1e-12)
}

func TestImpactRatio_DegenerateReference(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {0, 10}, "B": {5, 10}})

	_, _, _, err := ImpactRatio(d, Rule{}, "A", "B")
	assert.ErrorIs(t, err, ErrDegenerateRate)
}

func TestTestSignificance_AutoGate(t *testing.T) {
	cfg := DefaultConfig()

	// both groups above the sample minimum: Z-test
	large := binaryDataset(t, map[string][2]int{"A": {24, 60}, "B": {8, 40}})
	p, method, err := TestSignificance(large, Rule{}, "A", "B", cfg)
	require.NoError(t, err)
	assert.Equal(t, MethodZTest, method)
	assert.InDelta(t, 0.0357, p, 0.001)

	// one group at or below the minimum: Fisher
	small := binaryDataset(t, map[string][2]int{"A": {24, 60}, "B": {3, 10}})
	_, method, err = TestSignificance(small, Rule{}, "A", "B", cfg)
	require.NoError(t, err)
	assert.Equal(t, MethodFisher, method)
}

func TestTestSignificance_ForcedMethod(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {24, 60}, "B": {8, 40}})

	cfg := DefaultConfig()
	cfg.TestMethod = MethodFisher
	_, method, err := TestSignificance(d, Rule{}, "A", "B", cfg)
	require.NoError(t, err)
	assert.Equal(t, MethodFisher, method)

	cfg.TestMethod = "bogus"
	_, _, err = TestSignificance(d, Rule{}, "A", "B", cfg)
	assert.ErrorContains(t, err, "unknown test method")
}

func TestEvaluate_FlagsAdverseImpact(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {24, 60}, "B": {8, 40}})

	st, err := Evaluate(d, Rule{}, "A", "B", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, -1, st.PredictorIndex)
	assert.Equal(t, "A", st.Reference)
	assert.Equal(t, "B", st.Comparison)
	assert.Equal(t, 60, st.ReferenceN)
	assert.Equal(t, 40, st.ComparisonN)
	assert.True(t, st.RatioDefined)
	assert.InDelta(t, 0.5, st.Ratio, 1e-12)
	assert.Equal(t, MethodZTest, st.Method)
	assert.Less(t, st.PValue, 0.05)
	assert.True(t, st.Flagged)
}

func TestEvaluate_BothConditionsRequired(t *testing.T) {
	// ratio well below 0.8 but tiny samples: not significant, not flagged
	d := binaryDataset(t, map[string][2]int{"A": {4, 8}, "B": {1, 6}})

	st, err := Evaluate(d, Rule{}, "A", "B", DefaultConfig())
	require.NoError(t, err)
	assert.True(t, st.RatioDefined)
	assert.Less(t, st.Ratio, FourFifths)
	assert.GreaterOrEqual(t, st.PValue, 0.05)
	assert.False(t, st.Flagged)
}

func TestEvaluate_UndefinedRatio(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {0, 40}, "B": {0, 40}})

	st, err := Evaluate(d, Rule{}, "A", "B", DefaultConfig())
	require.NoError(t, err)
	assert.False(t, st.RatioDefined)
	assert.False(t, st.Flagged)
}

func TestDetermineReferent(t *testing.T) {
	cfg := DefaultConfig()

	// highest rate wins
	d := binaryDataset(t, map[string][2]int{"A": {6, 10}, "B": {3, 10}, "C": {9, 10}})
	ref, err := DetermineReferent(d, Rule{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "C", ref)

	// rate tie broken by larger group
	d = binaryDataset(t, map[string][2]int{"A": {5, 10}, "B": {10, 20}})
	ref, err = DetermineReferent(d, Rule{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "B", ref)

	// rate and size tie broken lexicographically
	d = binaryDataset(t, map[string][2]int{"B": {5, 10}, "A": {5, 10}})
	ref, err = DetermineReferent(d, Rule{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "A", ref)
}

func TestDetermineReferent_MinRef(t *testing.T) {
	cfg := DefaultConfig()

	// the highest-rate group is too small to be elected
	d := binaryDataset(t, map[string][2]int{"A": {3, 3}, "B": {10, 20}})
	ref, err := DetermineReferent(d, Rule{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "B", ref)

	// when no group reaches MinRef, fall back to all groups
	d = binaryDataset(t, map[string][2]int{"A": {3, 3}, "B": {1, 3}})
	ref, err = DetermineReferent(d, Rule{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "A", ref)
}

func TestDetermineReferent_Pinned(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {6, 10}, "B": {3, 10}})

	cfg := DefaultConfig()
	cfg.Referent = "B"
	ref, err := DetermineReferent(d, Rule{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "B", ref)

	cfg.Referent = "Z"
	_, err = DetermineReferent(d, Rule{}, cfg)
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestAllPairs(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{
		"A": {24, 60}, // referent: highest rate
		"B": {8, 40},
		"C": {12, 40},
	})

	seq, err := AllPairs(d, Rule{}, DefaultConfig())
	require.NoError(t, err)

	var stats []*Stat
	for st := range seq {
		stats = append(stats, st)
	}
	require.Len(t, stats, 2)
	assert.Equal(t, "B", stats[0].Comparison)
	assert.Equal(t, "C", stats[1].Comparison)
	for _, st := range stats {
		assert.Equal(t, "A", st.Reference)
	}
}

func TestAllPairs_Restartable(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {6, 10}, "B": {3, 10}, "C": {2, 10}})

	seq, err := AllPairs(d, Rule{}, DefaultConfig())
	require.NoError(t, err)

	first := 0
	for range seq {
		first++
		break // early exit must not poison the sequence
	}
	assert.Equal(t, 1, first)

	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 2, second)
}

func TestAllPairs_SingleGroup(t *testing.T) {
	d := binaryDataset(t, map[string][2]int{"A": {6, 10}})

	seq, err := AllPairs(d, Rule{}, DefaultConfig())
	require.NoError(t, err)
	for range seq {
		t.Fatal("single-group dataset must yield nothing")
	}
}

func TestReport_UnknownMethod(t *testing.T) {
	// a mistyped method must fail the whole report, not yield an empty one
	d := binaryDataset(t, map[string][2]int{"A": {24, 60}, "B": {8, 40}})

	cfg := DefaultConfig()
	cfg.TestMethod = "bogus"

	report, err := Report(d, Rule{}, cfg)
	require.ErrorContains(t, err, "unknown test method")
	assert.Nil(t, report)

	_, err = AllPairs(d, Rule{}, cfg)
	assert.ErrorContains(t, err, "unknown test method")
}

func TestReport_DuplicationInvariance(t *testing.T) {
	// identical selection rates in a bigger sample: ratios must not move
	base := binaryDataset(t, map[string][2]int{"A": {24, 60}, "B": {8, 40}})
	doubled := binaryDataset(t, map[string][2]int{"A": {48, 120}, "B": {16, 80}})

	rb, err := Report(base, Rule{}, DefaultConfig())
	require.NoError(t, err)
	rd, err := Report(doubled, Rule{}, DefaultConfig())
	require.NoError(t, err)

	require.Len(t, rb, 1)
	require.Len(t, rd, 1)
	assert.InDelta(t, rb[0].Ratio, rd[0].Ratio, 1e-12)
	assert.InDelta(t, rb[0].ReferenceRate, rd[0].ReferenceRate, 1e-12)
	// significance does change with sample size
	assert.Less(t, rd[0].PValue, rb[0].PValue)
}

func TestColumnReport(t *testing.T) {
	// predictor scores thresholded at 50: A passes 3/4, B passes 1/4
	recs := []data.Record{
		{Predictors: []float64{80}, Outcome: 1, Group: "A"},
		{Predictors: []float64{70}, Outcome: 1, Group: "A"},
		{Predictors: []float64{60}, Outcome: 0, Group: "A"},
		{Predictors: []float64{40}, Outcome: 0, Group: "A"},
		{Predictors: []float64{55}, Outcome: 1, Group: "B"},
		{Predictors: []float64{45}, Outcome: 0, Group: "B"},
		{Predictors: []float64{30}, Outcome: 0, Group: "B"},
		{Predictors: []float64{20}, Outcome: 0, Group: "B"},
	}
	d, err := data.NewDataset("t", []string{"score"}, recs)
	require.NoError(t, err)

	stats, err := ColumnReport(d, 0, Cut(50), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 0, stats[0].PredictorIndex)
	assert.Equal(t, "A", stats[0].Reference)
	assert.InDelta(t, 0.75, stats[0].ReferenceRate, 1e-12)
	assert.InDelta(t, 0.25, stats[0].ComparisonRate, 1e-12)
	assert.InDelta(t, 1.0/3.0, stats[0].Ratio, 1e-12)

	_, err = ColumnReport(d, 5, Cut(50), DefaultConfig())
	assert.Error(t, err)
}

func TestRule_Pass(t *testing.T) {
	assert.True(t, Rule{}.Pass(1))
	assert.False(t, Rule{}.Pass(0))

	cut := Cut(50)
	assert.True(t, cut.Pass(50))
	assert.True(t, cut.Pass(71.5))
	assert.False(t, cut.Pass(49.9))

	pv := Rule{PassValues: []float64{2, 3}}
	assert.True(t, pv.Pass(2))
	assert.False(t, pv.Pass(1))
}
