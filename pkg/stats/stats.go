// Package stats provides small exploratory helpers used when preparing
// selection data: robust outlier scores and a small-group filter.
package stats

import (
	"math"
	"sort"
)

// Mean returns the average of x, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// Std returns the sample standard deviation of x.
func Std(x []float64) float64 {
	n := float64(len(x))
	if n < 2 {
		return 0
	}
	m := Mean(x)
	sum := 0.0
	for _, v := range x {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / (n - 1))
}

// Median returns the middle value of x.
func Median(x []float64) float64 {
	return Quantile(x, 0.5)
}

// Quantile returns the q-th quantile of x by linear interpolation.
func Quantile(x []float64, q float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	s := make([]float64, n)
	copy(s, x)
	sort.Float64s(s)

	if q <= 0 {
		return s[0]
	}
	if q >= 1 {
		return s[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	frac := pos - float64(lo)
	return s[lo]*(1-frac) + s[hi]*frac
}

// StandardScores returns (x - mean) / std for each value.
func StandardScores(x []float64) []float64 {
	m, s := Mean(x), Std(x)
	out := make([]float64, len(x))
	for i, v := range x {
		if s == 0 {
			continue
		}
		out[i] = (v - m) / s
	}
	return out
}

// normalConsistency scales the MAD to estimate sigma under normality.
const normalConsistency = 1.4826

// HampelScores returns the Hampel identifier for each value: distance from
// the median in units of the normalized median absolute deviation. More
// robust to heavy tails than the standard score.
func HampelScores(x []float64) []float64 {
	med := Median(x)
	dev := make([]float64, len(x))
	for i, v := range x {
		dev[i] = math.Abs(v - med)
	}
	mad := Median(dev) * normalConsistency

	out := make([]float64, len(x))
	for i, v := range x {
		if mad == 0 {
			continue
		}
		out[i] = (v - med) / mad
	}
	return out
}

// IQRScores returns each value's distance from the median scaled by the
// interquartile-style range between quantiles q and 1-q.
func IQRScores(x []float64, q float64) []float64 {
	med := Median(x)
	scale := Quantile(x, 1-q) - Quantile(x, q)

	out := make([]float64, len(x))
	for i, v := range x {
		if scale == 0 {
			continue
		}
		out[i] = (v - med) / scale
	}
	return out
}

// DropSmallGroups returns the labels whose count exceeds minN, preserving
// first-seen order. Used to filter out groups too small to analyze.
func DropSmallGroups(labels []string, minN int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, g := range labels {
		if counts[g] == 0 {
			order = append(order, g)
		}
		counts[g]++
	}

	keep := make([]string, 0, len(order))
	for _, g := range order {
		if counts[g] > minN {
			keep = append(keep, g)
		}
	}
	return keep
}
