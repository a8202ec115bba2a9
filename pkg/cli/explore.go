package cli

import (
	"fmt"
	"math"

	urfave "github.com/urfave/cli/v2"

	"github.com/molmatt/iopsy/pkg/data"
	"github.com/molmatt/iopsy/pkg/stats"
)

const (
	scoreStandard = "standard"
	scoreHampel   = "hampel"
	scoreIQR      = "iqr"
)

var (
	scoreMethodFlag = &urfave.StringFlag{
		Name:  "method",
		Usage: "Outlier score [standard, hampel, iqr]",
		Value: scoreHampel,
	}

	quantileFlag = &urfave.Float64Flag{
		Name:  "q",
		Usage: "Lower quantile for the iqr score range",
		Value: 0.25,
	}

	outlierCutFlag = &urfave.Float64Flag{
		Name:  "cut",
		Usage: "Absolute score above which a record is reported as an outlier",
		Value: 3,
	}

	minGroupFlag = &urfave.IntFlag{
		Name:  "min-group",
		Usage: "Report only groups with more than this many records",
	}

	exploreCmd = &urfave.Command{
		Name:    "explore",
		Aliases: []string{"x"},
		Usage:   "Screen a stored dataset column for outliers and small groups",
		UsageText: `iopsy explore --name pilot --predictor 0                 # hampel scores for one predictor
   iopsy explore --name pilot --method standard --cut 2.5   # z-score screen of the outcome
   iopsy explore --name pilot --min-group 5                 # drop groups too small to analyze`,
		HideHelpCommand: true,
		Action:          cmdExplore,
		Flags: []urfave.Flag{
			datasetNameFlag,
			predictorFlag,
			scoreMethodFlag,
			quantileFlag,
			outlierCutFlag,
			minGroupFlag,
			formatFlag,
		},
	}
)

// exploreResult summarizes one column: location, spread, per-record outlier
// scores, the indices exceeding the cut, and the groups large enough to keep.
type exploreResult struct {
	Dataset  string    `json:"dataset" yaml:"dataset"`
	Column   string    `json:"column" yaml:"column"`
	Method   string    `json:"method" yaml:"method"`
	Mean     float64   `json:"mean" yaml:"mean"`
	Std      float64   `json:"std" yaml:"std"`
	Median   float64   `json:"median" yaml:"median"`
	Scores   []float64 `json:"scores" yaml:"scores"`
	Outliers []int     `json:"outliers" yaml:"outliers"`
	Groups   []string  `json:"groups" yaml:"groups"`
}

func exploreColumn(d *data.Dataset, j int, method string, q, cut float64, minGroup int) (*exploreResult, error) {
	var (
		values []float64
		column string
		err    error
	)
	if j >= 0 {
		values, err = d.Column(j)
		if err != nil {
			return nil, err
		}
		column = d.PredictorNames[j]
	} else {
		values = d.Outcomes()
		column = d.OutcomeName
	}

	var scores []float64
	switch method {
	case scoreStandard:
		scores = stats.StandardScores(values)
	case scoreHampel:
		scores = stats.HampelScores(values)
	case scoreIQR:
		scores = stats.IQRScores(values, q)
	default:
		return nil, fmt.Errorf("unknown score method %q", method)
	}

	outliers := make([]int, 0)
	for i, s := range scores {
		if math.Abs(s) > cut {
			outliers = append(outliers, i)
		}
	}

	return &exploreResult{
		Dataset:  d.Name,
		Column:   column,
		Method:   method,
		Mean:     stats.Mean(values),
		Std:      stats.Std(values),
		Median:   stats.Median(values),
		Scores:   scores,
		Outliers: outliers,
		Groups:   stats.DropSmallGroups(d.GroupLabels(), minGroup),
	}, nil
}

func cmdExplore(c *urfave.Context) error {
	applyFlags(c)
	cfg := getConfig(c)

	name := c.String(datasetNameFlag.Name)
	d, err := data.GetDataset(cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	res, err := exploreColumn(d,
		c.Int(predictorFlag.Name),
		c.String(scoreMethodFlag.Name),
		c.Float64(quantileFlag.Name),
		c.Float64(outlierCutFlag.Name),
		c.Int(minGroupFlag.Name))
	if err != nil {
		return fmt.Errorf("exploring %s: %w", name, err)
	}

	return encode(res)
}
