package cli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"

	"github.com/molmatt/iopsy/pkg/data"
	"github.com/molmatt/iopsy/pkg/impact"
)

var (
	cutscoreFlag = &urfave.Float64Flag{
		Name:  "cutscore",
		Usage: "Cutscore: outcomes at or above this value count as selected (default: positive outcome selects)",
	}

	alphaFlag = &urfave.Float64Flag{
		Name:  "alpha",
		Usage: "Significance threshold (defaults to config file value)",
	}

	referentFlag = &urfave.StringFlag{
		Name:  "referent",
		Usage: "Pin the reference group (default: highest selection rate)",
	}

	testMethodFlag = &urfave.StringFlag{
		Name:  "test",
		Usage: "Significance test [auto, ztest, fisher]",
	}

	predictorFlag = &urfave.IntFlag{
		Name:  "predictor",
		Usage: "Evaluate a predictor column (by index) instead of the outcome",
		Value: -1,
	}

	thresholdFlag = &urfave.Float64Flag{
		Name:  "threshold",
		Usage: "Would-select cutscore applied to the predictor column",
	}

	impactCmd = &urfave.Command{
		Name:    "impact",
		Aliases: []string{"ai"},
		Usage:   "Run an adverse impact analysis on a stored dataset",
		UsageText: `iopsy impact --name pilot                                   # outcome-level analysis
   iopsy impact --name pilot --cutscore 75                     # cutscore on a criterion outcome
   iopsy impact --name pilot --predictor 2 --threshold 50      # would-select analysis of one predictor
   iopsy impact --name pilot --referent White --test fisher    # pinned referent, forced exact test`,
		HideHelpCommand: true,
		Action:          cmdImpact,
		Flags: []urfave.Flag{
			datasetNameFlag,
			cutscoreFlag,
			alphaFlag,
			referentFlag,
			testMethodFlag,
			predictorFlag,
			thresholdFlag,
			formatFlag,
		},
	}
)

func impactConfig(c *urfave.Context, cfg *appConfig) impact.Config {
	ic := impact.DefaultConfig()
	if cfg.Defaults != nil {
		if cfg.Defaults.Alpha > 0 {
			ic.Alpha = cfg.Defaults.Alpha
		}
		if cfg.Defaults.MinRef > 0 {
			ic.MinRef = cfg.Defaults.MinRef
		}
		if cfg.Defaults.TestMethod != "" {
			ic.TestMethod = cfg.Defaults.TestMethod
		}
	}
	if c.IsSet(alphaFlag.Name) {
		ic.Alpha = c.Float64(alphaFlag.Name)
	}
	if c.IsSet(referentFlag.Name) {
		ic.Referent = c.String(referentFlag.Name)
	}
	if c.IsSet(testMethodFlag.Name) {
		ic.TestMethod = c.String(testMethodFlag.Name)
	}
	return ic
}

func cmdImpact(c *urfave.Context) error {
	applyFlags(c)
	cfg := getConfig(c)

	name := c.String(datasetNameFlag.Name)
	d, err := data.GetDataset(cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	ic := impactConfig(c, cfg)

	var rule impact.Rule
	if c.IsSet(cutscoreFlag.Name) {
		rule = impact.Cut(c.Float64(cutscoreFlag.Name))
	}

	var report []*impact.Stat
	if j := c.Int(predictorFlag.Name); j >= 0 {
		r := rule
		if c.IsSet(thresholdFlag.Name) {
			r = impact.Cut(c.Float64(thresholdFlag.Name))
		}
		report, err = impact.ColumnReport(d, j, r, ic)
	} else {
		report, err = impact.Report(d, rule, ic)
	}
	if err != nil {
		return fmt.Errorf("evaluating adverse impact: %w", err)
	}

	return encode(report)
}
