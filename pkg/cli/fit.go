package cli

import (
	"errors"
	"fmt"
	"log/slog"

	urfave "github.com/urfave/cli/v2"

	"github.com/molmatt/iopsy/pkg/data"
	"github.com/molmatt/iopsy/pkg/model"
)

var (
	lambdaFlag = &urfave.Float64Flag{
		Name:  "lambda",
		Usage: "Fairness penalty strength (defaults to config file value)",
	}

	baseL2Flag = &urfave.Float64Flag{
		Name:  "l2",
		Usage: "Baseline ridge penalty applied to every predictor",
	}

	selectionThresholdFlag = &urfave.Float64Flag{
		Name:  "selection-threshold",
		Usage: "Cutscore binarizing each predictor into a would-select indicator",
	}

	familyFlag = &urfave.StringFlag{
		Name:  "family",
		Usage: "Model family [auto, linear, logistic]",
		Value: model.FamilyAuto,
	}

	maxIterFlag = &urfave.IntFlag{
		Name:  "max-iterations",
		Usage: "Solver iteration cap",
	}

	toleranceFlag = &urfave.Float64Flag{
		Name:  "tolerance",
		Usage: "Solver convergence tolerance (gradient norm)",
	}

	fitCmd = &urfave.Command{
		Name:  "fit",
		Usage: "Fit a fairness-weighted selection model on a stored dataset",
		UsageText: `iopsy fit --name pilot --lambda 2 --l2 0.1        # attenuate high-impact predictors
   iopsy fit --name pilot --lambda 0                 # plain ridge baseline
   iopsy fit --name pilot --family logistic          # force logistic regression`,
		HideHelpCommand: true,
		Action:          cmdFit,
		Flags: []urfave.Flag{
			datasetNameFlag,
			lambdaFlag,
			baseL2Flag,
			selectionThresholdFlag,
			alphaFlag,
			referentFlag,
			testMethodFlag,
			familyFlag,
			maxIterFlag,
			toleranceFlag,
			formatFlag,
		},
	}
)

func fitConfig(c *urfave.Context, cfg *appConfig) model.Config {
	mc := model.DefaultConfig()
	mc.Impact = impactConfig(c, cfg)
	if cfg.Defaults != nil {
		mc.FairnessLambda = cfg.Defaults.FairnessLambda
		if cfg.Defaults.BaseL2 > 0 {
			mc.BaseL2 = cfg.Defaults.BaseL2
		}
		mc.SelectionThreshold = cfg.Defaults.SelectionThreshold
		if cfg.Defaults.MaxIterations > 0 {
			mc.MaxIterations = cfg.Defaults.MaxIterations
		}
		if cfg.Defaults.Tolerance > 0 {
			mc.Tolerance = cfg.Defaults.Tolerance
		}
	}
	if c.IsSet(lambdaFlag.Name) {
		mc.FairnessLambda = c.Float64(lambdaFlag.Name)
	}
	if c.IsSet(baseL2Flag.Name) {
		mc.BaseL2 = c.Float64(baseL2Flag.Name)
	}
	if c.IsSet(selectionThresholdFlag.Name) {
		mc.SelectionThreshold = c.Float64(selectionThresholdFlag.Name)
	}
	if c.IsSet(familyFlag.Name) {
		mc.Family = c.String(familyFlag.Name)
	}
	if c.IsSet(maxIterFlag.Name) {
		mc.MaxIterations = c.Int(maxIterFlag.Name)
	}
	if c.IsSet(toleranceFlag.Name) {
		mc.Tolerance = c.Float64(toleranceFlag.Name)
	}
	return mc
}

// fitResult bundles the fitted model with its in-sample quality metrics.
type fitResult struct {
	Model   *model.Fitted  `json:"model" yaml:"model"`
	Metrics *model.Metrics `json:"metrics" yaml:"metrics"`
}

func cmdFit(c *urfave.Context) error {
	applyFlags(c)
	cfg := getConfig(c)

	name := c.String(datasetNameFlag.Name)
	d, err := data.GetDataset(cfg.DB, name)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	mc := fitConfig(c, cfg)

	m, err := model.Fit(d, mc)
	if err != nil {
		var nc *model.NonConvergenceError
		if errors.As(err, &nc) {
			slog.Error("fit did not converge; retry with more iterations or a looser tolerance",
				"iterations", nc.Iterations, "gradient_norm", nc.GradientNorm)
		}
		return fmt.Errorf("fitting model: %w", err)
	}

	metrics, err := m.Score(d)
	if err != nil {
		return fmt.Errorf("scoring model: %w", err)
	}

	slog.Info("model fitted", "family", m.Family, "iterations", m.Iterations,
		"rmse", fmt.Sprintf("%.4f", metrics.RMSE))

	return encode(&fitResult{Model: m, Metrics: metrics})
}
