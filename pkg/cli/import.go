package cli

import (
	"fmt"
	"log/slog"

	urfave "github.com/urfave/cli/v2"

	"github.com/molmatt/iopsy/pkg/data"
)

var (
	importFileFlag = &urfave.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Path to the CSV file (header row required)",
		Required: true,
	}

	datasetNameFlag = &urfave.StringFlag{
		Name:     "name",
		Aliases:  []string{"n"},
		Usage:    "Dataset name",
		Required: true,
	}

	groupColFlag = &urfave.StringFlag{
		Name:     "group-col",
		Usage:    "Name of the group-label column (e.g. gender, ethnicity)",
		Required: true,
	}

	outcomeColFlag = &urfave.StringFlag{
		Name:     "outcome-col",
		Usage:    "Name of the outcome column (selection decision or criterion score)",
		Required: true,
	}

	importCmd = &urfave.Command{
		Name:    "import",
		Aliases: []string{"i"},
		Usage:   "Import an applicant dataset from a CSV file",
		UsageText: `iopsy import --file applicants.csv --name pilot --group-col ethnicity --outcome-col hired
   iopsy i -f scores.csv -n study2 --group-col gender --outcome-col rating`,
		HideHelpCommand: true,
		Action:          cmdImport,
		Flags: []urfave.Flag{
			importFileFlag,
			datasetNameFlag,
			groupColFlag,
			outcomeColFlag,
			formatFlag,
		},
	}
)

func cmdImport(c *urfave.Context) error {
	applyFlags(c)
	cfg := getConfig(c)

	file := c.String(importFileFlag.Name)
	name := c.String(datasetNameFlag.Name)
	groupCol := c.String(groupColFlag.Name)
	outcomeCol := c.String(outcomeColFlag.Name)

	d, err := data.LoadCSV(file, name, groupCol, outcomeCol)
	if err != nil {
		return fmt.Errorf("loading %s: %w", file, err)
	}
	d.GroupName = groupCol
	d.OutcomeName = outcomeCol

	if err := data.SaveDataset(cfg.DB, d); err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}

	slog.Info("dataset imported", "name", name, "records", d.N(),
		"predictors", d.P(), "groups", len(d.Groups()))

	info := &data.DatasetInfo{
		Name:        d.Name,
		OutcomeName: d.OutcomeName,
		GroupName:   d.GroupName,
		Records:     d.N(),
	}
	return encode(info)
}
