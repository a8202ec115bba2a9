package cli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"

	"github.com/molmatt/iopsy/pkg/data"
)

var (
	queryCmd = &urfave.Command{
		Name:    "query",
		Aliases: []string{"q"},
		Usage:   "List data query operations",
		Subcommands: []*urfave.Command{
			{
				Name:    "datasets",
				Aliases: []string{"d"},
				Usage:   "List stored datasets",
				Action:  cmdQueryDatasets,
				Flags: []urfave.Flag{
					formatFlag,
				},
			},
			{
				Name:    "groups",
				Aliases: []string{"g"},
				Usage:   "List group sizes for a dataset",
				Action:  cmdQueryGroups,
				Flags: []urfave.Flag{
					datasetNameFlag,
					formatFlag,
				},
			},
		},
	}
)

func cmdQueryDatasets(c *urfave.Context) error {
	applyFlags(c)
	cfg := getConfig(c)

	list, err := data.ListDatasets(cfg.DB)
	if err != nil {
		return fmt.Errorf("listing datasets: %w", err)
	}
	return encode(list)
}

func cmdQueryGroups(c *urfave.Context) error {
	applyFlags(c)
	cfg := getConfig(c)

	name := c.String(datasetNameFlag.Name)
	counts, err := data.GetGroupCounts(cfg.DB, name)
	if err != nil {
		return fmt.Errorf("listing groups for %s: %w", name, err)
	}
	return encode(counts)
}
