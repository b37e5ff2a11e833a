package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/region-metrics-etl/internal/adapter/postgres"
	"github.com/couchcryptid/region-metrics-etl/internal/domain"
	"github.com/couchcryptid/region-metrics-etl/internal/filter"
)

func latestCommand() *cli.Command {
	return &cli.Command{
		Name:      "latest",
		Usage:     "Print the stored latest snapshot of a region",
		ArgsUsage: "<fips>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "PostgreSQL connection string",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			fips := c.Args().First()
			if fips == "" {
				return cli.Exit("a region FIPS code is required", 2)
			}
			logger := sharedobs.NewLogger(c.String("log-level"), c.String("log-format"))

			store, err := postgres.Open(c.Context, c.String("database-url"), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.Latest(c.Context, fips)
			if errors.Is(err, domain.ErrRegionNotFound) {
				return cli.Exit(fmt.Sprintf("no metrics stored for region %s", fips), 1)
			}
			if err != nil {
				return err
			}
			return writeSnapshotJSON(os.Stdout, result)
		},
	}
}

func filtersCommand() *cli.Command {
	return &cli.Command{
		Name:  "filters",
		Usage: "Validate a manual filter file and list its rules",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     "filters",
				Usage:    "Manual filter YAML",
				EnvVars:  []string{"FILTER_CONFIG_PATH"},
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := filter.Load(c.Path("filters"))
			if err != nil {
				return err
			}
			w := c.App.Writer
			for i, r := range cfg.Filters {
				regions := make([]string, 0, len(r.RegionsIncluded))
				for _, m := range r.RegionsIncluded {
					regions = append(regions, m.String())
				}
				mode := "tag"
				if r.DropObservations {
					mode = "drop"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", i, mode, strings.Join(regions, ";"), r.FieldsIncluded)
			}
			fmt.Fprintf(w, "%d rules ok\n", len(cfg.Filters))
			return nil
		},
	}
}
