package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/region-metrics-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

// regionFlags describe one region read from CSV files.
func regionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    "Region CSV with a date column and one column per input field",
			Required: true,
		},
		&cli.PathFlag{
			Name:  "rt",
			Usage: "Infection rate CSV (date,Rt_MAP_composite,Rt_ci95_composite)",
		},
		&cli.StringFlag{
			Name:     "fips",
			Usage:    "Region FIPS code",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "level",
			Value: string(domain.LevelCounty),
			Usage: "Aggregation level (country, state, cbsa, county, place)",
		},
		&cli.StringFlag{
			Name:  "state",
			Usage: "Two-letter state code",
		},
		&cli.Float64Flag{
			Name:     "population",
			Usage:    "Region population",
			Required: true,
		},
		&cli.Float64Flag{
			Name:  "hsa-population",
			Usage: "Healthcare service area population",
		},
		&cli.StringSliceFlag{
			Name:  "test-positivity-source",
			Usage: "Provenance label of the test positivity column (repeatable)",
		},
	}
}

// readInput loads the region described by regionFlags.
func readInput(c *cli.Context) (domain.RegionInput, error) {
	region := domain.Region{
		FIPS:  c.String("fips"),
		State: c.String("state"),
		Level: domain.Level(c.String("level")),
	}
	if !region.Level.Valid() {
		return domain.RegionInput{}, fmt.Errorf("unknown level %q", region.Level)
	}

	params := csvfile.RegionParams{Region: region, Population: c.Float64("population")}
	if c.IsSet("hsa-population") {
		hsa := c.Float64("hsa-population")
		params.HSAPopulation = &hsa
	}
	if sources := c.StringSlice("test-positivity-source"); len(sources) > 0 {
		params.Provenance = map[domain.Field][]string{domain.FieldTestPositivity: sources}
	}

	ts, err := readRegion(c.Path("input"), params)
	if err != nil {
		return domain.RegionInput{}, err
	}
	input := domain.RegionInput{Timeseries: ts}
	if path := c.Path("rt"); path != "" {
		if input.Estimate, err = readInfectionRate(path); err != nil {
			return domain.RegionInput{}, err
		}
	}
	return input, nil
}

func readRegion(path string, p csvfile.RegionParams) (domain.RegionTimeseries, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RegionTimeseries{}, fmt.Errorf("open region csv: %w", err)
	}
	defer f.Close()

	ts, err := csvfile.ReadRegion(f, p)
	if err != nil {
		return domain.RegionTimeseries{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ts, nil
}

func readInfectionRate(path string) (*domain.InfectionRateEstimate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open infection rate csv: %w", err)
	}
	defer f.Close()

	est, err := csvfile.ReadInfectionRate(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return est, nil
}
