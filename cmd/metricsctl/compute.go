package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/region-metrics-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/region-metrics-etl/internal/adapter/postgres"
	"github.com/couchcryptid/region-metrics-etl/internal/domain"
	"github.com/couchcryptid/region-metrics-etl/internal/filter"
)

func computeCommand() *cli.Command {
	defaults := domain.DefaultConfig()
	return &cli.Command{
		Name:  "compute",
		Usage: "Compute the metrics frame and latest snapshot of one region",
		Flags: append(regionFlags(),
			&cli.PathFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Metrics CSV output path",
				Required: true,
			},
			&cli.PathFlag{
				Name:  "snapshot-out",
				Usage: "Latest snapshot JSON output path",
			},
			&cli.PathFlag{
				Name:  "snapshot-csv",
				Usage: "Latest snapshot CSV output path",
			},
			&cli.PathFlag{
				Name:    "filters",
				Usage:   "Manual filter YAML",
				EnvVars: []string{"FILTER_CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Store the snapshot in PostgreSQL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.IntFlag{
				Name:  "smoothing-window",
				Value: defaults.SmoothingWindow,
				Usage: "Rolling average window in days",
			},
			&cli.IntFlag{
				Name:  "stall-threshold-days",
				Value: defaults.StallThresholdDays,
				Usage: "Trailing zero days before zeros count as real",
			},
			&cli.Float64Flag{
				Name:  "tracers-per-case",
				Value: defaults.TracersPerCase,
				Usage: "Contact tracers needed per daily case",
			},
			&cli.IntFlag{
				Name:  "max-lookback-days",
				Value: defaults.MaxLookbackDays,
				Usage: "Staleness window of the latest snapshot",
			},
			&cli.IntFlag{
				Name:  "rt-truncation-days",
				Value: defaults.InfectionRateTruncationDays,
				Usage: "Days the published infection rate lags its last estimate",
			},
		),
		Action: runCompute,
	}
}

func runCompute(c *cli.Context) error {
	logger := sharedobs.NewLogger(c.String("log-level"), c.String("log-format"))

	cfg := domain.DefaultConfig()
	cfg.SmoothingWindow = c.Int("smoothing-window")
	cfg.StallThresholdDays = c.Int("stall-threshold-days")
	cfg.TracersPerCase = c.Float64("tracers-per-case")
	cfg.MaxLookbackDays = c.Int("max-lookback-days")
	cfg.InfectionRateTruncationDays = c.Int("rt-truncation-days")
	calc, err := domain.NewCalculator(cfg, logger)
	if err != nil {
		return err
	}

	input, err := readInput(c)
	if err != nil {
		return err
	}
	region := input.Timeseries.Region()

	if path := c.Path("filters"); path != "" {
		filterCfg, err := filter.Load(path)
		if err != nil {
			return err
		}
		rules := filter.New(filterCfg, logger)
		if input.Timeseries, err = rules.Apply(input.Timeseries); err != nil {
			return fmt.Errorf("apply filters: %w", err)
		}
		rules.ReportUnmatched([]domain.Region{region})
	}

	result := domain.ComputeRegionMetrics(calc, input)
	logger.Info("region computed",
		"region", region.FIPS,
		"days", result.Metrics.Len(),
		"has_snapshot", result.Latest != nil,
		"run_id", result.RunID,
	)

	if err := writeFile(c.Path("out"), func(f *os.File) error {
		return csvfile.WriteMetrics(f, result.Metrics)
	}); err != nil {
		return err
	}
	if path := c.Path("snapshot-out"); path != "" {
		if err := writeFile(path, func(f *os.File) error {
			return writeSnapshotJSON(f, result)
		}); err != nil {
			return err
		}
	}
	if path := c.Path("snapshot-csv"); path != "" {
		if err := writeFile(path, func(f *os.File) error {
			return csvfile.WriteSnapshots(f, []domain.RegionMetrics{result})
		}); err != nil {
			return err
		}
	}

	if dsn := c.String("database-url"); dsn != "" {
		return storeResult(c, dsn, result, logger)
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

type snapshotDocument struct {
	Region      domain.Region       `json:"region"`
	Latest      *domain.Snapshot    `json:"latest"`
	KnownIssues []domain.KnownIssue `json:"known_issues,omitempty"`
	ComputedAt  time.Time           `json:"computed_at"`
	RunID       string              `json:"run_id"`
}

func writeSnapshotJSON(w io.Writer, r domain.RegionMetrics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshotDocument{
		Region:      r.Region,
		Latest:      r.Latest,
		KnownIssues: r.KnownIssues,
		ComputedAt:  r.ComputedAt,
		RunID:       r.RunID,
	})
}

func storeResult(c *cli.Context, dsn string, result domain.RegionMetrics, logger *slog.Logger) error {
	store, err := postgres.Open(c.Context, dsn, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(c.Context); err != nil {
		return err
	}
	if err := store.LoadBatch(c.Context, []domain.RegionMetrics{result}); err != nil {
		return err
	}
	logger.Info("snapshot stored", "region", result.Region.FIPS)
	return nil
}
