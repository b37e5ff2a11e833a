// Command metricsctl computes region metrics from CSV files and inspects the
// snapshot store.
//
// Usage:
//
//	metricsctl compute --input region.csv --fips 48113 --population 2635516 --out metrics.csv
//	metricsctl record --input region.csv --fips 48113 --population 2635516 --brokers localhost:9092
//	metricsctl latest --database-url postgres://... 48113
//	metricsctl filters --filters filters.yaml
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "metricsctl",
		Usage: "Compute and inspect derived public-health metrics per region",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Commands: []*cli.Command{
			computeCommand(),
			recordCommand(),
			latestCommand(),
			filtersCommand(),
		},
	}
}
