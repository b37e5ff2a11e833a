package main

import (
	"encoding/json"
	"fmt"
	"os"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/urfave/cli/v2"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Encode a region as a source topic message, for fixtures or replay",
		Flags: append(regionFlags(),
			&cli.PathFlag{
				Name:  "out",
				Usage: "Write the JSON payload to this path",
			},
			&cli.StringFlag{
				Name:    "brokers",
				Usage:   "Publish to these comma-separated Kafka brokers",
				EnvVars: []string{"KAFKA_BROKERS"},
			},
			&cli.StringFlag{
				Name:    "topic",
				Value:   "raw-region-timeseries",
				Usage:   "Source topic to publish to",
				EnvVars: []string{"KAFKA_SOURCE_TOPIC"},
			},
		),
		Action: runRecord,
	}
}

func runRecord(c *cli.Context) error {
	out, brokers := c.Path("out"), c.String("brokers")
	if out == "" && brokers == "" {
		return cli.Exit("one of --out or --brokers is required", 2)
	}
	logger := sharedobs.NewLogger(c.String("log-level"), c.String("log-format"))

	input, err := readInput(c)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(domain.NewRegionRecord(input), "", " ")
	if err != nil {
		return fmt.Errorf("encode region record: %w", err)
	}

	if out != "" {
		if err := os.WriteFile(out, append(payload, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
	}
	if brokers == "" {
		return nil
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(sharedcfg.ParseBrokers(brokers)...),
		Topic:        c.String("topic"),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer writer.Close()

	region := input.Timeseries.Region()
	if err := writer.WriteMessages(c.Context, kafkago.Message{Key: []byte(region.FIPS), Value: payload}); err != nil {
		return fmt.Errorf("publish region %s: %w", region.FIPS, err)
	}
	logger.Info("region published", "region", region.FIPS, "topic", c.String("topic"))
	return nil
}
