package domain

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
)

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RegionRecord is the JSON payload of a source message: the raw timeseries
// of one region and, optionally, its infection rate estimate. Missing
// observations are encoded as null.
type RegionRecord struct {
	Region        Region               `json:"region"`
	Population    float64              `json:"population"`
	HSAPopulation *float64             `json:"hsa_population,omitempty"`
	Dates         []civil.Date         `json:"dates"`
	Columns       map[Field][]*float64 `json:"columns"`
	Provenance    map[Field][]string   `json:"provenance,omitempty"`
	InfectionRate *InfectionRateRecord `json:"infection_rate,omitempty"`
}

// InfectionRateRecord is the JSON form of an InfectionRateEstimate.
type InfectionRateRecord struct {
	Dates  []civil.Date `json:"dates"`
	Rt     []*float64   `json:"rt"`
	RtCI95 []*float64   `json:"rt_ci95"`
}

// RegionInput is a parsed source message.
type RegionInput struct {
	Timeseries RegionTimeseries
	Estimate   *InfectionRateEstimate
}

// RegionMetrics is the computed output for one region.
type RegionMetrics struct {
	Region      Region       `json:"region"`
	Metrics     Frame        `json:"metrics"`
	Latest      *Snapshot    `json:"latest"`
	KnownIssues []KnownIssue `json:"known_issues,omitempty"`
	ComputedAt  time.Time    `json:"computed_at"`
	RunID       string       `json:"run_id"`
}
