package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

// ParseRawEvent deserializes a RawEvent's value into a RegionInput.
func ParseRawEvent(raw RawEvent) (RegionInput, error) {
	var rec RegionRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return RegionInput{}, fmt.Errorf("parse raw event: %w", err)
	}
	return rec.Input()
}

// Input validates the record and converts it to a RegionInput.
func (rec RegionRecord) Input() (RegionInput, error) {
	if !rec.Region.Level.Valid() {
		return RegionInput{}, fmt.Errorf("region %q: unknown level %q", rec.Region.FIPS, rec.Region.Level)
	}

	columns := make(map[Field][]float64, len(rec.Columns))
	for field, values := range rec.Columns {
		if !field.Valid() {
			return RegionInput{}, fmt.Errorf("region %q: unknown field %q", rec.Region.FIPS, field)
		}
		columns[field] = fromNullable(values)
	}

	ts, err := NewRegionTimeseries(RegionTimeseriesParams{
		Region:        rec.Region,
		Dates:         rec.Dates,
		Columns:       columns,
		Population:    rec.Population,
		HSAPopulation: rec.HSAPopulation,
		Provenance:    rec.Provenance,
	})
	if err != nil {
		return RegionInput{}, fmt.Errorf("region %q: %w", rec.Region.FIPS, err)
	}

	input := RegionInput{Timeseries: ts}
	if rec.InfectionRate != nil && len(rec.InfectionRate.Dates) > 0 {
		input.Estimate = &InfectionRateEstimate{
			Dates:  rec.InfectionRate.Dates,
			Rt:     fromNullable(rec.InfectionRate.Rt),
			RtCI95: fromNullable(rec.InfectionRate.RtCI95),
		}
	}
	return input, nil
}

// NewRegionRecord builds the source payload of input. Nulls become JSON
// nulls; Input reverses it.
func NewRegionRecord(input RegionInput) RegionRecord {
	ts := input.Timeseries
	p := ts.Params()
	rec := RegionRecord{
		Region:     p.Region,
		Population: p.Population,
		Dates:      p.Dates,
		Columns:    make(map[Field][]*float64, len(p.Columns)),
	}
	if hsa, ok := ts.HSAPopulation(); ok {
		rec.HSAPopulation = &hsa
	}
	if rec.Dates == nil {
		rec.Dates = []civil.Date{}
	}
	for f, values := range p.Columns {
		rec.Columns[f] = toNullable(values)
	}
	if len(p.Provenance) > 0 {
		rec.Provenance = p.Provenance
	}
	if !input.Estimate.Empty() {
		rec.InfectionRate = &InfectionRateRecord{
			Dates:  input.Estimate.Dates,
			Rt:     toNullable(input.Estimate.Rt),
			RtCI95: toNullable(input.Estimate.RtCI95),
		}
	}
	return rec
}

// ComputeRegionMetrics runs the calculator on input and stamps the result.
func ComputeRegionMetrics(c *Calculator, input RegionInput) RegionMetrics {
	frame, latest := c.Calculate(input.Timeseries, input.Estimate)
	return RegionMetrics{
		Region:      input.Timeseries.Region(),
		Metrics:     frame,
		Latest:      latest,
		KnownIssues: input.Timeseries.Tags(),
		ComputedAt:  clock.Now().UTC().Truncate(time.Second),
		RunID:       uuid.NewString(),
	}
}

func toNullable(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if IsValid(v) {
			out[i] = &v
		}
	}
	return out
}

func fromNullable(values []*float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = Null
		} else {
			out[i] = *v
		}
	}
	return out
}
