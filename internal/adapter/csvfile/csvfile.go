// Package csvfile reads raw region timeseries and infection rate estimates
// from CSV files and writes computed metrics back out in export order.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

const dateColumn = "date"

// Infection rate estimate columns.
const (
	RtColumn     = "Rt_MAP_composite"
	RtCI95Column = "Rt_ci95_composite"
)

// snapshotSourceColumn is the trailing column of a snapshot export.
const snapshotSourceColumn = "metrics.testPositivityRatioDetails.source"

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// RegionParams carries the region attributes a CSV file does not hold.
type RegionParams struct {
	Region        domain.Region
	Population    float64
	HSAPopulation *float64
	Provenance    map[domain.Field][]string
}

// ReadRegion parses a `date,<field>...` file. Empty cells are null. Every
// column other than date must name a known field.
func ReadRegion(r io.Reader, p RegionParams) (domain.RegionTimeseries, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return domain.RegionTimeseries{}, err
	}
	dateIdx := indexOf(header, dateColumn)
	if dateIdx < 0 {
		return domain.RegionTimeseries{}, fmt.Errorf("%w: %s", ErrMissingColumn, dateColumn)
	}

	fields := make(map[int]domain.Field, len(header)-1)
	for i, name := range header {
		if i == dateIdx {
			continue
		}
		f := domain.Field(name)
		if !f.Valid() {
			return domain.RegionTimeseries{}, fmt.Errorf("unknown field column %q", name)
		}
		fields[i] = f
	}

	dates := make([]civil.Date, len(rows))
	columns := make(map[domain.Field][]float64, len(fields))
	for _, f := range fields {
		columns[f] = make([]float64, len(rows))
	}
	for n, row := range rows {
		line := n + 2
		d, err := civil.ParseDate(row[dateIdx])
		if err != nil {
			return domain.RegionTimeseries{}, fmt.Errorf("line %d: %w", line, err)
		}
		dates[n] = d
		for i, f := range fields {
			v, err := parseValue(row[i])
			if err != nil {
				return domain.RegionTimeseries{}, fmt.Errorf("line %d: %s: %w", line, f, err)
			}
			columns[f][n] = v
		}
	}

	return domain.NewRegionTimeseries(domain.RegionTimeseriesParams{
		Region:        p.Region,
		Dates:         dates,
		Columns:       columns,
		Population:    p.Population,
		HSAPopulation: p.HSAPopulation,
		Provenance:    p.Provenance,
	})
}

// ReadInfectionRate parses a `date,Rt_MAP_composite,Rt_ci95_composite` file.
// Other columns are ignored. An empty file yields nil.
func ReadInfectionRate(r io.Reader) (*domain.InfectionRateEstimate, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	idx := make([]int, 3)
	for i, name := range []string{dateColumn, RtColumn, RtCI95Column} {
		if idx[i] = indexOf(header, name); idx[i] < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	est := &domain.InfectionRateEstimate{
		Dates:  make([]civil.Date, len(rows)),
		Rt:     make([]float64, len(rows)),
		RtCI95: make([]float64, len(rows)),
	}
	for n, row := range rows {
		line := n + 2
		if est.Dates[n], err = civil.ParseDate(row[idx[0]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if est.Rt[n], err = parseValue(row[idx[1]]); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, RtColumn, err)
		}
		if est.RtCI95[n], err = parseValue(row[idx[2]]); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, RtCI95Column, err)
		}
	}
	return est, nil
}

// MetricsHeader returns the export columns of a metrics frame.
func MetricsHeader() []string {
	header := []string{dateColumn}
	for _, m := range domain.MetricFields() {
		header = append(header, m.String())
	}
	return header
}

// WriteMetrics writes f with one row per date. Nulls are empty cells.
func WriteMetrics(w io.Writer, f domain.Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MetricsHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	fields := domain.MetricFields()
	row := make([]string, len(fields)+1)
	for i, d := range f.Dates() {
		row[0] = d.String()
		for j, m := range fields {
			row[j+1] = formatValue(f.Value(m, i))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", d, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SnapshotHeader returns the export columns of the latest snapshots.
func SnapshotHeader() []string {
	header := []string{"fips", "level"}
	for _, m := range domain.MetricFields() {
		header = append(header, "metrics."+m.String())
	}
	return append(header, snapshotSourceColumn)
}

// WriteSnapshots writes one row per region. A region without a snapshot
// gets empty metric cells.
func WriteSnapshots(w io.Writer, results []domain.RegionMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SnapshotHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		row := []string{r.Region.FIPS, string(r.Region.Level)}
		for _, m := range domain.MetricFields() {
			row = append(row, formatValue(r.Latest.Value(m)))
		}
		source := ""
		if r.Latest != nil {
			source = string(r.Latest.TestPositivityDetails.Source)
		}
		if err := cw.Write(append(row, source)); err != nil {
			return fmt.Errorf("write %s: %w", r.Region.FIPS, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, dateColumn)
	}
	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, records[1:], nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Null, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatValue(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
