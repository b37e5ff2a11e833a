package domain

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
)

// Frame is the per-day metrics table for one region. Dates are strictly
// increasing and every column may contain nulls.
type Frame struct {
	dates   []civil.Date
	columns [metricFieldCount][]float64
}

// NewFrame lays out the given columns on index. Missing columns are null and
// every column is aligned onto index by date.
func NewFrame(index []civil.Date, columns map[MetricField]Series) Frame {
	f := Frame{dates: index}
	for m := range f.columns {
		col, ok := columns[MetricField(m)]
		if !ok {
			f.columns[m] = NullSeries(index).values
			continue
		}
		f.columns[m] = col.Reindex(index).values
	}
	return f
}

func (f Frame) Dates() []civil.Date { return f.dates }
func (f Frame) Len() int { return len(f.dates) }
func (f Frame) Empty() bool { return len(f.dates) == 0 }

// LastDate returns the frame's last date. The frame must not be empty.
func (f Frame) LastDate() civil.Date { return f.dates[len(f.dates)-1] }

// Column returns the metric column as a Series.
func (f Frame) Column(m MetricField) Series {
	return Series{index: f.dates, values: f.columns[m]}
}

// Value returns the metric at row i, and false when it is null.
func (f Frame) Value(m MetricField, i int) (float64, bool) {
	v := f.columns[m][i]
	return v, IsValid(v)
}

// MarshalJSON encodes the frame as one object per date with null gaps.
func (f Frame) MarshalJSON() ([]byte, error) {
	rows := make([]map[string]any, len(f.dates))
	for i, d := range f.dates {
		row := make(map[string]any, int(metricFieldCount)+1)
		row["date"] = d.String()
		for m := range f.columns {
			if v, ok := f.Value(MetricField(m), i); ok {
				row[metricFieldNames[m]] = v
			} else {
				row[metricFieldNames[m]] = nil
			}
		}
		rows[i] = row
	}
	return json.Marshal(rows)
}

// UnmarshalJSON decodes the row layout produced by MarshalJSON.
func (f *Frame) UnmarshalJSON(b []byte) error {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(b, &rows); err != nil {
		return err
	}

	out := Frame{dates: make([]civil.Date, len(rows))}
	for m := range out.columns {
		out.columns[m] = make([]float64, len(rows))
	}
	for i, row := range rows {
		var d civil.Date
		if err := json.Unmarshal(row["date"], &d); err != nil {
			return fmt.Errorf("decode frame row %d date: %w", i, err)
		}
		if i > 0 && !out.dates[i-1].Before(d) {
			return fmt.Errorf("%w: %s", ErrUnsortedDates, d)
		}
		out.dates[i] = d
		for m := range out.columns {
			var v *float64
			if raw, ok := row[metricFieldNames[m]]; ok {
				if err := json.Unmarshal(raw, &v); err != nil {
					return fmt.Errorf("decode frame row %d %s: %w", i, metricFieldNames[m], err)
				}
			}
			if v == nil {
				out.columns[m][i] = Null
			} else {
				out.columns[m][i] = *v
			}
		}
	}
	*f = out
	return nil
}
