package domain

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
)

// Snapshot holds the latest publishable value of each metric for a region.
type Snapshot struct {
	values                [metricFieldCount]*float64
	TestPositivityDetails TestPositivityDetails

	// Suppressed lists metrics that had data but were withheld as stale.
	Suppressed []MetricField
}

// Value returns the latest value of m, and false when it is null.
func (s *Snapshot) Value(m MetricField) (float64, bool) {
	if s == nil || s.values[m] == nil {
		return 0, false
	}
	return *s.values[m], true
}

func (s *Snapshot) set(m MetricField, v float64) {
	if !IsValid(v) {
		s.values[m] = nil
		return
	}
	s.values[m] = &v
}

// SelectLatest picks the latest value of every metric in f.
//
// A metric whose last valid date is maxLookbackDays or more before the
// frame's last date is suppressed. The infection rate and its CI are taken
// truncationDays before the last valid infection rate, since the newest
// estimates are revised heavily. Returns nil for an empty frame.
func SelectLatest(f Frame, details TestPositivityDetails, maxLookbackDays, truncationDays int) *Snapshot {
	if f.Empty() {
		return nil
	}
	snap := &Snapshot{TestPositivityDetails: details}
	latest := f.LastDate()

	for _, m := range MetricFields() {
		if m.infectionRateFamily() {
			continue
		}
		col := f.Column(m)
		last := col.LastValid()
		if last < 0 {
			continue
		}
		if stale(latest, col.Date(last), maxLookbackDays) {
			snap.Suppressed = append(snap.Suppressed, m)
			continue
		}
		snap.set(m, col.Value(last))
	}

	rate := f.Column(MetricInfectionRate)
	lastRt := rate.LastValid()
	if lastRt < 0 {
		return snap
	}
	if stale(latest, rate.Date(lastRt), maxLookbackDays) {
		snap.Suppressed = append(snap.Suppressed, MetricInfectionRate, MetricInfectionRateCI90)
		return snap
	}

	exposed := rate.Date(lastRt).AddDays(-truncationDays)
	v, ok := rate.At(exposed)
	if !ok {
		return snap
	}
	ci, _ := f.Column(MetricInfectionRateCI90).At(exposed)
	snap.set(MetricInfectionRate, v)
	snap.set(MetricInfectionRateCI90, ci)
	return snap
}

func stale(latest, last civil.Date, maxLookbackDays int) bool {
	return latest.DaysSince(last) >= maxLookbackDays
}

// MarshalJSON encodes the snapshot as an object keyed by metric name.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, int(metricFieldCount)+1)
	for m, v := range s.values {
		if v == nil {
			obj[metricFieldNames[m]] = nil
		} else {
			obj[metricFieldNames[m]] = *v
		}
	}
	obj["testPositivityRatioDetails"] = s.TestPositivityDetails
	return json.Marshal(obj)
}

// UnmarshalJSON decodes the layout produced by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	var out Snapshot
	for m := range out.values {
		raw, ok := obj[metricFieldNames[m]]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &out.values[m]); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", metricFieldNames[m], err)
		}
	}
	if raw, ok := obj["testPositivityRatioDetails"]; ok {
		if err := json.Unmarshal(raw, &out.TestPositivityDetails); err != nil {
			return fmt.Errorf("decode snapshot test positivity details: %w", err)
		}
	}
	*s = out
	return nil
}
