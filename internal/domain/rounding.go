package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundingPolicy maps each metric to the number of decimal places it is
// published with.
type RoundingPolicy map[MetricField]int32

// DefaultRoundingPolicy returns the published precision of every metric.
// Ratios later shown as percentages keep two extra digits.
func DefaultRoundingPolicy() RoundingPolicy {
	return RoundingPolicy{
		MetricCaseDensity:                1,
		MetricWeeklyCaseDensity:          1,
		MetricTestPositivity:             3,
		MetricContactTracerCapacity:      2,
		MetricInfectionRate:              2,
		MetricInfectionRateCI90:          2,
		MetricICUCapacity:                2,
		MetricBedsWithCovidPatients:      2,
		MetricWeeklyAdmissionsPer100k:    1,
		MetricVaccinationsInitiated:      3,
		MetricVaccinationsCompleted:      3,
		MetricVaccinationsAdditionalDose: 3,
	}
}

// Round rounds v to the precision of m, half to even. The float is scaled
// by 10^places before rounding, so ties are decided on the scaled binary
// value: 0.575 rounds to 0.57 and 8.345 to 8.35. Fields without a policy
// entry and null values are returned unchanged.
func (p RoundingPolicy) Round(m MetricField, v float64) float64 {
	places, ok := p[m]
	if !ok || !IsValid(v) {
		return v
	}
	scaled := decimal.NewFromFloat(v * math.Pow10(int(places)))
	rounded, _ := scaled.RoundBank(0).Shift(-places).Float64()
	return rounded
}

// Apply returns a copy of f with every column rounded.
func (p RoundingPolicy) Apply(f Frame) Frame {
	out := Frame{dates: f.dates}
	for m := range out.columns {
		col := f.columns[m]
		rounded := make([]float64, len(col))
		for i, v := range col {
			rounded[i] = p.Round(MetricField(m), v)
		}
		out.columns[m] = rounded
	}
	return out
}
