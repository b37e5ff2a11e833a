package domain

import "fmt"

// MetricField is one of the derived metric columns.
type MetricField int

const (
	MetricCaseDensity MetricField = iota
	MetricWeeklyCaseDensity
	MetricTestPositivity
	MetricContactTracerCapacity
	MetricInfectionRate
	MetricInfectionRateCI90
	MetricICUCapacity
	MetricBedsWithCovidPatients
	MetricWeeklyAdmissionsPer100k
	MetricVaccinationsInitiated
	MetricVaccinationsCompleted
	MetricVaccinationsAdditionalDose

	metricFieldCount
)

var metricFieldNames = [metricFieldCount]string{
	MetricCaseDensity:                "caseDensity",
	MetricWeeklyCaseDensity:          "weeklyNewCasesPer100k",
	MetricTestPositivity:             "testPositivityRatio",
	MetricContactTracerCapacity:      "contactTracerCapacityRatio",
	MetricInfectionRate:              "infectionRate",
	MetricInfectionRateCI90:          "infectionRateCI90",
	MetricICUCapacity:                "icuCapacityRatio",
	MetricBedsWithCovidPatients:      "bedsWithCovidPatientsRatio",
	MetricWeeklyAdmissionsPer100k:    "weeklyCovidAdmissionsPer100k",
	MetricVaccinationsInitiated:      "vaccinationsInitiatedRatio",
	MetricVaccinationsCompleted:      "vaccinationsCompletedRatio",
	MetricVaccinationsAdditionalDose: "vaccinationsAdditionalDoseRatio",
}

// MetricFields lists every metric column in export order.
func MetricFields() []MetricField {
	out := make([]MetricField, metricFieldCount)
	for i := range out {
		out[i] = MetricField(i)
	}
	return out
}

func (m MetricField) String() string {
	if m < 0 || m >= metricFieldCount {
		return fmt.Sprintf("MetricField(%d)", int(m))
	}
	return metricFieldNames[m]
}

// ParseMetricField returns the field with the given API name.
func ParseMetricField(name string) (MetricField, error) {
	for i, n := range metricFieldNames {
		if n == name {
			return MetricField(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric field %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (m MetricField) MarshalText() ([]byte, error) {
	if m < 0 || m >= metricFieldCount {
		return nil, fmt.Errorf("unknown metric field %d", int(m))
	}
	return []byte(metricFieldNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MetricField) UnmarshalText(b []byte) error {
	f, err := ParseMetricField(string(b))
	if err != nil {
		return err
	}
	*m = f
	return nil
}

// infectionRateFamily reports whether m is handled by the truncated
// infection-rate rule.
func (m MetricField) infectionRateFamily() bool {
	return m == MetricInfectionRate || m == MetricInfectionRateCI90
}
