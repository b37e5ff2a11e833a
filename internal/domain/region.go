package domain

import (
	"errors"
	"fmt"
	"math"

	"cloud.google.com/go/civil"
)

var (
	// ErrUnsortedDates is returned when a date index is not strictly increasing.
	ErrUnsortedDates = errors.New("dates must be strictly increasing")
	// ErrColumnLength is returned when a column is not aligned with its date index.
	ErrColumnLength = errors.New("column length does not match date index")
	// ErrPopulation is returned when the region population is not positive.
	ErrPopulation = errors.New("population must be positive")
	// ErrRegionNotFound is returned when no metrics are stored for a region.
	ErrRegionNotFound = errors.New("region not found")
)

// Level is the aggregation level of a region.
type Level string

const (
	LevelCountry Level = "country"
	LevelState   Level = "state"
	LevelCBSA    Level = "cbsa"
	LevelCounty  Level = "county"
	LevelPlace   Level = "place"
)

// Valid reports whether l is one of the known aggregation levels.
func (l Level) Valid() bool {
	switch l {
	case LevelCountry, LevelState, LevelCBSA, LevelCounty, LevelPlace:
		return true
	default:
		return false
	}
}

// Region identifies the single region a timeseries belongs to.
type Region struct {
	FIPS  string `json:"fips"`
	State string `json:"state,omitempty"`
	Level Level  `json:"level"`
}

// Field names a raw input column.
type Field string

const (
	FieldNewCases                      Field = "new_cases"
	FieldContactTracers                Field = "contact_tracers_count"
	FieldStaffedBeds                   Field = "staffed_beds"
	FieldStaffedBedsHSA                Field = "staffed_beds_hsa"
	FieldCurrentHospitalized           Field = "current_hospitalized"
	FieldCurrentHospitalizedHSA        Field = "current_hospitalized_hsa"
	FieldWeeklyAdmissions              Field = "weekly_new_hospital_admissions_covid"
	FieldWeeklyAdmissionsHSA           Field = "weekly_new_hospital_admissions_covid_hsa"
	FieldBedsWithCovidRatioHSA         Field = "beds_with_covid_patients_ratio_hsa"
	FieldWeeklyAdmissionsPer100kHSA    Field = "weekly_new_hospital_admissions_covid_per_100k_hsa"
	FieldTestPositivity                Field = "test_positivity"
	FieldICUBeds                       Field = "icu_beds"
	FieldCurrentICUTotal               Field = "current_icu_total"
	FieldVaccinationsInitiatedPct      Field = "vaccinations_initiated_pct"
	FieldVaccinationsCompletedPct      Field = "vaccinations_completed_pct"
	FieldVaccinationsAdditionalDosePct Field = "vaccinations_additional_dose_pct"
)

// Fields lists every known input column.
var Fields = []Field{
	FieldNewCases,
	FieldContactTracers,
	FieldStaffedBeds,
	FieldStaffedBedsHSA,
	FieldCurrentHospitalized,
	FieldCurrentHospitalizedHSA,
	FieldWeeklyAdmissions,
	FieldWeeklyAdmissionsHSA,
	FieldBedsWithCovidRatioHSA,
	FieldWeeklyAdmissionsPer100kHSA,
	FieldTestPositivity,
	FieldICUBeds,
	FieldCurrentICUTotal,
	FieldVaccinationsInitiatedPct,
	FieldVaccinationsCompletedPct,
	FieldVaccinationsAdditionalDosePct,
}

// Valid reports whether f is a known input column.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// KnownIssue is a public disclaimer attached to a region by a filter rule.
type KnownIssue struct {
	Date       *civil.Date `json:"date,omitempty"`
	Disclaimer string      `json:"disclaimer"`
}

// RegionTimeseries is the immutable raw input for one region.
type RegionTimeseries struct {
	region        Region
	dates         []civil.Date
	columns       map[Field][]float64
	population    float64
	hsaPopulation *float64
	provenance    map[Field][]string
	tags          []KnownIssue
}

// RegionTimeseriesParams carries the raw inputs for NewRegionTimeseries.
// Columns hold NaN for missing observations.
type RegionTimeseriesParams struct {
	Region        Region
	Dates         []civil.Date
	Columns       map[Field][]float64
	Population    float64
	HSAPopulation *float64
	Provenance    map[Field][]string
	Tags          []KnownIssue
}

// NewRegionTimeseries validates p and returns an immutable RegionTimeseries.
func NewRegionTimeseries(p RegionTimeseriesParams) (RegionTimeseries, error) {
	for i := 1; i < len(p.Dates); i++ {
		if !p.Dates[i-1].Before(p.Dates[i]) {
			return RegionTimeseries{}, fmt.Errorf("%w: %s after %s", ErrUnsortedDates, p.Dates[i], p.Dates[i-1])
		}
	}
	if len(p.Dates) > 0 && !(p.Population > 0) {
		return RegionTimeseries{}, fmt.Errorf("%w: region %s", ErrPopulation, p.Region.FIPS)
	}

	dates := make([]civil.Date, len(p.Dates))
	copy(dates, p.Dates)

	columns := make(map[Field][]float64, len(p.Columns))
	for field, values := range p.Columns {
		if len(values) != len(dates) {
			return RegionTimeseries{}, fmt.Errorf("%w: %s has %d values for %d dates", ErrColumnLength, field, len(values), len(dates))
		}
		c := make([]float64, len(values))
		for i, v := range values {
			if math.IsInf(v, 0) {
				v = Null
			}
			c[i] = v
		}
		columns[field] = c
	}

	provenance := make(map[Field][]string, len(p.Provenance))
	for field, labels := range p.Provenance {
		provenance[field] = append([]string(nil), labels...)
	}

	var hsa *float64
	if p.HSAPopulation != nil {
		v := *p.HSAPopulation
		hsa = &v
	}

	return RegionTimeseries{
		region:        p.Region,
		dates:         dates,
		columns:       columns,
		population:    p.Population,
		hsaPopulation: hsa,
		provenance:    provenance,
		tags:          append([]KnownIssue(nil), p.Tags...),
	}, nil
}

func (ts RegionTimeseries) Region() Region { return ts.region }
func (ts RegionTimeseries) Dates() []civil.Date { return ts.dates }
func (ts RegionTimeseries) Population() float64 { return ts.population }
func (ts RegionTimeseries) Tags() []KnownIssue { return ts.tags }
func (ts RegionTimeseries) Empty() bool { return len(ts.dates) == 0 }

// HSAPopulation returns the healthcare-service-area population, if known.
func (ts RegionTimeseries) HSAPopulation() (float64, bool) {
	if ts.hsaPopulation == nil {
		return 0, false
	}
	return *ts.hsaPopulation, true
}

// Has reports whether the field column is present at all.
func (ts RegionTimeseries) Has(f Field) bool {
	_, ok := ts.columns[f]
	return ok
}

// Series returns the column for f, or an all-null Series when absent.
func (ts RegionTimeseries) Series(f Field) Series {
	return NewSeries(ts.dates, ts.columns[f])
}

// Provenance returns the source labels recorded for f.
func (ts RegionTimeseries) Provenance(f Field) []string {
	return ts.provenance[f]
}

// Params returns a copy of the inputs, for building a modified timeseries.
func (ts RegionTimeseries) Params() RegionTimeseriesParams {
	columns := make(map[Field][]float64, len(ts.columns))
	for f, v := range ts.columns {
		columns[f] = append([]float64(nil), v...)
	}
	provenance := make(map[Field][]string, len(ts.provenance))
	for f, v := range ts.provenance {
		provenance[f] = append([]string(nil), v...)
	}
	return RegionTimeseriesParams{
		Region:        ts.region,
		Dates:         append([]civil.Date(nil), ts.dates...),
		Columns:       columns,
		Population:    ts.population,
		HSAPopulation: ts.hsaPopulation,
		Provenance:    provenance,
		Tags:          append([]KnownIssue(nil), ts.tags...),
	}
}

// InfectionRateEstimate is the externally computed reproduction-number
// estimate for a region: a point estimate and its upper 95% bound.
type InfectionRateEstimate struct {
	Dates  []civil.Date
	Rt     []float64
	RtCI95 []float64
}

// Empty reports whether the estimate carries no observations.
func (e *InfectionRateEstimate) Empty() bool {
	return e == nil || len(e.Dates) == 0
}
