package domain

// CombineSources merges a locally computed series with an authoritative one.
// From the first valid authoritative date onward the authoritative series
// wins outright, nulls included; before it the computed series is used.
// When authoritative is nil the computed series is used for every date.
func CombineSources(computed Series, authoritative *Series) Series {
	if authoritative == nil {
		return computed
	}
	start := authoritative.FirstValid()
	if start < 0 {
		return computed
	}
	cutoff := authoritative.Date(start)

	out := make([]float64, computed.Len())
	for i, d := range computed.index {
		if d.Before(cutoff) {
			out[i] = computed.values[i]
			continue
		}
		v, _ := authoritative.At(d)
		out[i] = v
	}
	return Series{index: computed.index, values: out}
}

// BedsWithCovidRatio returns the share of staffed beds occupied by covid
// patients. Counties use their HSA's hospital columns.
func BedsWithCovidRatio(ts RegionTimeseries) Series {
	beds, hospitalized := FieldStaffedBeds, FieldCurrentHospitalized
	if ts.Region().Level == LevelCounty {
		beds, hospitalized = FieldStaffedBedsHSA, FieldCurrentHospitalizedHSA
	}
	computed := ts.Series(hospitalized).Div(ts.Series(beds))
	return CombineSources(computed, authoritativeSeries(ts, FieldBedsWithCovidRatioHSA))
}

// WeeklyAdmissionsPer100k returns weekly covid admissions per normalizeBy
// people. Counties use HSA admissions over HSA population; a county with no
// HSA population only reports the authoritative source.
func WeeklyAdmissionsPer100k(ts RegionTimeseries, cfg Config) Series {
	var computed Series
	if ts.Region().Level == LevelCounty {
		if hsaPopulation, ok := ts.HSAPopulation(); ok {
			computed = ts.Series(FieldWeeklyAdmissionsHSA).Scale(1 / (hsaPopulation / cfg.NormalizeBy))
		} else {
			computed = NullSeries(ts.Dates())
		}
	} else {
		computed = ts.Series(FieldWeeklyAdmissions).Scale(1 / (ts.Population() / cfg.NormalizeBy))
	}
	return CombineSources(computed, authoritativeSeries(ts, FieldWeeklyAdmissionsPer100kHSA))
}

func authoritativeSeries(ts RegionTimeseries, f Field) *Series {
	if !ts.Has(f) {
		return nil
	}
	s := ts.Series(f)
	return &s
}
