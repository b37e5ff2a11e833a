package domain

// ICUCapacityFunc computes the ICU capacity ratio from a region's hospital
// columns. The default is ICUCapacityRatio.
type ICUCapacityFunc func(RegionTimeseries) Series

// CaseDensity returns smoothed daily new cases per normalizeBy people.
// Population must be positive.
func CaseDensity(newCases Series, population float64, cfg Config, spread SpreadFunc) Series {
	if spread == nil {
		spread = SpreadAfterStall
	}
	smoothed := SmoothDailyCases(spread(newCases, cfg.StallThresholdDays), cfg.SmoothingWindow, cfg.StallThresholdDays)
	return smoothed.Scale(1 / (population / cfg.NormalizeBy))
}

// ContactTracerCapacity returns the ratio of hired tracers to the tracers
// needed for the smoothed daily case load. Days with zero smoothed cases are
// null.
func ContactTracerCapacity(newCases, tracers Series, cfg Config) Series {
	smoothed := SmoothDailyCases(newCases, cfg.SmoothingWindow, cfg.StallThresholdDays)
	return tracers.Div(smoothed.Scale(cfg.TracersPerCase))
}

// VaccinationRatio converts a percentage column into a 0-1 ratio.
func VaccinationRatio(pct Series) Series {
	return pct.Scale(1 / 100.0)
}

// ICUCapacityRatio is current ICU occupancy over ICU beds.
func ICUCapacityRatio(ts RegionTimeseries) Series {
	return ts.Series(FieldCurrentICUTotal).Div(ts.Series(FieldICUBeds))
}
