package domain

import "cloud.google.com/go/civil"

// AlignInfectionRate exposes an external reproduction-number estimate on the
// given index. The CI90 column is the upper 95% bound minus the point
// estimate. An absent or unordered estimate yields two all-null series.
func AlignInfectionRate(index []civil.Date, est *InfectionRateEstimate) (rate, ci90 Series) {
	dates := estimateIndex(est)
	if dates == nil {
		return NullSeries(index), NullSeries(index)
	}
	point := NewSeries(dates, est.Rt)
	upper := NewSeries(dates, est.RtCI95)
	return point.Reindex(index), upper.Sub(point).Reindex(index)
}

// estimateIndex returns the estimate's dates when they are strictly
// increasing, and nil otherwise.
func estimateIndex(est *InfectionRateEstimate) []civil.Date {
	if est.Empty() {
		return nil
	}
	for i := 1; i < len(est.Dates); i++ {
		if !est.Dates[i-1].Before(est.Dates[i]) {
			return nil
		}
	}
	return est.Dates
}
