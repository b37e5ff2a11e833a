// Package domain derives daily public-health risk metrics for a region and
// picks the latest publishable value of each.
//
// # Inputs
//
// A [RegionTimeseries] holds the raw daily columns of exactly one region
// (new cases, contact tracers, hospital occupancy, vaccination percentages,
// and HSA-scoped variants) plus its population. Missing observations are
// NaN in memory and null on the wire. An optional [InfectionRateEstimate]
// carries an externally computed reproduction number and its upper 95%
// bound.
//
// # Metrics
//
// [Calculator.Calculate] lays twelve metrics out on one date index:
//
//	caseDensity                   smoothed new cases per 100k
//	weeklyNewCasesPer100k         caseDensity × 7
//	testPositivityRatio           passed through from upstream
//	contactTracerCapacityRatio    tracers / (smoothed cases × tracers per case)
//	infectionRate                 Rt point estimate
//	infectionRateCI90             Rt upper 95% bound − Rt
//	icuCapacityRatio              ICU occupancy / ICU beds
//	bedsWithCovidPatientsRatio    HSA source, else hospitalized / staffed beds
//	weeklyCovidAdmissionsPer100k  HSA source, else admissions per 100k
//	vaccinations*Ratio            vaccination percentage / 100
//
// Smoothing treats trailing zeros as a reporting stall until they have lasted
// StallThresholdDays, and fills the days before the first report with zero.
//
// Two metrics merge a locally computed series with an authoritative HSA
// series: once the HSA series has its first valid value it masks the
// computed one completely, see [CombineSources]. Counties use HSA-scoped
// hospital columns and the HSA population for the computed series.
//
// # Latest values
//
// [SelectLatest] takes the last valid value of each metric unless it is
// MaxLookbackDays or more older than the frame's last date. The infection
// rate is published InfectionRateTruncationDays behind its newest estimate.
//
// Rounding is applied to the frame before the latest values are taken, so
// the snapshot always matches a row of the frame.
package domain
