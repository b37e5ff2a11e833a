package domain

import (
	"context"
	"log/slog"
)

// InfectionRateProvider fetches the reproduction-number estimate of a region
// from an external model.
type InfectionRateProvider interface {
	// InfectionRate returns the estimate for the region, or nil when the
	// provider has none.
	InfectionRate(ctx context.Context, region Region) (*InfectionRateEstimate, error)
}

// EnrichWithInfectionRate fills in a missing estimate from provider. If the
// input already carries an estimate, provider is nil, or the lookup fails,
// the input is returned unchanged (graceful degradation).
func EnrichWithInfectionRate(ctx context.Context, input RegionInput, provider InfectionRateProvider, logger *slog.Logger) RegionInput {
	if provider == nil || !input.Estimate.Empty() || input.Timeseries.Empty() {
		return input
	}

	region := input.Timeseries.Region()
	est, err := provider.InfectionRate(ctx, region)
	if err != nil {
		logger.Warn("infection rate lookup failed",
			"region", region.FIPS,
			"level", region.Level,
			"error", err,
		)
		return input
	}
	if est.Empty() {
		return input
	}
	input.Estimate = est
	return input
}
