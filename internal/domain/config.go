package domain

import (
	"errors"
	"fmt"
)

// Config holds the tunable parameters of the metrics calculation.
type Config struct {
	// SmoothingWindow is the rolling-average window in days.
	SmoothingWindow int
	// StallThresholdDays is how long trailing zeros must last before they
	// count as real zero activity.
	StallThresholdDays int
	// TracersPerCase is the number of contact tracers needed per daily case.
	TracersPerCase float64
	// NormalizeBy is the population denominator for per-capita metrics.
	NormalizeBy float64
	// MaxLookbackDays is the staleness window of the latest snapshot.
	MaxLookbackDays int
	// InfectionRateTruncationDays delays the published infection rate.
	InfectionRateTruncationDays int
	// Rounding is the per-metric published precision.
	Rounding RoundingPolicy
}

// DefaultConfig returns the standard calculation parameters.
func DefaultConfig() Config {
	return Config{
		SmoothingWindow:    7,
		StallThresholdDays: 14,
		// Roughly 5 tracers are needed to trace a case within 48h.
		TracersPerCase: 5,
		NormalizeBy:    100_000,
		// Testing data can lag by more than a week.
		MaxLookbackDays:             15,
		InfectionRateTruncationDays: 7,
		Rounding:                    DefaultRoundingPolicy(),
	}
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	var errs []error
	if c.SmoothingWindow < 1 {
		errs = append(errs, fmt.Errorf("smoothing window must be at least 1, got %d", c.SmoothingWindow))
	}
	if c.StallThresholdDays < 1 {
		errs = append(errs, fmt.Errorf("stall threshold must be at least 1 day, got %d", c.StallThresholdDays))
	}
	if !(c.TracersPerCase > 0) {
		errs = append(errs, fmt.Errorf("tracers per case must be positive, got %g", c.TracersPerCase))
	}
	if !(c.NormalizeBy > 0) {
		errs = append(errs, fmt.Errorf("normalize-by must be positive, got %g", c.NormalizeBy))
	}
	if c.MaxLookbackDays < 1 {
		errs = append(errs, fmt.Errorf("max lookback must be at least 1 day, got %d", c.MaxLookbackDays))
	}
	if c.InfectionRateTruncationDays < 0 {
		errs = append(errs, fmt.Errorf("infection rate truncation must not be negative, got %d", c.InfectionRateTruncationDays))
	}
	return errors.Join(errs...)
}
