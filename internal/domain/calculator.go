package domain

import (
	"fmt"
	"log/slog"
)

// Calculator derives the metrics frame and latest snapshot of a region.
// It holds no per-region state and is safe for concurrent use.
type Calculator struct {
	cfg    Config
	spread SpreadFunc
	icu    ICUCapacityFunc
	logger *slog.Logger
}

// Option customizes a Calculator.
type Option func(*Calculator)

// WithSpreadFunc replaces the backfill redistribution step.
func WithSpreadFunc(fn SpreadFunc) Option {
	return func(c *Calculator) { c.spread = fn }
}

// WithICUCapacityFunc replaces the ICU capacity ratio calculation.
func WithICUCapacityFunc(fn ICUCapacityFunc) Option {
	return func(c *Calculator) { c.icu = fn }
}

// NewCalculator validates cfg and returns a Calculator.
func NewCalculator(cfg Config, logger *slog.Logger, opts ...Option) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}
	if cfg.Rounding == nil {
		cfg.Rounding = DefaultRoundingPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Calculator{
		cfg:    cfg,
		spread: SpreadAfterStall,
		icu:    ICUCapacityRatio,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the calculator's parameters.
func (c *Calculator) Config() Config { return c.cfg }

// Calculate derives the rounded metrics frame for ts and its latest
// snapshot. est may be nil. An empty timeseries yields an empty frame and a
// nil snapshot.
func (c *Calculator) Calculate(ts RegionTimeseries, est *InfectionRateEstimate) (Frame, *Snapshot) {
	if ts.Empty() {
		return Frame{}, nil
	}

	if !est.Empty() && estimateIndex(est) == nil {
		c.logger.Warn("ignoring infection rate estimate with unordered dates", "region", ts.Region().FIPS)
		est = nil
	}
	index := unionIndex(ts.Dates(), estimateIndex(est))

	newCases := ts.Series(FieldNewCases)
	caseDensity := CaseDensity(newCases, ts.Population(), c.cfg, c.spread)
	testPositivity, details := CopyTestPositivity(ts, c.logger)
	infectionRate, infectionRateCI90 := AlignInfectionRate(index, est)

	frame := NewFrame(index, map[MetricField]Series{
		MetricCaseDensity:                caseDensity,
		MetricWeeklyCaseDensity:          caseDensity.Scale(7),
		MetricTestPositivity:             testPositivity,
		MetricContactTracerCapacity:      ContactTracerCapacity(newCases, ts.Series(FieldContactTracers), c.cfg),
		MetricInfectionRate:              infectionRate,
		MetricInfectionRateCI90:          infectionRateCI90,
		MetricICUCapacity:                c.icu(ts),
		MetricBedsWithCovidPatients:      BedsWithCovidRatio(ts),
		MetricWeeklyAdmissionsPer100k:    WeeklyAdmissionsPer100k(ts, c.cfg),
		MetricVaccinationsInitiated:      VaccinationRatio(ts.Series(FieldVaccinationsInitiatedPct)),
		MetricVaccinationsCompleted:      VaccinationRatio(ts.Series(FieldVaccinationsCompletedPct)),
		MetricVaccinationsAdditionalDose: VaccinationRatio(ts.Series(FieldVaccinationsAdditionalDosePct)),
	})
	frame = c.cfg.Rounding.Apply(frame)

	snapshot := SelectLatest(frame, details, c.cfg.MaxLookbackDays, c.cfg.InfectionRateTruncationDays)
	return frame, snapshot
}
