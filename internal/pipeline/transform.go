package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
	"github.com/couchcryptid/region-metrics-etl/internal/filter"
	"github.com/couchcryptid/region-metrics-etl/internal/observability"
)

// MetricsTransformer implements Transformer: it parses a region message,
// applies the manual filters, fills in a missing infection rate estimate and
// runs the calculator.
type MetricsTransformer struct {
	calc     *domain.Calculator
	provider domain.InfectionRateProvider
	filter   *filter.Filter
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTransformer creates a MetricsTransformer. Pass a nil provider to disable
// infection rate enrichment and a nil filter to skip manual filtering.
func NewTransformer(calc *domain.Calculator, provider domain.InfectionRateProvider, f *filter.Filter, metrics *observability.Metrics, logger *slog.Logger) *MetricsTransformer {
	return &MetricsTransformer{
		calc:     calc,
		provider: provider,
		filter:   f,
		metrics:  metrics,
		logger:   logger,
	}
}

func (t *MetricsTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.RegionMetrics, error) {
	input, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.RegionMetrics{}, err
	}

	ts, err := t.filter.Apply(input.Timeseries)
	if err != nil {
		return domain.RegionMetrics{}, fmt.Errorf("filter region: %w", err)
	}
	input.Timeseries = ts

	input = domain.EnrichWithInfectionRate(ctx, input, t.provider, t.logger)
	result := domain.ComputeRegionMetrics(t.calc, input)
	t.record(input.Timeseries, result)

	t.logger.Debug("region computed",
		"region", result.Region.FIPS,
		"level", result.Region.Level,
		"days", result.Metrics.Len(),
		"run_id", result.RunID,
	)
	return result, nil
}

func (t *MetricsTransformer) record(ts domain.RegionTimeseries, result domain.RegionMetrics) {
	t.metrics.RegionsComputed.WithLabelValues(string(result.Region.Level)).Inc()
	if result.Latest == nil {
		return
	}
	t.metrics.SnapshotsEmitted.Inc()
	for _, m := range result.Latest.Suppressed {
		t.metrics.StaleMetrics.WithLabelValues(m.String()).Inc()
	}
	if fellBack(ts.Provenance(domain.FieldTestPositivity), result.Latest.TestPositivityDetails.Source) {
		t.metrics.ProvenanceFallbacks.Inc()
	}
}

// fellBack reports whether the method resolved to other even though the
// provenance named something else.
func fellBack(labels []string, source domain.TestPositivityMethod) bool {
	if source != domain.MethodOther {
		return false
	}
	for _, l := range labels {
		if l != string(domain.MethodOther) {
			return true
		}
	}
	return false
}
