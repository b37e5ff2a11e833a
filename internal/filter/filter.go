package filter

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

// Config is the YAML document holding the ordered list of rules.
type Config struct {
	Filters []Rule `yaml:"filters"`
}

// Parse decodes and validates a YAML filter config.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse filter config: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML filter config from path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read filter config: %w", err)
	}
	return Parse(b)
}

// Filter applies a Config's rules in order.
type Filter struct {
	rules  []Rule
	logger *slog.Logger
}

// New returns a Filter for cfg.
func New(cfg Config, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{rules: cfg.Filters, logger: logger}
}

// Rules returns the configured rules.
func (f *Filter) Rules() []Rule { return f.rules }

// Apply runs every rule over ts. A nil Filter returns ts unchanged.
func (f *Filter) Apply(ts domain.RegionTimeseries) (domain.RegionTimeseries, error) {
	if f == nil {
		return ts, nil
	}
	for i, rule := range f.rules {
		before := len(ts.Tags())
		out, err := rule.Apply(ts)
		if err != nil {
			return ts, fmt.Errorf("apply filter %d to region %s: %w", i, ts.Region().FIPS, err)
		}
		if len(out.Tags()) > before {
			f.logger.Debug("filter applied",
				"region", ts.Region().FIPS,
				"filter", i,
				"note", rule.InternalNote,
			)
		}
		ts = out
	}
	return ts, nil
}

// ReportUnmatched logs every rule that matches none of regions.
func (f *Filter) ReportUnmatched(regions []domain.Region) {
	if f == nil {
		return
	}
	for i, rule := range f.rules {
		matched := false
		for _, r := range regions {
			if rule.Matches(r) {
				matched = true
				break
			}
		}
		if !matched {
			f.logger.Info("no locations matched", "filter", i, "regions", rule.RegionsIncluded)
		}
	}
}
