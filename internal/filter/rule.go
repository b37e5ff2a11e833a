// Package filter applies manually curated rules that blank out known-bad
// observations of a region and attach public disclaimers before metrics
// are computed.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
)

// ErrInvalidRule is returned when a rule cannot do anything meaningful.
var ErrInvalidRule = errors.New("invalid filter rule")

// RegionMatcher selects regions by FIPS code, state and/or level. Every
// criterion that is set must match.
type RegionMatcher struct {
	FIPS  string       `yaml:"fips,omitempty"`
	State string       `yaml:"state,omitempty"`
	Level domain.Level `yaml:"level,omitempty"`
}

// Matches reports whether r satisfies every criterion of m.
func (m RegionMatcher) Matches(r domain.Region) bool {
	if m.FIPS != "" && m.FIPS != r.FIPS {
		return false
	}
	if m.State != "" && m.State != r.State {
		return false
	}
	if m.Level != "" && m.Level != r.Level {
		return false
	}
	return true
}

func (m RegionMatcher) String() string {
	var parts []string
	if m.FIPS != "" {
		parts = append(parts, "fips="+m.FIPS)
	}
	if m.State != "" {
		parts = append(parts, "state="+m.State)
	}
	if m.Level != "" {
		parts = append(parts, "level="+string(m.Level))
	}
	return strings.Join(parts, ",")
}

func (m RegionMatcher) validate() error {
	if m.FIPS == "" && m.State == "" && m.Level == "" {
		return errors.New("region matcher has no criteria")
	}
	if m.Level != "" && !m.Level.Valid() {
		return fmt.Errorf("unknown region level %q", m.Level)
	}
	return nil
}

// UnmarshalYAML accepts either a mapping or a bare FIPS code.
func (m *RegionMatcher) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*m = RegionMatcher{FIPS: value.Value}
		return nil
	}
	type plain RegionMatcher
	return value.Decode((*plain)(m))
}

// Rule removes observations of some fields from matching regions, or only
// tags them with a public note.
type Rule struct {
	RegionsIncluded  []RegionMatcher
	RegionsExcluded  []RegionMatcher
	FieldsIncluded   []domain.Field
	StartDate        *civil.Date
	DropObservations bool
	InternalNote     string
	PublicNote       string
}

// NewRule validates r. A rule that does not drop observations must carry a
// public note and may not have a start date.
func NewRule(r Rule) (Rule, error) {
	if err := r.validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

func (r Rule) validate() error {
	if len(r.RegionsIncluded) == 0 {
		return fmt.Errorf("%w: no regions included", ErrInvalidRule)
	}
	for _, m := range append(append([]RegionMatcher(nil), r.RegionsIncluded...), r.RegionsExcluded...) {
		if err := m.validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
	}
	if len(r.FieldsIncluded) == 0 {
		return fmt.Errorf("%w: no fields included", ErrInvalidRule)
	}
	for _, f := range r.FieldsIncluded {
		if !f.Valid() {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidRule, f)
		}
	}
	if !r.DropObservations {
		if r.PublicNote == "" {
			return fmt.Errorf("%w: rule neither drops observations nor adds a public note", ErrInvalidRule)
		}
		if r.StartDate != nil {
			return fmt.Errorf("%w: start date without dropping observations", ErrInvalidRule)
		}
	}
	return nil
}

// Matches reports whether the rule applies to region.
func (r Rule) Matches(region domain.Region) bool {
	return anyMatch(r.RegionsIncluded, region) && !anyMatch(r.RegionsExcluded, region)
}

func anyMatch(matchers []RegionMatcher, region domain.Region) bool {
	for _, m := range matchers {
		if m.Matches(region) {
			return true
		}
	}
	return false
}

// Tag returns the disclaimer attached to regions the rule modifies.
func (r Rule) Tag() domain.KnownIssue {
	return domain.KnownIssue{Date: r.StartDate, Disclaimer: r.PublicNote}
}

// Apply runs the rule against ts. Dropping rules null every observation of
// the included fields on or after the start date (all of them when there is
// no start date) and tag the region only if a real value was removed.
func (r Rule) Apply(ts domain.RegionTimeseries) (domain.RegionTimeseries, error) {
	if !r.Matches(ts.Region()) {
		return ts, nil
	}

	p := ts.Params()
	if !r.DropObservations {
		p.Tags = append(p.Tags, r.Tag())
		return domain.NewRegionTimeseries(p)
	}

	dropped := false
	for _, f := range r.FieldsIncluded {
		col, ok := p.Columns[f]
		if !ok {
			continue
		}
		for i, d := range p.Dates {
			if r.StartDate != nil && d.Before(*r.StartDate) {
				continue
			}
			if domain.IsValid(col[i]) {
				dropped = true
			}
			col[i] = domain.Null
		}
	}
	if !dropped {
		return ts, nil
	}
	p.Tags = append(p.Tags, r.Tag())
	return domain.NewRegionTimeseries(p)
}

type ruleDocument struct {
	RegionsIncluded  []RegionMatcher `yaml:"regions_included"`
	RegionsExcluded  []RegionMatcher `yaml:"regions_excluded"`
	FieldsIncluded   []domain.Field  `yaml:"fields_included"`
	StartDate        string          `yaml:"start_date"`
	DropObservations *bool           `yaml:"drop_observations"`
	InternalNote     *string         `yaml:"internal_note"`
	PublicNote       string          `yaml:"public_note"`
}

// UnmarshalYAML decodes and validates a rule.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	var doc ruleDocument
	if err := value.Decode(&doc); err != nil {
		return err
	}
	if doc.DropObservations == nil {
		return fmt.Errorf("%w: line %d: drop_observations is required", ErrInvalidRule, value.Line)
	}
	if doc.InternalNote == nil {
		return fmt.Errorf("%w: line %d: internal_note is required", ErrInvalidRule, value.Line)
	}

	rule := Rule{
		RegionsIncluded:  doc.RegionsIncluded,
		RegionsExcluded:  doc.RegionsExcluded,
		FieldsIncluded:   doc.FieldsIncluded,
		DropObservations: *doc.DropObservations,
		InternalNote:     *doc.InternalNote,
		PublicNote:       doc.PublicNote,
	}
	if doc.StartDate != "" {
		d, err := civil.ParseDate(doc.StartDate)
		if err != nil {
			return fmt.Errorf("%w: line %d: start_date: %w", ErrInvalidRule, value.Line, err)
		}
		rule.StartDate = &d
	}

	validated, err := NewRule(rule)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*r = validated
	return nil
}
