package domain

import (
	"log/slog"
	"sort"
)

// TestPositivityMethod labels how a region's test positivity was produced.
type TestPositivityMethod string

const (
	MethodCDCTesting    TestPositivityMethod = "CDCTesting"
	MethodHHSTesting    TestPositivityMethod = "HHSTesting"
	MethodValorum       TestPositivityMethod = "Valorum"
	MethodCovidTracking TestPositivityMethod = "covidTracking"
	MethodOther         TestPositivityMethod = "other"
)

// TestPositivityDetails rides alongside the latest snapshot.
type TestPositivityDetails struct {
	Source TestPositivityMethod `json:"source"`
}

// LookupTestPositivityMethod maps a provenance label to its method.
func LookupTestPositivityMethod(label string) (TestPositivityMethod, bool) {
	switch m := TestPositivityMethod(label); m {
	case MethodCDCTesting, MethodHHSTesting, MethodValorum, MethodCovidTracking, MethodOther:
		return m, true
	default:
		return "", false
	}
}

// CopyTestPositivity passes the upstream test positivity ratio through and
// resolves its method from the recorded provenance. Anything other than a
// single known label falls back to MethodOther; the fallback is logged when
// provenance was present.
func CopyTestPositivity(ts RegionTimeseries, logger *slog.Logger) (Series, TestPositivityDetails) {
	labels := distinct(ts.Provenance(FieldTestPositivity))

	method := MethodOther
	resolved := false
	if len(labels) == 1 {
		method, resolved = LookupTestPositivityMethod(labels[0])
		if !resolved {
			method = MethodOther
		}
	}
	if !resolved && len(labels) > 0 {
		logger.Warn("unable to find test positivity method",
			"region", ts.Region().FIPS,
			"provenance", labels,
		)
	}

	return ts.Series(FieldTestPositivity), TestPositivityDetails{Source: method}
}

func distinct(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
