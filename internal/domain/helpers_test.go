package domain

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day0 = civil.Date{Year: 2021, Month: 3, Day: 1}
	nan  = math.NaN()
)

func dates(n int) []civil.Date {
	out := make([]civil.Date, n)
	for i := range out {
		out[i] = day0.AddDays(i)
	}
	return out
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

// assertValues compares series values treating NaN as equal to NaN.
func assertValues(t *testing.T, expected []float64, s Series) {
	t.Helper()
	require.Equal(t, len(expected), s.Len())
	for i, want := range expected {
		got := s.Value(i)
		if math.IsNaN(want) {
			assert.Truef(t, math.IsNaN(got), "index %d: expected null, got %v", i, got)
			continue
		}
		assert.InDeltaf(t, want, got, 1e-9, "index %d", i)
	}
}

func newTimeseries(t *testing.T, p RegionTimeseriesParams) RegionTimeseries {
	t.Helper()
	if p.Population == 0 {
		p.Population = 100_000
	}
	if p.Region.Level == "" {
		p.Region = Region{FIPS: "36", State: "NY", Level: LevelState}
	}
	ts, err := NewRegionTimeseries(p)
	require.NoError(t, err)
	return ts
}
