package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimTrailingZeros(t *testing.T) {
	t.Run("short zero run is a reporting lag", func(t *testing.T) {
		s := NewSeries(dates(5), []float64{5, 3, 0, 0, 0})
		assertValues(t, []float64{5, 3, nan, nan, nan}, trimTrailingZeros(s, 14))
	})

	t.Run("zero run reaching the threshold is kept", func(t *testing.T) {
		values := append([]float64{5, 3}, repeat(0, 14)...)
		s := NewSeries(dates(len(values)), values)
		assertValues(t, values, trimTrailingZeros(s, 14))
	})

	t.Run("one day short of the threshold is trimmed", func(t *testing.T) {
		values := append([]float64{5, 3}, repeat(0, 13)...)
		s := NewSeries(dates(len(values)), values)
		out := trimTrailingZeros(s, 14)
		assert.Equal(t, 1, out.LastValid())
	})

	t.Run("trailing nulls after zeros count from the last valid date", func(t *testing.T) {
		s := NewSeries(dates(6), []float64{5, 0, 0, nan, nan, nan})
		assertValues(t, []float64{5, nan, nan, nan, nan, nan}, trimTrailingZeros(s, 14))
	})

	t.Run("all zeros unchanged", func(t *testing.T) {
		s := NewSeries(dates(4), repeat(0, 4))
		assertValues(t, repeat(0, 4), trimTrailingZeros(s, 14))
	})
}

func TestSmoothDailyCases(t *testing.T) {
	t.Run("no valid values returns input", func(t *testing.T) {
		s := NullSeries(dates(5))
		assertValues(t, repeat(nan, 5), SmoothDailyCases(s, 3, 14))
	})

	t.Run("leading days are zero filled", func(t *testing.T) {
		s := NewSeries(dates(5), []float64{nan, nan, 3, 6, 9})
		assertValues(t, []float64{nan, nan, 1, 3, 6}, SmoothDailyCases(s, 3, 14))
	})

	t.Run("trailing stall becomes null", func(t *testing.T) {
		s := NewSeries(dates(6), []float64{3, 3, 3, 3, 0, 0})
		assertValues(t, []float64{nan, nan, 3, 3, nan, nan}, SmoothDailyCases(s, 3, 14))
	})

	t.Run("null inside window propagates", func(t *testing.T) {
		s := NewSeries(dates(6), []float64{3, 3, nan, 3, 3, 3})
		assertValues(t, []float64{nan, nan, nan, nan, nan, 3}, SmoothDailyCases(s, 3, 14))
	})

	t.Run("input is not modified", func(t *testing.T) {
		s := NewSeries(dates(4), []float64{nan, 2, 0, 0})
		SmoothDailyCases(s, 2, 14)
		assertValues(t, []float64{nan, 2, 0, 0}, s)
	})
}

func TestSpreadAfterStall(t *testing.T) {
	tests := []struct {
		name     string
		in       []float64
		expected []float64
	}{
		{"spreads over stalled days", []float64{1, 0, 0, 6}, []float64{1, 2, 2, 2}},
		{"leading zeros untouched", []float64{0, 0, 4, 4}, []float64{0, 0, 4, 4}},
		{"trailing zeros untouched", []float64{4, 0, 0}, []float64{4, 0, 0}},
		{"null breaks the run", []float64{2, 0, nan, 0, 4}, []float64{2, 0, nan, 2, 2}},
		{"no zeros", []float64{1, 2, 3}, []float64{1, 2, 3}},
		{"run one day short of the limit spreads", append(append([]float64{10}, repeat(0, 13)...), 28), append([]float64{10}, repeat(2, 14)...)},
		{"run reaching the limit is genuine zeros", append(append([]float64{10}, repeat(0, 14)...), 31), append(append([]float64{10}, repeat(0, 14)...), 31)},
		{"month of zeros is genuine zeros", append(append([]float64{10}, repeat(0, 30)...), 31), append(append([]float64{10}, repeat(0, 30)...), 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSeries(dates(len(tt.in)), tt.in)
			assertValues(t, tt.expected, SpreadAfterStall(s, 14))
		})
	}
}
