package domain

import (
	"math"

	"cloud.google.com/go/civil"
)

// Null is the in-memory representation of a missing observation.
var Null = math.NaN()

// IsValid reports whether v is a real observation (not null, not infinite).
func IsValid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Series is a date-indexed sequence of nullable values. The index is shared
// and never mutated; operations return new Series.
type Series struct {
	index  []civil.Date
	values []float64
}

// NewSeries pairs values with an index. Values are copied.
func NewSeries(index []civil.Date, values []float64) Series {
	v := make([]float64, len(index))
	for i := range v {
		if i < len(values) {
			v[i] = values[i]
		} else {
			v[i] = Null
		}
	}
	return Series{index: index, values: v}
}

// NullSeries returns a Series with every value null.
func NullSeries(index []civil.Date) Series {
	return NewSeries(index, nil)
}

func (s Series) Len() int { return len(s.index) }
func (s Series) Date(i int) civil.Date { return s.index[i] }
func (s Series) Value(i int) float64 { return s.values[i] }
func (s Series) Index() []civil.Date { return s.index }

// Values returns a copy of the underlying values.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// FirstValid returns the position of the first valid value, or -1.
func (s Series) FirstValid() int {
	for i, v := range s.values {
		if IsValid(v) {
			return i
		}
	}
	return -1
}

// LastValid returns the position of the last valid value, or -1.
func (s Series) LastValid() int {
	for i := len(s.values) - 1; i >= 0; i-- {
		if IsValid(s.values[i]) {
			return i
		}
	}
	return -1
}

// At returns the value at date d and whether d is in the index.
func (s Series) At(d civil.Date) (float64, bool) {
	i := indexOf(s.index, d)
	if i < 0 {
		return Null, false
	}
	return s.values[i], true
}

// Map applies fn to every valid value; nulls stay null.
func (s Series) Map(fn func(float64) float64) Series {
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		if !IsValid(v) {
			out[i] = Null
			continue
		}
		out[i] = normalize(fn(v))
	}
	return Series{index: s.index, values: out}
}

// Scale multiplies every value by k.
func (s Series) Scale(k float64) Series {
	return s.Map(func(v float64) float64 { return v * k })
}

// Div divides s by other position by position. Both series must share the
// same index. A null operand yields null and so does an infinite quotient.
func (s Series) Div(other Series) Series {
	return s.zip(other, func(a, b float64) float64 { return a / b })
}

// Sub subtracts other from s position by position with the same null rules
// as Div.
func (s Series) Sub(other Series) Series {
	return s.zip(other, func(a, b float64) float64 { return a - b })
}

func (s Series) zip(other Series, fn func(a, b float64) float64) Series {
	out := make([]float64, len(s.values))
	for i, a := range s.values {
		if i >= len(other.values) {
			out[i] = Null
			continue
		}
		b := other.values[i]
		if !IsValid(a) || !IsValid(b) {
			out[i] = Null
			continue
		}
		out[i] = normalize(fn(a, b))
	}
	return Series{index: s.index, values: out}
}

// Reindex aligns s onto index. Dates missing from s become null.
func (s Series) Reindex(index []civil.Date) Series {
	out := make([]float64, len(index))
	j := 0
	for i, d := range index {
		for j < len(s.index) && s.index[j].Before(d) {
			j++
		}
		if j < len(s.index) && s.index[j] == d {
			out[i] = s.values[j]
		} else {
			out[i] = Null
		}
	}
	return Series{index: index, values: out}
}

// RollingMean computes a trailing mean over window rows. A window that is
// incomplete or contains a null produces null.
func (s Series) RollingMean(window int) Series {
	out := make([]float64, len(s.values))
	for i := range s.values {
		if window <= 0 || i+1 < window {
			out[i] = Null
			continue
		}
		sum := 0.0
		ok := true
		for _, v := range s.values[i+1-window : i+1] {
			if !IsValid(v) {
				ok = false
				break
			}
			sum += v
		}
		if !ok {
			out[i] = Null
			continue
		}
		out[i] = sum / float64(window)
	}
	return Series{index: s.index, values: out}
}

// normalize turns infinities into null.
func normalize(v float64) float64 {
	if math.IsInf(v, 0) {
		return Null
	}
	return v
}

func indexOf(index []civil.Date, d civil.Date) int {
	lo, hi := 0, len(index)
	for lo < hi {
		mid := (lo + hi) / 2
		if index[mid].Before(d) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(index) && index[lo] == d {
		return lo
	}
	return -1
}

// unionIndex merges two strictly increasing indexes.
func unionIndex(a, b []civil.Date) []civil.Date {
	out := make([]civil.Date, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i].Before(b[j])):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j].Before(a[i]):
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
