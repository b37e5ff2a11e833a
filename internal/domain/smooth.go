package domain

// SpreadFunc redistributes values reported after a stall. Zero runs of
// maxDays or more are genuine zero activity and must be left alone. The
// default is SpreadAfterStall.
type SpreadFunc func(s Series, maxDays int) Series

// SpreadAfterStall spreads the first positive value reported after a run of
// fewer than maxDays zeros evenly over the zero days and itself. Only runs
// that follow an earlier non-zero report count as stalls; leading zeros are
// left alone.
func SpreadAfterStall(s Series, maxDays int) Series {
	values := s.Values()
	seenNonZero := false
	zeros := 0
	for i, v := range values {
		switch {
		case !IsValid(v):
			zeros = 0
		case v == 0:
			if seenNonZero {
				zeros++
			}
		default:
			if v > 0 && zeros > 0 && zeros < maxDays {
				share := v / float64(zeros+1)
				for j := i - zeros; j <= i; j++ {
					values[j] = share
				}
			}
			zeros = 0
			seenNonZero = true
		}
	}
	return Series{index: s.index, values: values}
}

// SmoothDailyCases smooths a daily new-value series with a trailing rolling
// mean of window days.
//
// Trailing zeros younger than stallDays are treated as a reporting lag and
// nulled before smoothing; once the zero run reaches stallDays it is kept as
// genuine zero activity. Days before the first valid value are assumed to
// have zero activity.
func SmoothDailyCases(s Series, window, stallDays int) Series {
	first := s.FirstValid()
	if first < 0 {
		return s
	}

	s = trimTrailingZeros(s, stallDays)

	values := s.Values()
	for i := 0; i < first; i++ {
		values[i] = 0
	}
	return Series{index: s.index, values: values}.RollingMean(window)
}

// trimTrailingZeros nulls every value after the last non-zero observation
// unless the trailing zeros have lasted at least stallDays.
func trimTrailingZeros(s Series, stallDays int) Series {
	lastNonZero := -1
	for i := s.Len() - 1; i >= 0; i-- {
		if v := s.values[i]; IsValid(v) && v != 0 {
			lastNonZero = i
			break
		}
	}
	if lastNonZero < 0 {
		return s
	}
	lastValid := s.LastValid()

	if s.index[lastValid].DaysSince(s.index[lastNonZero]) >= stallDays {
		return s
	}

	values := s.Values()
	for i := lastNonZero + 1; i < len(values); i++ {
		values[i] = Null
	}
	return Series{index: s.index, values: values}
}
