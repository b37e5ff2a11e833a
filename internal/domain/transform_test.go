package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegionPayload = `{
	"region": {"fips": "36061", "state": "NY", "level": "county"},
	"population": 200000,
	"hsa_population": 400000,
	"dates": ["2021-03-01", "2021-03-02", "2021-03-03"],
	"columns": {
		"new_cases": [10, null, 12],
		"test_positivity": [0.1, 0.2, null]
	},
	"provenance": {"test_positivity": ["HHSTesting"]},
	"infection_rate": {
		"dates": ["2021-03-02", "2021-03-03"],
		"rt": [1.1, 1.2],
		"rt_ci95": [1.3, null]
	}
}`

func TestParseRawEvent(t *testing.T) {
	t.Run("region record", func(t *testing.T) {
		input, err := ParseRawEvent(RawEvent{Value: []byte(testRegionPayload)})

		require.NoError(t, err)
		ts := input.Timeseries
		assert.Equal(t, Region{FIPS: "36061", State: "NY", Level: LevelCounty}, ts.Region())
		assert.Equal(t, dates(3), ts.Dates())
		assert.Equal(t, 200000.0, ts.Population())
		hsa, ok := ts.HSAPopulation()
		require.True(t, ok)
		assert.Equal(t, 400000.0, hsa)
		assertValues(t, []float64{10, nan, 12}, ts.Series(FieldNewCases))
		assertValues(t, []float64{0.1, 0.2, nan}, ts.Series(FieldTestPositivity))
		assert.False(t, ts.Has(FieldICUBeds))
		assert.Equal(t, []string{"HHSTesting"}, ts.Provenance(FieldTestPositivity))

		require.NotNil(t, input.Estimate)
		assert.Equal(t, dates(3)[1:], input.Estimate.Dates)
		assert.Equal(t, []float64{1.1, 1.2}, input.Estimate.Rt)
		assert.Equal(t, 1.3, input.Estimate.RtCI95[0])
		assert.True(t, IsValid(input.Estimate.Rt[1]))
		assert.False(t, IsValid(input.Estimate.RtCI95[1]))
	})

	t.Run("no infection rate", func(t *testing.T) {
		data := `{"region":{"fips":"36","level":"state"},"population":5,"dates":["2021-03-01"],"columns":{"new_cases":[1]}}`
		input, err := ParseRawEvent(RawEvent{Value: []byte(data)})

		require.NoError(t, err)
		assert.Nil(t, input.Estimate)
	})

	t.Run("empty region", func(t *testing.T) {
		input, err := ParseRawEvent(RawEvent{Value: []byte(`{"region":{"fips":"36","level":"state"},"dates":[]}`)})

		require.NoError(t, err)
		assert.True(t, input.Timeseries.Empty())
	})

	errorCases := []struct {
		name string
		data string
		msg  string
	}{
		{"invalid JSON", `{invalid json`, "parse raw event"},
		{"unknown level", `{"region":{"fips":"1","level":"galaxy"},"dates":[]}`, "unknown level"},
		{"unknown field", `{"region":{"fips":"1","level":"state"},"population":1,"dates":["2021-03-01"],"columns":{"bogus":[1]}}`, "unknown field"},
		{"misaligned column", `{"region":{"fips":"1","level":"state"},"population":1,"dates":["2021-03-01"],"columns":{"new_cases":[1,2]}}`, "column length"},
		{"unsorted dates", `{"region":{"fips":"1","level":"state"},"population":1,"dates":["2021-03-02","2021-03-01"]}`, "strictly increasing"},
		{"missing population", `{"region":{"fips":"1","level":"state"},"dates":["2021-03-01"]}`, "population"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRawEvent(RawEvent{Value: []byte(tc.data)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestNewRegionTimeseries_CopiesInputs(t *testing.T) {
	cases := []float64{1, 2, 3}
	ts := newTimeseries(t, RegionTimeseriesParams{
		Dates:   dates(3),
		Columns: map[Field][]float64{FieldNewCases: cases},
	})

	cases[0] = 100

	assertValues(t, []float64{1, 2, 3}, ts.Series(FieldNewCases))
}

func TestComputeRegionMetrics(t *testing.T) {
	fixed := time.Date(2021, 3, 4, 12, 30, 45, 500, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	input, err := ParseRawEvent(RawEvent{Value: []byte(testRegionPayload)})
	require.NoError(t, err)
	c := newCalculator(t)

	result := ComputeRegionMetrics(c, input)

	assert.Equal(t, input.Timeseries.Region(), result.Region)
	assert.Equal(t, fixed.Truncate(time.Second), result.ComputedAt)
	_, err = uuid.Parse(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Metrics.Len())
	require.NotNil(t, result.Latest)
	assert.Equal(t, MethodHHSTesting, result.Latest.TestPositivityDetails.Source)

	other := ComputeRegionMetrics(c, input)
	assert.NotEqual(t, result.RunID, other.RunID)
}

func TestRegionMetrics_JSONEncodesNulls(t *testing.T) {
	idx := dates(2)
	frame := NewFrame(idx, map[MetricField]Series{
		MetricCaseDensity: NewSeries(idx, []float64{1.5, nan}),
	})
	latest := SelectLatest(frame, TestPositivityDetails{Source: MethodOther}, 15, 7)

	b, err := json.Marshal(RegionMetrics{
		Region:  Region{FIPS: "36", Level: LevelState},
		Metrics: frame,
		Latest:  latest,
		RunID:   "run",
	})
	require.NoError(t, err)

	var decoded struct {
		Metrics []map[string]any `json:"metrics"`
		Latest  map[string]any   `json:"latest"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Len(t, decoded.Metrics, 2)
	assert.Equal(t, "2021-03-01", decoded.Metrics[0]["date"])
	assert.Equal(t, 1.5, decoded.Metrics[0]["caseDensity"])
	assert.Contains(t, decoded.Metrics[1], "caseDensity")
	assert.Nil(t, decoded.Metrics[1]["caseDensity"])
	assert.Equal(t, 1.5, decoded.Latest["caseDensity"])
	assert.Nil(t, decoded.Latest["icuCapacityRatio"])
	assert.Equal(t, map[string]any{"source": "other"}, decoded.Latest["testPositivityRatioDetails"])

	var roundTrip RegionMetrics
	require.NoError(t, json.Unmarshal(b, &roundTrip))
	assertValues(t, []float64{1.5, nan}, roundTrip.Metrics.Column(MetricCaseDensity))
	v, ok := roundTrip.Latest.Value(MetricCaseDensity)
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestRegionMetrics_EmptyRegionEncodesNullLatest(t *testing.T) {
	b, err := json.Marshal(RegionMetrics{Region: Region{FIPS: "36", Level: LevelState}})
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.JSONEq(t, `[]`, string(decoded["metrics"]))
	assert.JSONEq(t, `null`, string(decoded["latest"]))
}

func TestNewRegionRecord_RoundTrip(t *testing.T) {
	input, err := ParseRawEvent(RawEvent{Value: []byte(testRegionPayload)})
	require.NoError(t, err)

	b, err := json.Marshal(NewRegionRecord(input))
	require.NoError(t, err)
	assert.JSONEq(t, testRegionPayload, string(b))
}

func TestNewRegionRecord_EmptyRegion(t *testing.T) {
	input, err := ParseRawEvent(RawEvent{Value: []byte(`{"region":{"fips":"02","level":"state"},"population":1,"dates":[]}`)})
	require.NoError(t, err)

	b, err := json.Marshal(NewRegionRecord(input))
	require.NoError(t, err)
	assert.JSONEq(t, `{"region":{"fips":"02","level":"state"},"population":1,"dates":[],"columns":{}}`, string(b))
}
