package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func regionCSV(days int) string {
	var b strings.Builder
	b.WriteString("date,new_cases,test_positivity\n")
	for i := 0; i < days; i++ {
		fmt.Fprintf(&b, "2021-03-%02d,100,0.05\n", i+1)
	}
	return b.String()
}

func TestCompute(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "region.csv", regionCSV(10))
	rt := writeTemp(t, dir, "rt.csv", "date,Rt_MAP_composite,Rt_ci95_composite\n"+
		"2021-03-01,1.1,1.3\n2021-03-02,1.0,1.2\n2021-03-03,0.9,1.1\n")
	out := filepath.Join(dir, "metrics.csv")
	snapshotOut := filepath.Join(dir, "latest.json")
	snapshotCSV := filepath.Join(dir, "latest.csv")

	err := newApp().Run([]string{"metricsctl", "--log-level", "error",
		"compute",
		"--input", input,
		"--rt", rt,
		"--fips", "36061",
		"--state", "NY",
		"--population", "100000",
		"--test-positivity-source", "CDCTesting",
		"--rt-truncation-days", "0",
		"--out", out,
		"--snapshot-out", snapshotOut,
		"--snapshot-csv", snapshotCSV,
	})
	require.NoError(t, err)

	metrics, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(metrics)), "\n")
	require.Len(t, lines, 11)
	assert.True(t, strings.HasPrefix(lines[0], "date,caseDensity,weeklyNewCasesPer100k,"))
	assert.True(t, strings.HasPrefix(lines[10], "2021-03-10,100,700,0.05,"))

	raw, err := os.ReadFile(snapshotOut)
	require.NoError(t, err)
	var doc struct {
		Region struct {
			FIPS  string `json:"fips"`
			Level string `json:"level"`
		} `json:"region"`
		Latest map[string]any `json:"latest"`
		RunID  string         `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "36061", doc.Region.FIPS)
	assert.Equal(t, "county", doc.Region.Level)
	assert.NotEmpty(t, doc.RunID)
	assert.InDelta(t, 100, doc.Latest["caseDensity"], 1e-9)
	assert.InDelta(t, 0.05, doc.Latest["testPositivityRatio"], 1e-9)
	assert.InDelta(t, 0.9, doc.Latest["infectionRate"], 1e-9)
	assert.Equal(t, map[string]any{"source": "CDCTesting"}, doc.Latest["testPositivityRatioDetails"])

	snapshotRows, err := os.ReadFile(snapshotCSV)
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(snapshotRows)), "\n")
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[1], "36061,county,100,700,"))
	assert.True(t, strings.HasSuffix(rows[1], ",CDCTesting"))
}

func TestCompute_AppliesFilters(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "region.csv", regionCSV(10))
	filters := writeTemp(t, dir, "filters.yaml", `
filters:
  - regions_included: ["36061"]
    fields_included: [test_positivity]
    drop_observations: true
    internal_note: "Bad feed"
    public_note: "Test positivity withheld."
`)
	snapshotOut := filepath.Join(dir, "latest.json")

	err := newApp().Run([]string{"metricsctl", "--log-level", "error",
		"compute",
		"--input", input,
		"--fips", "36061",
		"--population", "100000",
		"--filters", filters,
		"--out", filepath.Join(dir, "metrics.csv"),
		"--snapshot-out", snapshotOut,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(snapshotOut)
	require.NoError(t, err)
	var doc struct {
		Latest      map[string]any `json:"latest"`
		KnownIssues []struct {
			Disclaimer string `json:"disclaimer"`
		} `json:"known_issues"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Nil(t, doc.Latest["testPositivityRatio"])
	require.Len(t, doc.KnownIssues, 1)
	assert.Equal(t, "Test positivity withheld.", doc.KnownIssues[0].Disclaimer)
}

func TestCompute_Errors(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "region.csv", regionCSV(3))
	out := filepath.Join(dir, "metrics.csv")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "unknown level",
			args: []string{"--input", input, "--fips", "1", "--population", "10", "--level", "zip", "--out", out},
			want: `unknown level "zip"`,
		},
		{
			name: "missing input",
			args: []string{"--input", filepath.Join(dir, "nope.csv"), "--fips", "1", "--population", "10", "--out", out},
			want: "open region csv",
		},
		{
			name: "invalid config",
			args: []string{"--input", input, "--fips", "1", "--population", "10", "--smoothing-window", "0", "--out", out},
			want: "smoothing window",
		},
		{
			name: "bad population",
			args: []string{"--input", input, "--fips", "1", "--population", "0", "--out", out},
			want: "population must be positive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"metricsctl", "--log-level", "error", "compute"}, tt.args...)
			err := newApp().Run(args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFiltersCommand(t *testing.T) {
	dir := t.TempDir()
	filters := writeTemp(t, dir, "filters.yaml", `
filters:
  - regions_included: ["36061", {state: TX, level: county}]
    fields_included: [new_cases]
    start_date: 2021-03-05
    drop_observations: true
    internal_note: "Duplicate upload"
  - regions_included: [{state: OK}]
    fields_included: [test_positivity]
    drop_observations: false
    internal_note: ""
    public_note: "Includes antigen tests."
`)

	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	require.NoError(t, app.Run([]string{"metricsctl", "filters", "--filters", filters}))

	out := buf.String()
	assert.Contains(t, out, "0\tdrop\tfips=36061;state=TX,level=county\t[new_cases]")
	assert.Contains(t, out, "1\ttag\tstate=OK\t[test_positivity]")
	assert.Contains(t, out, "2 rules ok")
}

func TestFiltersCommand_Invalid(t *testing.T) {
	dir := t.TempDir()
	filters := writeTemp(t, dir, "filters.yaml", "filters:\n  - {regions_included: [\"36\"], fields_included: [new_cases]}\n")

	err := newApp().Run([]string{"metricsctl", "filters", "--filters", filters})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drop_observations is required")
}

func TestLatestCommand_RequiresFIPS(t *testing.T) {
	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run([]string{"metricsctl", "latest", "--database-url", "postgres://localhost/none"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIPS code is required")
}

func TestRecord(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "region.csv", "date,new_cases\n2021-03-01,5\n2021-03-02,\n")
	rt := writeTemp(t, dir, "rt.csv", "date,Rt_MAP_composite,Rt_ci95_composite\n2021-03-02,1.1,1.4\n")
	out := filepath.Join(dir, "record.json")

	err := newApp().Run([]string{"metricsctl", "--log-level", "error",
		"record",
		"--input", input,
		"--rt", rt,
		"--fips", "40",
		"--level", "state",
		"--state", "OK",
		"--population", "3956971",
		"--out", out,
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"region": {"fips": "40", "state": "OK", "level": "state"},
		"population": 3956971,
		"dates": ["2021-03-01", "2021-03-02"],
		"columns": {"new_cases": [5, null]},
		"infection_rate": {"dates": ["2021-03-02"], "rt": [1.1], "rt_ci95": [1.4]}
	}`, string(raw))
}

func TestRecord_RequiresDestination(t *testing.T) {
	dir := t.TempDir()
	input := writeTemp(t, dir, "region.csv", regionCSV(2))

	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run([]string{"metricsctl", "record", "--input", input, "--fips", "1", "--population", "10"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--out or --brokers")
}
