package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforecast/internal/config"
	"skuforecast/internal/exporter"
	"skuforecast/internal/shared/testutil"
	"skuforecast/pkg/contracts"
)

// isolate points every relative path at a temp directory
func isolate(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("SKU_PATHS_BASE_DIR", base)
	return base
}

func TestParseFlags(t *testing.T) {
	var out bytes.Buffer
	f, err := parseFlags([]string{"-in", "a.csv", "-horizon", "14", "-recursive", "-fill-gaps=false"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "a.csv", f.input)
	assert.Equal(t, 14, f.horizon)
	assert.True(t, f.set["recursive"])
	assert.True(t, f.set["fill-gaps"])
	assert.False(t, f.set["model"])

	_, err = parseFlags([]string{"-horizon", "soon"}, &out)
	assert.Error(t, err)

	_, err = parseFlags([]string{"stray"}, &out)
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		setup func(cfg *config.Config)
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "no flags keep config",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, config.Default(), cfg)
			},
		},
		{
			name: "paths and model",
			args: []string{"-in", "in.csv", "-out", "out.xlsx", "-model", "ridge", "-save-model", "m.json"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "in.csv", cfg.Paths.InputFile)
				assert.Equal(t, "out.xlsx", cfg.Paths.OutputFile)
				assert.Equal(t, "ridge", cfg.Model.Kind)
				assert.Equal(t, "m.json", cfg.Model.SavePath)
			},
		},
		{
			name:  "explicit false overrides config",
			args:  []string{"-fill-gaps=false", "-recursive"},
			setup: func(cfg *config.Config) { cfg.Forecast.FillGaps = true },
			check: func(t *testing.T, cfg *config.Config) {
				assert.False(t, cfg.Forecast.FillGaps)
				assert.True(t, cfg.Forecast.Recursive)
			},
		},
		{
			name: "metrics file enables telemetry",
			args: []string{"-metrics-file", "run.prom", "-horizon", "3"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.True(t, cfg.Telemetry.Enabled)
				assert.Equal(t, "run.prom", cfg.Telemetry.MetricsFile)
				assert.Equal(t, 3, cfg.Forecast.Horizon)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseFlags(tt.args, &bytes.Buffer{})
			require.NoError(t, err)

			cfg := config.Default()
			if tt.setup != nil {
				tt.setup(cfg)
			}
			applyFlags(cfg, f)
			tt.check(t, cfg)
		})
	}
}

func TestRun_EndToEnd(t *testing.T) {
	base := isolate(t)
	input := testutil.WriteSalesCSV(t, base,
		testutil.DailySeries("A1", "staples", testutil.Date(t, "2024-01-01"), 120, testutil.Constant(10)))
	output := filepath.Join(base, "out", "forecast.csv")
	metrics := filepath.Join(base, "out", "run.prom")

	var stdout bytes.Buffer
	code := run([]string{
		"-in", input,
		"-out", output,
		"-horizon", "3",
		"-model", "ridge",
		"-metrics-file", metrics,
	}, &stdout)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "wrote 3 forecasts")

	results, err := exporter.ReadForecasts(output)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.InDelta(t, 10.0, r.PredictedQuantity, 1e-6)
	}

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "forecast_runs")
	assert.Contains(t, string(data), "forecast_stage_duration")

	assert.DirExists(t, filepath.Join(base, "data", "results"))
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name string
		args func(base string) []string
		code int
	}{
		{
			name: "bad flag",
			args: func(string) []string { return []string{"-horizon", "x"} },
			code: 2,
		},
		{
			name: "missing input",
			args: func(base string) []string {
				return []string{"-in", filepath.Join(base, "missing.csv"), "-out", filepath.Join(base, "f.csv")}
			},
			code: 1,
		},
		{
			name: "unknown model",
			args: func(base string) []string {
				return []string{"-in", filepath.Join(base, "sales.csv"), "-model", "forest"}
			},
			code: 1,
		},
		{
			name: "unsupported output format",
			args: func(base string) []string {
				return []string{"-in", filepath.Join(base, "sales.csv"), "-out", filepath.Join(base, "f.json")}
			},
			code: 1,
		},
		{
			name: "input directory without sales files",
			args: func(base string) []string {
				empty := filepath.Join(base, "empty")
				_ = os.MkdirAll(empty, 0755)
				return []string{"-in", empty, "-out", filepath.Join(base, "f.csv")}
			},
			code: 1,
		},
		{
			name: "missing saved model",
			args: func(base string) []string {
				return []string{
					"-in", filepath.Join(base, "sales.csv"),
					"-out", filepath.Join(base, "f.csv"),
					"-load-model", filepath.Join(base, "none.json"),
				}
			},
			code: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := isolate(t)
			testutil.WriteSalesCSV(t, base,
				testutil.DailySeries("A", "", testutil.Date(t, "2024-01-01"), 10, testutil.Constant(1)))

			assert.Equal(t, tt.code, run(tt.args(base), &bytes.Buffer{}))
			assert.NoFileExists(t, filepath.Join(base, "f.csv"))
		})
	}
}

func TestRun_Version(t *testing.T) {
	isolate(t)

	var stdout bytes.Buffer
	assert.Equal(t, 0, run([]string{"-version"}, &stdout))
	assert.Contains(t, stdout.String(), "sku-forecast v"+contracts.Version)
}

func TestRun_DirectoryInput(t *testing.T) {
	base := isolate(t)
	raw := filepath.Join(base, "exports")
	rows := testutil.DailySeries("A1", "", testutil.Date(t, "2024-01-01"), 60, testutil.Constant(3))
	testutil.WriteFile(t, raw, "part1.csv", testutil.FormatSalesCSV(rows[:30]))
	testutil.WriteFile(t, raw, "part2.csv", testutil.FormatSalesCSV(rows[30:]))

	var stdout bytes.Buffer
	code := run([]string{"-in", raw, "-horizon", "2", "-model", "ridge"}, &stdout)
	require.Equal(t, 0, code)

	results, err := exporter.ReadForecasts(filepath.Join(base, "data", "results", "forecast.csv"))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, testutil.Date(t, "2024-03-01"), results[0].Date)
}

func TestPlaceOutputs(t *testing.T) {
	base := t.TempDir()
	paths, err := config.GetPaths(config.PathsConfig{BaseDir: base, DataDir: "data", LogsDir: "logs"})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Model.SavePath = "model.json"
	cfg.Model.LoadPath = filepath.Join("elsewhere", "old.json")
	cfg.Telemetry.MetricsFile = "run.prom"
	cfg.Logging.FilePath = filepath.Join("logs", "forecast.log")
	flags := &cliFlags{summary: "summary.json", set: map[string]bool{}}

	placeOutputs(cfg, paths, flags)

	assert.Equal(t, filepath.Join(base, "data", "models", "model.json"), cfg.Model.SavePath)
	assert.Equal(t, filepath.Join("elsewhere", "old.json"), cfg.Model.LoadPath)
	assert.Equal(t, filepath.Join(base, "data", "results", "run.prom"), cfg.Telemetry.MetricsFile)
	assert.Equal(t, filepath.Join(base, "data", "results", "summary.json"), flags.summary)
	assert.Equal(t, filepath.Join(base, "logs", "forecast.log"), cfg.Logging.FilePath)
}
