package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the resolved paths used by a forecasting run
type Paths struct {
	BaseDir    string
	DataDir    string
	RawDir     string
	ResultsDir string
	ModelsDir  string
	LogsDir    string

	// Well-known files
	SalesCSV    string
	ForecastCSV string
	MetricsFile string
}

// GetPaths resolves the directory layout under cfg.BaseDir.
// Directory structure:
//
//	<base>/
//	  ├── data/
//	  │   ├── raw/       (sales history)
//	  │   ├── results/   (forecasts, metrics)
//	  │   └── models/    (saved regressors)
//	  └── logs/
func GetPaths(cfg PathsConfig) (*Paths, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %v", err)
		}
		baseDir = wd
	}

	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %v", err)
	}

	dataDir := resolve(baseDir, cfg.DataDir)
	rawDir := filepath.Join(dataDir, "raw")
	resultsDir := filepath.Join(dataDir, "results")

	paths := &Paths{
		BaseDir:    baseDir,
		DataDir:    dataDir,
		RawDir:     rawDir,
		ResultsDir: resultsDir,
		ModelsDir:  filepath.Join(dataDir, "models"),
		LogsDir:    resolve(baseDir, cfg.LogsDir),

		SalesCSV:    filepath.Join(rawDir, "sales.csv"),
		ForecastCSV: filepath.Join(resultsDir, "forecast.csv"),
		MetricsFile: filepath.Join(resultsDir, "forecast.prom"),
	}

	if cfg.InputFile != "" {
		paths.SalesCSV = resolve(baseDir, cfg.InputFile)
	}
	if cfg.OutputFile != "" {
		paths.ForecastCSV = resolve(baseDir, cfg.OutputFile)
	}

	return paths, nil
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// EnsureDirectories creates the output directories if they don't exist.
// The raw directory is input only and is never created.
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.ResultsDir,
		p.ModelsDir,
		p.LogsDir,
	}

	logger := slog.Default()
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		logger.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetResultPath returns the full path for a file in the results directory
func (p *Paths) GetResultPath(filename string) string {
	return filepath.Join(p.ResultsDir, filename)
}

// GetModelPath returns the full path for a file in the models directory
func (p *Paths) GetModelPath(filename string) string {
	return filepath.Join(p.ModelsDir, filename)
}

// GetLogPath returns the full path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}
