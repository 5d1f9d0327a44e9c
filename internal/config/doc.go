// Package config loads the forecaster configuration and resolves its paths.
//
// # Configuration Sources
//
// Configuration is built from the following sources, later ones winning:
//
//	1. Default values
//	2. A YAML file (-config, else forecast.yaml or configs/forecast.yaml)
//	3. Environment variables with the SKU_ prefix
//
// Command line flags are applied on top by cmd/forecast, after which
// Validate must be called again.
//
// # Environment Variables
//
// Nested fields are joined with underscores:
//
//	SKU_FORECAST_HORIZON=14
//	SKU_FORECAST_LAGS=1,7,14
//	SKU_MODEL_KIND=ridge
//	SKU_PATHS_BASE_DIR=/srv/forecast
//	SKU_LOGGING_LEVEL=debug
//
// # Path Management
//
// GetPaths resolves every relative path against Paths.BaseDir, or the
// working directory when it is empty:
//
//	paths, err := config.GetPaths(cfg.Paths)
//	paths.SalesCSV    // <base>/data/raw/sales.csv unless input_file is set
//	paths.ForecastCSV // <base>/data/results/forecast.csv unless output_file is set
//
// EnsureDirectories creates the output side of the layout. The raw input
// directory is never created.
package config
