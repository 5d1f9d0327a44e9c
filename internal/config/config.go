package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix of every environment override, e.g. SKU_FORECAST_HORIZON
const EnvPrefix = "SKU"

// Config represents the complete forecasting configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Forecast  ForecastConfig  `yaml:"forecast" envconfig:"FORECAST"`
	Model     ModelConfig     `yaml:"model" envconfig:"MODEL"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console stdout file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration.
// Relative entries are resolved against BaseDir (working directory when empty).
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
	InputFile  string `yaml:"input_file" envconfig:"INPUT_FILE"`
	OutputFile string `yaml:"output_file" envconfig:"OUTPUT_FILE"`
}

// ForecastConfig controls feature generation and the forecast horizon
type ForecastConfig struct {
	Horizon          int      `yaml:"horizon" envconfig:"HORIZON" validate:"min=1,max=366"`
	Lags             []int    `yaml:"lags" envconfig:"LAGS" validate:"required,dive,min=1"`
	Windows          []int    `yaml:"windows" envconfig:"WINDOWS" validate:"required,dive,min=1"`
	Sentinel         string   `yaml:"sentinel" envconfig:"SENTINEL" validate:"oneof=zero global_mean category_mean"`
	HolidayCountry   string   `yaml:"holiday_country" envconfig:"HOLIDAY_COUNTRY" validate:"oneof=UA none"`
	ExtraHolidays    []string `yaml:"extra_holidays" envconfig:"EXTRA_HOLIDAYS" validate:"dive,datetime=2006-01-02"`
	Recursive        bool     `yaml:"recursive" envconfig:"RECURSIVE"`
	FillGaps         bool     `yaml:"fill_gaps" envconfig:"FILL_GAPS"`
	RareSKUThreshold int      `yaml:"rare_sku_threshold" envconfig:"RARE_SKU_THRESHOLD" validate:"min=0"`
	RareSKUPolicy    string   `yaml:"rare_sku_policy" envconfig:"RARE_SKU_POLICY" validate:"oneof=model fallback"`
	ClampNegative    bool     `yaml:"clamp_negative" envconfig:"CLAMP_NEGATIVE"`
	Precision        int      `yaml:"precision" envconfig:"PRECISION" validate:"min=-1,max=12"`
}

// ModelConfig selects and tunes the regressor
type ModelConfig struct {
	Kind           string  `yaml:"kind" envconfig:"KIND" validate:"oneof=gbm ridge"`
	NumTrees       int     `yaml:"num_trees" envconfig:"NUM_TREES" validate:"min=1"`
	LearningRate   float64 `yaml:"learning_rate" envconfig:"LEARNING_RATE" validate:"gt=0,lte=1"`
	MaxDepth       int     `yaml:"max_depth" envconfig:"MAX_DEPTH" validate:"min=1,max=12"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf" envconfig:"MIN_SAMPLES_LEAF" validate:"min=1"`
	Lambda         float64 `yaml:"lambda" envconfig:"LAMBDA" validate:"gt=0"`
	SavePath       string  `yaml:"save_path" envconfig:"SAVE_PATH"`
	LoadPath       string  `yaml:"load_path" envconfig:"LOAD_PATH"`
}

// TelemetryConfig controls tracing and the metrics textfile
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	TraceOutput string `yaml:"trace_output" envconfig:"TRACE_OUTPUT"` // "", "stdout" or a file path
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order of precedence (environment wins).
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// No default tags on the struct: envconfig only touches variables that are set
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and normalizes logging settings
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	// JSON logs only
	c.Logging.Format = "json"
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(c.Paths.LogsDir, "forecast.log")
	}

	if err := checkUnique("lag", c.Forecast.Lags); err != nil {
		return err
	}
	return checkUnique("window", c.Forecast.Windows)
}

// checkUnique rejects repeated values; each lag or window names one feature column
func checkUnique(what string, values []int) error {
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return fmt.Errorf("duplicate %s %d", what, v)
		}
		seen[v] = true
	}
	return nil
}

// getConfigFilePath returns the first config file found in the usual locations
func getConfigFilePath() string {
	locations := []string{
		"forecast.yaml",
		"configs/forecast.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "",
		},
		Paths: PathsConfig{
			DataDir: "data",
			LogsDir: "logs",
		},
		Forecast: ForecastConfig{
			Horizon:          7,
			Lags:             []int{1, 7},
			Windows:          []int{7, 28},
			Sentinel:         "zero",
			HolidayCountry:   "UA",
			RareSKUThreshold: 14,
			RareSKUPolicy:    "model",
			ClampNegative:    true,
			Precision:        -1,
		},
		Model: ModelConfig{
			Kind:           "gbm",
			NumTrees:       200,
			LearningRate:   0.1,
			MaxDepth:       3,
			MinSamplesLeaf: 5,
			Lambda:         1.0,
		},
	}
}
