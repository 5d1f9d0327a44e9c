package operations

import (
	"time"

	"skuforecast/pkg/contracts/domain"
)

// Step identifiers
const (
	StageIDLoad     = "load"
	StageIDFeatures = "features"
	StageIDFit      = "fit"
	StageIDPredict  = "predict"
	StageIDWrite    = "write"
)

// Step names
const (
	StageNameLoad     = "Load Sales History"
	StageNameFeatures = "Build Training Features"
	StageNameFit      = "Fit Model"
	StageNamePredict  = "Predict Horizon"
	StageNameWrite    = "Write Results"
)

// Metadata keys recorded on step states
const (
	MetaInputFiles   = "input_files"
	MetaRecords      = "records"
	MetaSKUs         = "skus"
	MetaGridAdded    = "grid_added"
	MetaRareSKUs     = "rare_skus"
	MetaTrainingRows = "training_rows"
	MetaColumns      = "columns"
	MetaModelKind    = "model_kind"
	MetaModelSource  = "model_source"
	MetaPredictions  = "predictions"
	MetaFallbacks    = "fallbacks"
	MetaClamped      = "clamped"
	MetaOutputPath   = "output_path"
)

// RunRequest represents a request to execute one forecasting run
type RunRequest struct {
	ID          string `json:"id"`
	InputPath   string `json:"input_path"`
	OutputPath  string `json:"output_path"`
	SummaryPath string `json:"summary_path,omitempty"` // optional per-SKU summary JSON
	Horizon     int    `json:"horizon,omitempty"`      // overrides forecast.horizon when > 0
}

// RunResponse represents the outcome of a forecasting run
type RunResponse struct {
	ID       string                `json:"id"`
	Status   RunStatus             `json:"status"`
	Duration time.Duration         `json:"duration"`
	Order    []string              `json:"order"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`

	Results []domain.ForecastResult `json:"-"`
}
