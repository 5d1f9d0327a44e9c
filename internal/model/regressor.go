package model

import (
	"math"

	"skuforecast/internal/config"
	"skuforecast/internal/errors"
)

// Model kinds
const (
	KindGBM   = "gbm"
	KindRidge = "ridge"
)

// Regressor is a fitted-once, predict-many regression model. Predict is a
// pure function of its input once Fit has succeeded.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
	Kind() string
}

// New creates an unfitted regressor of the configured kind
func New(cfg config.ModelConfig) (Regressor, error) {
	switch cfg.Kind {
	case KindGBM, "":
		return NewGradientBoosting(GBMParams{
			NumTrees:       cfg.NumTrees,
			LearningRate:   cfg.LearningRate,
			MaxDepth:       cfg.MaxDepth,
			MinSamplesLeaf: cfg.MinSamplesLeaf,
		}), nil
	case KindRidge:
		return NewRidge(cfg.Lambda), nil
	default:
		return nil, errors.NewConfigError(nil, "unknown model kind %q", cfg.Kind)
	}
}

// validateTraining checks a training set and returns its width
func validateTraining(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, errors.NewTrainingError("empty training set")
	}
	if len(X) != len(y) {
		return 0, errors.NewTrainingError("%d feature rows but %d targets", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return 0, errors.NewTrainingError("training rows have no features")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, errors.NewTrainingError("row %d has %d features, expected %d", i, len(row), width).With("row", i)
		}
		for j, v := range row {
			if !finite(v) {
				return 0, errors.NewTrainingError("row %d feature %d is not finite", i, j).With("row", i)
			}
		}
		if !finite(y[i]) {
			return 0, errors.NewTrainingError("target %d is undefined", i).With("row", i)
		}
	}
	return width, nil
}

// validatePrediction checks X against the fitted width
func validatePrediction(X [][]float64, width int) error {
	if width == 0 {
		return errors.NewPredictionError("model is not fitted")
	}
	for i, row := range X {
		if len(row) != width {
			return errors.NewPredictionError("row %d has %d features, model expects %d", i, len(row), width).With("row", i)
		}
		for j, v := range row {
			if !finite(v) {
				return errors.NewPredictionError("row %d feature %d is not finite", i, j).With("row", i)
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
