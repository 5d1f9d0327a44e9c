package model

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"skuforecast/internal/errors"
)

// GBMParams tunes gradient boosting
type GBMParams struct {
	NumTrees       int     `json:"num_trees"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

// DefaultGBMParams returns the boosting defaults
func DefaultGBMParams() GBMParams {
	return GBMParams{
		NumTrees:       200,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 5,
	}
}

// GradientBoosting is a squared-loss gradient-boosted ensemble of regression
// trees. The initial prediction is the target mean; each tree fits the
// residuals of the ensemble so far, scaled by the learning rate.
type GradientBoosting struct {
	Params GBMParams `json:"params"`
	Init   float64   `json:"init"`
	Trees  []*Tree   `json:"trees"`
	Width  int       `json:"width"`
}

// NewGradientBoosting creates an unfitted ensemble; zero params take defaults
func NewGradientBoosting(params GBMParams) *GradientBoosting {
	def := DefaultGBMParams()
	if params.NumTrees <= 0 {
		params.NumTrees = def.NumTrees
	}
	if params.LearningRate <= 0 {
		params.LearningRate = def.LearningRate
	}
	if params.MaxDepth <= 0 {
		params.MaxDepth = def.MaxDepth
	}
	if params.MinSamplesLeaf <= 0 {
		params.MinSamplesLeaf = def.MinSamplesLeaf
	}
	return &GradientBoosting{Params: params}
}

// Kind implements Regressor
func (g *GradientBoosting) Kind() string {
	return KindGBM
}

// Fit trains the ensemble, replacing any previous fit
func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	width, err := validateTraining(X, y)
	if err != nil {
		return err
	}

	g.Init = stat.Mean(y, nil)
	g.Trees = make([]*Tree, 0, g.Params.NumTrees)

	pred := make([]float64, len(y))
	residual := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.Init
	}

	for m := 0; m < g.Params.NumTrees; m++ {
		maxAbs := 0.0
		for i := range y {
			residual[i] = y[i] - pred[i]
			if a := math.Abs(residual[i]); a > maxAbs {
				maxAbs = a
			}
		}
		// perfect fit: further trees would be single zero leaves
		if maxAbs < 1e-12 {
			break
		}

		tree := fitTree(X, residual, g.Params.MaxDepth, g.Params.MinSamplesLeaf)
		if len(tree.Nodes) == 1 && math.Abs(tree.Nodes[0].Value) < 1e-12 {
			break
		}
		for i := range tree.Nodes {
			tree.Nodes[i].Value *= g.Params.LearningRate
		}
		for i, x := range X {
			pred[i] += tree.Predict(x)
		}
		g.Trees = append(g.Trees, tree)
	}

	g.Width = width
	return nil
}

// Predict implements Regressor
func (g *GradientBoosting) Predict(X [][]float64) ([]float64, error) {
	if err := validatePrediction(X, g.Width); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for i, x := range X {
		v := g.Init
		for _, t := range g.Trees {
			v += t.Predict(x)
		}
		out[i] = v
	}
	return out, nil
}

func (g *GradientBoosting) validateLoaded() error {
	if g.Width <= 0 {
		return errors.NewPredictionError("saved gbm model has no feature width")
	}
	for ti, t := range g.Trees {
		if t == nil || len(t.Nodes) == 0 {
			return errors.NewPredictionError("saved gbm tree %d is empty", ti)
		}
		// children always follow their parent, which rules out cycles
		for i, n := range t.Nodes {
			if n.Feature >= g.Width ||
				(n.Feature >= 0 && (n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes))) {
				return errors.NewPredictionError("saved gbm tree %d is malformed", ti)
			}
		}
	}
	return nil
}
