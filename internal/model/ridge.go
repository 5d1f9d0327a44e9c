package model

import (
	stderrors "errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"skuforecast/internal/errors"
)

// Ridge is L2-regularized least squares with an unpenalized intercept.
// Features are standardized before solving (XᵀX + λI)β = Xᵀy.
type Ridge struct {
	Lambda    float64   `json:"lambda"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
	Means     []float64 `json:"means"`
	Scales    []float64 `json:"scales"`
}

// NewRidge creates an unfitted ridge regressor
func NewRidge(lambda float64) *Ridge {
	if lambda <= 0 {
		lambda = 1.0
	}
	return &Ridge{Lambda: lambda}
}

// Kind implements Regressor
func (r *Ridge) Kind() string {
	return KindRidge
}

// Fit solves the ridge system by Cholesky factorization
func (r *Ridge) Fit(X [][]float64, y []float64) error {
	width, err := validateTraining(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	means := make([]float64, width)
	scales := make([]float64, width)
	col := make([]float64, n)
	for j := 0; j < width; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		means[j] = mean
		scales[j] = std
		if std < 1e-12 || math.IsNaN(std) {
			scales[j] = 1
		}
	}

	yMean := stat.Mean(y, nil)
	xc := mat.NewDense(n, width, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			xc.Set(i, j, (v-means[j])/scales[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, xc.T())
	for j := 0; j < width; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Lambda)
	}

	var xty mat.VecDense
	xty.MulVec(xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errors.NewTrainingError("ridge system is not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		// a Condition error still carries a usable solution
		var cond mat.Condition
		if !stderrors.As(err, &cond) {
			return errors.NewTrainingError("ridge solve failed: %v", err)
		}
	}

	r.Coef = make([]float64, width)
	for j := range r.Coef {
		r.Coef[j] = beta.AtVec(j)
	}
	r.Intercept = yMean
	r.Means = means
	r.Scales = scales
	return nil
}

// Predict implements Regressor
func (r *Ridge) Predict(X [][]float64) ([]float64, error) {
	if err := validatePrediction(X, len(r.Coef)); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for i, row := range X {
		v := r.Intercept
		for j, x := range row {
			v += r.Coef[j] * (x - r.Means[j]) / r.Scales[j]
		}
		out[i] = v
	}
	return out, nil
}

func (r *Ridge) validateLoaded() error {
	w := len(r.Coef)
	if w == 0 || len(r.Means) != w || len(r.Scales) != w {
		return errors.NewPredictionError("saved ridge model has inconsistent coefficients")
	}
	for _, s := range r.Scales {
		if s == 0 {
			return errors.NewPredictionError("saved ridge model has a zero scale")
		}
	}
	return nil
}
