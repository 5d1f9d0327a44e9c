package model

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skuforecast/internal/config"
	"skuforecast/internal/errors"
	"skuforecast/internal/features"
)

func allKinds() []Regressor {
	return []Regressor{
		NewGradientBoosting(GBMParams{NumTrees: 50, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 1}),
		NewRidge(1.0),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    string
		want    string
		wantErr bool
	}{
		{"gbm", KindGBM, false},
		{"", KindGBM, false},
		{"ridge", KindRidge, false},
		{"catboost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := config.Default().Model
			cfg.Kind = tt.kind
			m, err := New(cfg)
			if tt.wantErr {
				assert.True(t, errors.IsKind(err, errors.KindConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Kind())
		})
	}

	g, err := New(config.Default().Model)
	require.NoError(t, err)
	assert.Equal(t, 200, g.(*GradientBoosting).Params.NumTrees)
}

func TestFit_InvalidTrainingData(t *testing.T) {
	tests := []struct {
		name string
		X    [][]float64
		y    []float64
	}{
		{"empty", nil, nil},
		{"length mismatch", [][]float64{{1}, {2}}, []float64{1}},
		{"no features", [][]float64{{}}, []float64{1}},
		{"ragged rows", [][]float64{{1, 2}, {3}}, []float64{1, 2}},
		{"NaN target", [][]float64{{1}, {2}}, []float64{1, math.NaN()}},
		{"Inf feature", [][]float64{{math.Inf(1)}, {2}}, []float64{1, 2}},
	}

	for _, m := range allKinds() {
		for _, tt := range tests {
			t.Run(m.Kind()+"/"+tt.name, func(t *testing.T) {
				err := m.Fit(tt.X, tt.y)
				require.Error(t, err)
				assert.True(t, errors.IsKind(err, errors.KindTraining), "got %v", err)
			})
		}
	}
}

func TestPredict_Errors(t *testing.T) {
	for _, m := range allKinds() {
		t.Run(m.Kind(), func(t *testing.T) {
			_, err := m.Predict([][]float64{{1, 2}})
			assert.True(t, errors.IsKind(err, errors.KindPrediction), "predict before fit")

			require.NoError(t, m.Fit([][]float64{{1, 2}, {2, 3}, {3, 5}}, []float64{1, 2, 3}))

			_, err = m.Predict([][]float64{{1, 2, 3}})
			assert.True(t, errors.IsKind(err, errors.KindPrediction), "column mismatch")

			_, err = m.Predict([][]float64{{1, math.NaN()}})
			assert.True(t, errors.IsKind(err, errors.KindPrediction), "NaN feature")

			out, err := m.Predict(nil)
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestFit_ConstantTarget(t *testing.T) {
	X := make([][]float64, 60)
	y := make([]float64, 60)
	for i := range X {
		X[i] = []float64{float64(i % 7), float64(i), 1}
		y[i] = 10
	}

	for _, m := range allKinds() {
		t.Run(m.Kind(), func(t *testing.T) {
			require.NoError(t, m.Fit(X, y))
			out, err := m.Predict([][]float64{{3, 100, 1}, {0, -5, 1}})
			require.NoError(t, err)
			for _, v := range out {
				assert.InDelta(t, 10.0, v, 1e-9)
			}
		})
	}
}

func TestGradientBoosting_StepFunction(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i)})
		if i > 5 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	g := NewGradientBoosting(GBMParams{NumTrees: 100, LearningRate: 0.1, MaxDepth: 1, MinSamplesLeaf: 1})
	require.NoError(t, g.Fit(X, y))
	assert.NotEmpty(t, g.Trees)
	assert.Equal(t, 5.5, g.Trees[0].Nodes[0].Threshold)

	out, err := g.Predict([][]float64{{0}, {5}, {6}, {19}, {100}})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out[0], 0.01)
	assert.InDelta(t, 0.0, out[1], 0.01)
	assert.InDelta(t, 1.0, out[2], 0.01)
	assert.InDelta(t, 1.0, out[3], 0.01)
	assert.InDelta(t, 1.0, out[4], 0.01)
}

func TestGradientBoosting_Linear(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 50; i++ {
		X = append(X, []float64{float64(i)})
		y = append(y, 2*float64(i)+1)
	}

	g := NewGradientBoosting(GBMParams{NumTrees: 300, LearningRate: 0.1, MaxDepth: 3, MinSamplesLeaf: 1})
	require.NoError(t, g.Fit(X, y))

	out, err := g.Predict([][]float64{{10}, {25}, {40}})
	require.NoError(t, err)
	assert.InDelta(t, 21.0, out[0], 0.5)
	assert.InDelta(t, 51.0, out[1], 0.5)
	assert.InDelta(t, 81.0, out[2], 0.5)
}

func TestRidge_RecoversLinearSignal(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 35; i++ {
		x1, x2 := float64(i%7), float64(i%5)
		X = append(X, []float64{x1, x2, 4})
		y = append(y, 3*x1-2*x2+5)
	}

	r := NewRidge(1e-6)
	require.NoError(t, r.Fit(X, y))

	out, err := r.Predict([][]float64{{2, 3, 4}, {6, 0, 4}})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, out[0], 1e-3)
	assert.InDelta(t, 23.0, out[1], 1e-3)
	assert.Equal(t, 0.0, r.Coef[2], "constant column gets no weight")
}

func TestRidge_ShrinksWithLambda(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i)})
		y = append(y, float64(i))
	}

	weak, strong := NewRidge(1e-6), NewRidge(1e6)
	require.NoError(t, weak.Fit(X, y))
	require.NoError(t, strong.Fit(X, y))
	assert.Greater(t, math.Abs(weak.Coef[0]), math.Abs(strong.Coef[0]))
}

func trainingSet(width int) ([][]float64, []float64) {
	var X [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		row := make([]float64, width)
		for j := range row {
			row[j] = float64((i*(j+3))%11) + float64(j)
		}
		X = append(X, row)
		y = append(y, row[0]*1.5+row[1]-row[2]/2)
	}
	return X, y
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	schema := features.NewSchema([]int{1}, nil, nil, features.SentinelZero)
	X, y := trainingSet(schema.Width())

	for _, m := range allKinds() {
		t.Run(m.Kind(), func(t *testing.T) {
			require.NoError(t, m.Fit(X, y))
			want, err := m.Predict(X)
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "models", "model.json")
			require.NoError(t, SaveFile(path, m, schema))

			loaded, loadedSchema, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, m.Kind(), loaded.Kind())
			assert.Equal(t, schema.Columns, loadedSchema.Columns)

			got, err := loaded.Predict(X)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	schema := features.NewSchema([]int{1}, nil, nil, features.SentinelZero)
	X, y := trainingSet(schema.Width())
	r := NewRidge(1)
	require.NoError(t, r.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, r, schema))

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	mutate := func(key, value string) string {
		clone := make(map[string]json.RawMessage, len(env))
		for k, v := range env {
			clone[k] = v
		}
		clone[key] = json.RawMessage(value)
		out, err := json.Marshal(clone)
		require.NoError(t, err)
		return string(out)
	}

	narrow := features.NewSchema(nil, nil, nil, features.SentinelZero)
	narrowJSON, err := json.Marshal(narrow)
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
	}{
		{"not json", "{"},
		{"wrong format", mutate("format", `"v0"`)},
		{"unknown kind", mutate("kind", `"catboost"`)},
		{"missing schema", mutate("schema", `null`)},
		{"width mismatch", mutate("schema", string(narrowJSON))},
		{"bad params", mutate("params", `{"coef":[1],"means":[],"scales":[]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}

	_, _, err = Load(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)

	assert.Error(t, Save(&buf, nil, schema))
}
