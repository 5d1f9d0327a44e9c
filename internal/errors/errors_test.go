package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *PipelineError
		want string
	}{
		{
			name: "message only",
			err:  NewTrainingError("no training rows"),
			want: "[training] no training rows",
		},
		{
			name: "with stage",
			err:  &PipelineError{Kind: KindFeature, Stage: "features", Message: "lag 0"},
			want: "[feature] features: lag 0",
		},
		{
			name: "with cause",
			err:  NewIOError("open", "sales.csv", fs.ErrNotExist),
			want: "[io] open sales.csv: file does not exist",
		},
		{
			name: "nil",
			err:  nil,
			want: "unknown pipeline error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestNewParseError(t *testing.T) {
	err := NewParseError(3, "quantity", "invalid number %q", "many")
	assert.Equal(t, KindParse, err.Kind)
	assert.Equal(t, `invalid number "many"`, err.Message)
	assert.Equal(t, 3, err.Context["line"])
	assert.Equal(t, "quantity", err.Context["column"])

	header := NewParseError(0, "", "missing header")
	assert.Empty(t, header.Context)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"parse", NewParseError(1, "date", "bad date"), KindParse},
		{"prediction", NewPredictionError("unfitted"), KindPrediction},
		{"config", NewConfigError(nil, "bad"), KindConfig},
		{"wrapped", fmt.Errorf("load: %w", NewFeatureError("leak")), KindFeature},
		{"plain", stderrors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			if tt.want != "" {
				assert.True(t, IsKind(tt.err, tt.want))
			}
		})
	}
	assert.False(t, IsKind(nil, KindIO))
}

func TestWithStage(t *testing.T) {
	err := WithStage(NewTrainingError("empty"), "features")
	assert.Equal(t, "features", StageOf(err))

	// the first stage recorded wins
	err = WithStage(err, "fit")
	assert.Equal(t, "features", StageOf(err))

	plain := stderrors.New("plain")
	assert.Same(t, plain, WithStage(plain, "load"))
	assert.Empty(t, StageOf(plain))
	assert.Nil(t, WithStage(nil, "load"))
}

func TestPipelineError_Unwrap(t *testing.T) {
	err := NewIOError("write", "out.csv", fs.ErrPermission)
	require.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, "out.csv", err.Context["path"])

	var nilErr *PipelineError
	assert.NoError(t, nilErr.Unwrap())
}
