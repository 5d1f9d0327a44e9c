package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind string

const (
	KindParse      Kind = "parse"
	KindFeature    Kind = "feature"
	KindTraining   Kind = "training"
	KindPrediction Kind = "prediction"
	KindIO         Kind = "io"
	KindConfig     Kind = "config"
)

// PipelineError is the error type returned by every forecasting stage
type PipelineError struct {
	Kind    Kind                   `json:"kind"`
	Stage   string                 `json:"stage,omitempty"`
	Message string                 `json:"message"`
	Cause   error                  `json:"cause,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Stage != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Stage, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// With attaches a context value and returns the same error
func (e *PipelineError) With(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newError(kind Kind, cause error, format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// NewParseError reports a malformed input row or header.
// line is 1-based; pass 0 when the problem is not tied to a row.
func NewParseError(line int, column, format string, args ...interface{}) *PipelineError {
	err := newError(KindParse, nil, format, args...)
	if line > 0 {
		err.With("line", line)
	}
	if column != "" {
		err.With("column", column)
	}
	return err
}

// NewFeatureError reports a malformed or leakage-unsafe feature computation
func NewFeatureError(format string, args ...interface{}) *PipelineError {
	return newError(KindFeature, nil, format, args...)
}

// NewTrainingError reports invalid or insufficient training data
func NewTrainingError(format string, args ...interface{}) *PipelineError {
	return newError(KindTraining, nil, format, args...)
}

// NewPredictionError reports a feature/model shape mismatch or an unfitted model
func NewPredictionError(format string, args ...interface{}) *PipelineError {
	return newError(KindPrediction, nil, format, args...)
}

// NewIOError wraps a read or write failure on path
func NewIOError(op, path string, cause error) *PipelineError {
	return newError(KindIO, cause, "%s %s", op, path).With("path", path)
}

// NewConfigError wraps an invalid configuration
func NewConfigError(cause error, format string, args ...interface{}) *PipelineError {
	return newError(KindConfig, cause, format, args...)
}

// KindOf returns the kind of the first PipelineError in err's chain,
// or "" if there is none.
func KindOf(err error) Kind {
	var pErr *PipelineError
	if stderrors.As(err, &pErr) {
		return pErr.Kind
	}
	return ""
}

// IsKind reports whether err carries a PipelineError of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StageOf returns the stage recorded on err, if any
func StageOf(err error) string {
	var pErr *PipelineError
	if stderrors.As(err, &pErr) {
		return pErr.Stage
	}
	return ""
}

// WithStage records the failing stage on err without changing its kind.
// Errors that are not PipelineErrors are returned untouched.
func WithStage(err error, stage string) error {
	if err == nil {
		return nil
	}
	var pErr *PipelineError
	if stderrors.As(err, &pErr) && pErr.Stage == "" {
		pErr.Stage = stage
	}
	return err
}
