package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"skuforecast/internal/errors"
	"skuforecast/internal/features"
	"skuforecast/pkg/contracts"
)

// FormatVersion identifies the saved model layout
const FormatVersion = contracts.ModelFormatVersion

// envelope is the on-disk form of a fitted model and its feature schema
type envelope struct {
	Format  string           `json:"format"`
	Kind    string           `json:"kind"`
	SavedAt time.Time        `json:"saved_at"`
	Schema  *features.Schema `json:"schema"`
	Params  json.RawMessage  `json:"params"`
}

// Save writes a fitted model and the schema it was trained on as JSON
func Save(w io.Writer, m Regressor, schema *features.Schema) error {
	if m == nil || schema == nil {
		return errors.NewTrainingError("cannot save: model and schema are required")
	}
	params, err := json.Marshal(m)
	if err != nil {
		return errors.NewTrainingError("encode %s model: %v", m.Kind(), err)
	}

	env := envelope{
		Format:  FormatVersion,
		Kind:    m.Kind(),
		SavedAt: time.Now().UTC(),
		Schema:  schema,
		Params:  params,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(env); err != nil {
		return errors.NewIOError("write", "model", err)
	}
	return nil
}

// Load reads a model written by Save
func Load(r io.Reader) (Regressor, *features.Schema, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, nil, errors.NewIOError("decode", "model", err)
	}
	if env.Format != FormatVersion {
		return nil, nil, errors.NewPredictionError("unsupported model format %q", env.Format)
	}
	if env.Schema == nil {
		return nil, nil, errors.NewPredictionError("saved model has no feature schema")
	}

	var (
		m        Regressor
		validate func() error
	)
	switch env.Kind {
	case KindGBM:
		g := &GradientBoosting{}
		m, validate = g, g.validateLoaded
	case KindRidge:
		rg := &Ridge{}
		m, validate = rg, rg.validateLoaded
	default:
		return nil, nil, errors.NewPredictionError("unknown saved model kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Params, m); err != nil {
		return nil, nil, errors.NewIOError("decode", env.Kind+" params", err)
	}
	if err := validate(); err != nil {
		return nil, nil, err
	}
	if width := modelWidth(m); width != env.Schema.Width() {
		return nil, nil, errors.NewPredictionError("saved model expects %d features, schema has %d", width, env.Schema.Width())
	}

	return m, env.Schema, nil
}

func modelWidth(m Regressor) int {
	switch v := m.(type) {
	case *GradientBoosting:
		return v.Width
	case *Ridge:
		return len(v.Coef)
	}
	return 0
}

// SaveFile writes the model to path through a temp file and rename
func SaveFile(path string, m Regressor, schema *features.Schema) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIOError("create directory for", path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewIOError("create temp file for", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := Save(tmp, m, schema); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError("close", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewIOError("rename", path, err)
	}
	return nil
}

// LoadFile reads a model saved with SaveFile
func LoadFile(path string) (Regressor, *features.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	m, schema, err := Load(f)
	if err != nil {
		return nil, nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return m, schema, nil
}
