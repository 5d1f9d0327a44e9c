package features

import (
	"fmt"
	"time"

	"skuforecast/internal/errors"
)

// OtherCategory is the one-hot bucket for categories unseen at training time
const OtherCategory = "__other__"

// Calendar feature columns, always first in a schema
var calendarColumns = []string{
	"day_of_week",
	"month",
	"quarter",
	"day_of_month",
	"is_weekend",
	"is_holiday",
	"is_holiday_or_adjacent",
}

// Schema is the ordered feature layout a model was trained on
type Schema struct {
	Columns    []string `json:"columns"`
	Lags       []int    `json:"lags"`
	Windows    []int    `json:"windows"`
	Categories []string `json:"categories"`
	Sentinel   string   `json:"sentinel"`
}

// NewSchema lays out columns for the given lags, windows and category vocabulary
func NewSchema(lags, windows []int, categories []string, sentinel string) *Schema {
	s := &Schema{
		Lags:       append([]int(nil), lags...),
		Windows:    append([]int(nil), windows...),
		Categories: append([]string(nil), categories...),
		Sentinel:   sentinel,
	}

	s.Columns = append(s.Columns, calendarColumns...)
	for _, k := range lags {
		s.Columns = append(s.Columns, fmt.Sprintf("lag_%d", k))
	}
	for _, w := range windows {
		s.Columns = append(s.Columns,
			fmt.Sprintf("rolling_mean_%d", w),
			fmt.Sprintf("rolling_sum_%d", w))
	}
	s.Columns = append(s.Columns, "history_len", "last_price")
	for _, c := range categories {
		s.Columns = append(s.Columns, "category="+c)
	}
	s.Columns = append(s.Columns, "category="+OtherCategory)

	return s
}

// Width returns the number of feature columns
func (s *Schema) Width() int {
	return len(s.Columns)
}

// Index returns the position of column name, or -1
func (s *Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// categoryOffset is the column of the first category indicator
func (s *Schema) categoryOffset() int {
	return len(calendarColumns) + len(s.Lags) + 2*len(s.Windows) + 2
}

// Row is the feature vector for one (SKU, date) pair
type Row struct {
	SKU      string
	Date     time.Time
	Category string
	Values   []float64

	// Target is the observed quantity; nil for prediction rows
	Target *float64

	// LatestSource is the latest history date consumed; zero when none was
	LatestSource time.Time
	HistoryLen   int
}

// Value returns the named feature, or false if the schema lacks it
func (r Row) Value(schema *Schema, name string) (float64, bool) {
	idx := schema.Index(name)
	if idx < 0 || idx >= len(r.Values) {
		return 0, false
	}
	return r.Values[idx], true
}

// Dataset is a set of rows sharing one schema
type Dataset struct {
	Schema *Schema
	Rows   []Row
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Matrix returns the feature values row by row
func (d *Dataset) Matrix() [][]float64 {
	X := make([][]float64, len(d.Rows))
	for i, r := range d.Rows {
		X[i] = r.Values
	}
	return X
}

// Targets returns the target column. Every row must carry a target.
func (d *Dataset) Targets() ([]float64, error) {
	y := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		if r.Target == nil {
			return nil, errors.NewFeatureError("row %s/%s has no target", r.SKU, r.Date.Format("2006-01-02"))
		}
		y[i] = *r.Target
	}
	return y, nil
}
