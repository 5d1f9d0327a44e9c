package exporter

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"skuforecast/internal/errors"
	"skuforecast/pkg/contracts/domain"
)

// Output columns, in order
const (
	ColSKU       = "sku_id"
	ColDate      = "date"
	ColPredicted = "predicted_quantity"
)

// ForecastHeaders is the header row of every forecast file
var ForecastHeaders = []string{ColSKU, ColDate, ColPredicted}

// ForecastWriterOptions configures forecast output
type ForecastWriterOptions struct {
	// Precision is the number of decimal places; -1 writes the shortest
	// round-trip form.
	Precision int
	BOMPrefix bool
	Logger    *slog.Logger
}

// DefaultForecastWriterOptions returns shortest-form output without BOM
func DefaultForecastWriterOptions() ForecastWriterOptions {
	return ForecastWriterOptions{Precision: -1}
}

// ForecastWriter persists forecast results as CSV or xlsx
type ForecastWriter struct {
	opts   ForecastWriterOptions
	csv    *CSVWriter
	logger *slog.Logger
}

// NewForecastWriter creates a new forecast writer
func NewForecastWriter(opts ForecastWriterOptions) *ForecastWriter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastWriter{
		opts:   opts,
		csv:    NewCSVWriter(logger),
		logger: logger,
	}
}

// Write replaces path with results sorted by SKU then date. Files ending
// in .xlsx are written as workbooks, everything else as CSV. The target
// is either fully replaced or left untouched.
func (w *ForecastWriter) Write(path string, results []domain.ForecastResult) error {
	for _, r := range results {
		if !finite(r.PredictedQuantity) {
			return errors.NewPredictionError("non-finite prediction for %s on %s",
				r.SKU, r.Date.Format(domain.DateLayout)).With("sku_id", r.SKU)
		}
	}

	sorted := SortResults(results)

	var err error
	if isWorkbook(path) {
		err = w.writeXLSX(path, sorted)
	} else {
		err = w.writeCSV(path, sorted)
	}
	if err != nil {
		return errors.NewIOError("write", path, err)
	}

	w.logger.Info("Forecast written",
		slog.String("path", path),
		slog.Int("rows", len(sorted)))
	return nil
}

func (w *ForecastWriter) writeCSV(path string, results []domain.ForecastResult) error {
	records := make([][]string, 0, len(results))
	for _, r := range results {
		records = append(records, []string{
			r.SKU,
			r.Date.Format(domain.DateLayout),
			formatQuantity(r.PredictedQuantity, w.opts.Precision),
		})
	}
	return w.csv.WriteCSV(path, WriteOptions{
		Headers:   ForecastHeaders,
		Records:   records,
		BOMPrefix: w.opts.BOMPrefix,
	})
}

func (w *ForecastWriter) writeXLSX(path string, results []domain.ForecastResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &ForecastHeaders); err != nil {
		return err
	}

	for i, r := range results {
		row := i + 2
		if err := f.SetCellStr(sheet, cellName(1, row), r.SKU); err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cellName(2, row), r.Date.Format(domain.DateLayout)); err != nil {
			return err
		}
		value := roundQuantity(r.PredictedQuantity, w.opts.Precision)
		if err := f.SetCellFloat(sheet, cellName(3, row), value, w.opts.Precision, 64); err != nil {
			return err
		}
	}

	return writeAtomic(path, func(out io.Writer) error {
		return f.Write(out)
	})
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func isWorkbook(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".xlsx" || ext == ".xlsm"
}

// SortResults returns a copy of results ordered by SKU then date
func SortResults(results []domain.ForecastResult) []domain.ForecastResult {
	sorted := make([]domain.ForecastResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SKU != sorted[j].SKU {
			return sorted[i].SKU < sorted[j].SKU
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// ReadForecasts loads a forecast file previously produced by Write
func ReadForecasts(path string) ([]domain.ForecastResult, error) {
	var rows [][]string
	if isWorkbook(path) {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, errors.NewIOError("open", path, err)
		}
		defer f.Close()
		rows, err = f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()), excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, errors.NewIOError("read", path, err)
		}
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, errors.NewIOError("open", path, err)
		}
		defer file.Close()
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = len(ForecastHeaders)
		rows, err = reader.ReadAll()
		if err != nil {
			return nil, errors.NewParseError(0, "", "malformed forecast file: %v", err)
		}
	}

	return parseForecastRows(rows)
}

func parseForecastRows(rows [][]string) ([]domain.ForecastResult, error) {
	if len(rows) == 0 {
		return nil, errors.NewParseError(1, "", "empty forecast file")
	}
	for i, want := range ForecastHeaders {
		got := ""
		if i < len(rows[0]) {
			got = strings.TrimSpace(strings.TrimPrefix(rows[0][i], "\ufeff"))
		}
		if got != want {
			return nil, errors.NewParseError(1, want, "unexpected header %q", got)
		}
	}

	results := make([]domain.ForecastResult, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) < len(ForecastHeaders) {
			return nil, errors.NewParseError(line, "", "expected %d fields, got %d", len(ForecastHeaders), len(row))
		}
		date, err := time.Parse(domain.DateLayout, strings.TrimSpace(row[1]))
		if err != nil {
			return nil, errors.NewParseError(line, ColDate, "invalid date %q", row[1])
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, errors.NewParseError(line, ColPredicted, "invalid quantity %q", row[2])
		}
		results = append(results, domain.ForecastResult{
			SKU:               strings.TrimSpace(row[0]),
			Date:              date,
			PredictedQuantity: qty,
		})
	}
	return results, nil
}
