package dataprocessing

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"skuforecast/internal/errors"
	"skuforecast/pkg/contracts/domain"
)

// Canonical column names of a sales file
const (
	ColSKU      = "sku_id"
	ColDate     = "date"
	ColQuantity = "quantity"
	ColStore    = "store_id"
	ColCategory = "category"
	ColPrice    = "sales_price"
)

// columnAliases maps accepted header spellings to canonical names
var columnAliases = map[string]string{
	"sku_id":         ColSKU,
	"sku":            ColSKU,
	"date":           ColDate,
	"quantity":       ColQuantity,
	"sales_quantity": ColQuantity,
	"qty":            ColQuantity,
	"store_id":       ColStore,
	"store":          ColStore,
	"category":       ColCategory,
	"category_id":    ColCategory,
	"sales_price":    ColPrice,
	"price":          ColPrice,
}

var requiredColumns = []string{ColSKU, ColDate, ColQuantity}

// dateLayouts are tried in order when parsing the date column
var dateLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	"02.01.2006",
	time.RFC3339,
}

// fieldColumns maps SalesRecord fields to the column reported in a ParseError
var fieldColumns = map[string]string{
	"SKU":      ColSKU,
	"Date":     ColDate,
	"Quantity": ColQuantity,
	"Price":    ColPrice,
}

// LoadSales reads a sales history file. The format is chosen by extension:
// .xlsx is read with excelize, anything else as CSV. A nil logger uses
// slog.Default.
func LoadSales(logger *slog.Logger, path string) ([]domain.SalesRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		records []domain.SalesRecord
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = loadXLSX(path)
	default:
		records, err = loadCSV(path)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Loaded sales records",
		slog.String("path", path),
		slog.Int("records", len(records)))
	return records, nil
}

func loadCSV(path string) ([]domain.SalesRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	return ReadSalesCSV(f)
}

// ReadSalesCSV parses sales records from CSV data with a header row
func ReadSalesCSV(r io.Reader) ([]domain.SalesRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewParseError(1, "", "empty input: missing header row")
	}
	if err != nil {
		return nil, csvError(err)
	}

	parser, err := newRowParser(header)
	if err != nil {
		return nil, err
	}

	var records []domain.SalesRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := reader.FieldPos(0)

		record, skip, err := parser.parse(row, line)
		if err != nil {
			return nil, err
		}
		if !skip {
			records = append(records, record)
		}
	}

	return records, nil
}

func csvError(err error) error {
	var pErr *csv.ParseError
	if stderrors.As(err, &pErr) {
		return errors.NewParseError(pErr.Line, "", "malformed csv: %v", pErr.Err)
	}
	return errors.NewIOError("read", "csv", err)
}

// loadXLSX reads the sheet named "sales" or, failing that, the first sheet
func loadXLSX(path string) ([]domain.SalesRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	sheetName := ""
	for _, name := range f.GetSheetList() {
		if strings.EqualFold(strings.TrimSpace(name), "sales") {
			sheetName = name
			break
		}
	}
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.NewParseError(0, "", "workbook %s has no sheets", path)
		}
		sheetName = sheets[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, errors.NewIOError("read sheet "+sheetName, path, err)
	}
	if len(rows) == 0 {
		return nil, errors.NewParseError(1, "", "empty input: missing header row")
	}

	parser, err := newRowParser(rows[0])
	if err != nil {
		return nil, err
	}

	var records []domain.SalesRecord
	for i, row := range rows[1:] {
		record, skip, err := parser.parse(row, i+2)
		if err != nil {
			return nil, err
		}
		if !skip {
			records = append(records, record)
		}
	}

	return records, nil
}

// rowParser turns raw cells into validated SalesRecords using a header mapping
type rowParser struct {
	columns  map[string]int
	validate *validator.Validate
}

func newRowParser(header []string) (*rowParser, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		canonical, ok := columnAliases[name]
		if !ok {
			continue
		}
		// first occurrence wins
		if _, seen := columns[canonical]; !seen {
			columns[canonical] = i
		}
	}

	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, errors.NewParseError(1, col, "missing required column %q", col)
		}
	}

	return &rowParser{columns: columns, validate: validator.New()}, nil
}

func (p *rowParser) cell(row []string, col string) string {
	idx, ok := p.columns[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parse converts one data row; skip is true for fully blank rows
func (p *rowParser) parse(row []string, line int) (domain.SalesRecord, bool, error) {
	blank := true
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			blank = false
			break
		}
	}
	if blank {
		return domain.SalesRecord{}, true, nil
	}

	date, err := parseDate(p.cell(row, ColDate))
	if err != nil {
		return domain.SalesRecord{}, false, errors.NewParseError(line, ColDate, "invalid date %q", p.cell(row, ColDate))
	}

	quantity, err := parseNumber(p.cell(row, ColQuantity))
	if err != nil {
		return domain.SalesRecord{}, false, errors.NewParseError(line, ColQuantity, "invalid quantity %q: %v", p.cell(row, ColQuantity), err)
	}

	record := domain.SalesRecord{
		SKU:      p.cell(row, ColSKU),
		Date:     date,
		Quantity: quantity,
		StoreID:  p.cell(row, ColStore),
		Category: p.cell(row, ColCategory),
	}

	if raw := p.cell(row, ColPrice); raw != "" {
		price, err := parseNumber(raw)
		if err != nil {
			return domain.SalesRecord{}, false, errors.NewParseError(line, ColPrice, "invalid price %q: %v", raw, err)
		}
		record.Price = &price
	}

	if err := p.validate.Struct(record); err != nil {
		var vErrs validator.ValidationErrors
		if stderrors.As(err, &vErrs) && len(vErrs) > 0 {
			field := vErrs[0]
			return domain.SalesRecord{}, false, errors.NewParseError(line, fieldColumns[field.StructField()],
				"%s failed %q validation", fieldColumns[field.StructField()], field.Tag())
		}
		return domain.SalesRecord{}, false, errors.NewParseError(line, "", "invalid row: %v", err)
	}

	return record, false, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseNumber parses a finite decimal number
func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value is not finite")
	}
	return v, nil
}
