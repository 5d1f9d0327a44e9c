package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// SalesRow is one line of a sales fixture file
type SalesRow struct {
	SKU      string
	Date     time.Time
	Quantity float64
	StoreID  string
	Category string
	Price    string
}

// SalesHeader is the canonical header used by fixture files
const SalesHeader = "sku_id,date,quantity,store_id,category,sales_price"

// Date parses a YYYY-MM-DD string and fails the test on error
func Date(t testing.TB, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad fixture date %q: %v", s, err)
	}
	return d
}

// DailySeries returns one row per day starting at start, with quantity
// given by fn(dayIndex)
func DailySeries(sku, category string, start time.Time, days int, fn func(i int) float64) []SalesRow {
	rows := make([]SalesRow, 0, days)
	for i := 0; i < days; i++ {
		rows = append(rows, SalesRow{
			SKU:      sku,
			Date:     start.AddDate(0, 0, i),
			Quantity: fn(i),
			Category: category,
		})
	}
	return rows
}

// Constant returns a quantity function that always yields v
func Constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

// FormatSalesCSV renders rows with SalesHeader
func FormatSalesCSV(rows []SalesRow) string {
	var b strings.Builder
	b.WriteString(SalesHeader)
	b.WriteByte('\n')
	for _, r := range rows {
		fmt.Fprintf(&b, "%s,%s,%g,%s,%s,%s\n",
			r.SKU, r.Date.Format("2006-01-02"), r.Quantity, r.StoreID, r.Category, r.Price)
	}
	return b.String()
}

// WriteFile writes content to name inside dir and returns the full path
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

// WriteSalesCSV writes rows as a CSV file inside dir and returns the path
func WriteSalesCSV(t testing.TB, dir string, rows []SalesRow) string {
	t.Helper()
	return WriteFile(t, dir, "sales.csv", FormatSalesCSV(rows))
}
