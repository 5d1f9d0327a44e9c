package domain

import (
	"time"
)

// SalesRecord is one observed day of sales for a SKU.
// Records are immutable once loaded.
type SalesRecord struct {
	SKU      string    `json:"sku_id" validate:"required"`
	Date     time.Time `json:"date" validate:"required"`
	Quantity float64   `json:"quantity" validate:"gte=0"`
	StoreID  string    `json:"store_id,omitempty"`
	Category string    `json:"category,omitempty"`
	Price    *float64  `json:"sales_price,omitempty" validate:"omitempty,gte=0"`

	// Added marks rows synthesized by grid expansion rather than read from input
	Added bool `json:"added,omitempty"`
}

// DateKey returns the record date formatted as YYYY-MM-DD
func (r SalesRecord) DateKey() string {
	return r.Date.Format(DateLayout)
}

// HasPrice reports whether a sales price was recorded
func (r SalesRecord) HasPrice() bool {
	return r.Price != nil
}

// DateLayout is the canonical date format used in all input and output files
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC, the granularity of every sales series
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
