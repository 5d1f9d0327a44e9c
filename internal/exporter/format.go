package exporter

import (
	"math"

	"github.com/shopspring/decimal"
)

// formatQuantity renders a predicted quantity. precision < 0 yields the
// shortest representation that round-trips; otherwise exactly precision
// decimal places are written.
func formatQuantity(v float64, precision int) string {
	d := decimal.NewFromFloat(v)
	if precision < 0 {
		return d.String()
	}
	return d.StringFixed(int32(precision))
}

// roundQuantity applies the same rounding as formatQuantity for numeric cells
func roundQuantity(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(precision)).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
