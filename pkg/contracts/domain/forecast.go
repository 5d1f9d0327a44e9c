package domain

import (
	"time"
)

// ForecastResult is a single SKU-level prediction for one future day
type ForecastResult struct {
	SKU               string    `json:"sku_id"`
	Date              time.Time `json:"date"`
	PredictedQuantity float64   `json:"predicted_quantity"`
}

// ForecastHorizon lists the future dates to predict for every SKU
type ForecastHorizon struct {
	Origin time.Time   `json:"origin"` // last observed date
	Dates  []time.Time `json:"dates"`
}

// NewForecastHorizon builds a horizon of `days` consecutive days after origin
func NewForecastHorizon(origin time.Time, days int) ForecastHorizon {
	origin = Day(origin)
	dates := make([]time.Time, 0, days)
	for i := 1; i <= days; i++ {
		dates = append(dates, origin.AddDate(0, 0, i))
	}
	return ForecastHorizon{Origin: origin, Dates: dates}
}

// Len returns the number of forecast days
func (h ForecastHorizon) Len() int {
	return len(h.Dates)
}
