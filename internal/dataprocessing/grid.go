package dataprocessing

import (
	"time"

	"skuforecast/pkg/contracts/domain"
)

// GridStatistics summarizes a grid expansion
type GridStatistics struct {
	SKUs         int
	Days         int
	Observed     int
	AddedRecords int
	FirstDate    time.Time
	LastDate     time.Time
}

// ExpandGrid returns a series holding every SKU on every day between the
// global first and last date. Missing days get quantity 0 and Added=true;
// their category and price are forward-filled from the SKU's last observed
// row, then backward-filled for days before its first observation.
func ExpandGrid(series Series) (Series, GridStatistics) {
	first, last, ok := series.DateRange()
	if !ok {
		return Series{}, GridStatistics{}
	}

	days := int(last.Sub(first).Hours()/24) + 1
	stats := GridStatistics{
		SKUs:      len(series),
		Days:      days,
		Observed:  series.Len(),
		FirstDate: first,
		LastDate:  last,
	}

	expanded := make(Series, len(series))
	for _, sku := range series.SKUs() {
		obs := series[sku]
		full := make([]domain.SalesRecord, 0, days)

		i := 0
		for d := 0; d < days; d++ {
			date := first.AddDate(0, 0, d)
			if i < len(obs) && obs[i].Date.Equal(date) {
				full = append(full, obs[i])
				i++
				continue
			}
			full = append(full, domain.SalesRecord{
				SKU:   sku,
				Date:  date,
				Added: true,
			})
			stats.AddedRecords++
		}

		fillAttributes(full)
		expanded[sku] = full
	}

	return expanded, stats
}

// fillAttributes forward-fills then backward-fills category, price and store
// across added rows
func fillAttributes(rows []domain.SalesRecord) {
	var (
		category string
		store    string
		price    *float64
	)
	for i := range rows {
		if rows[i].Added {
			rows[i].Category, rows[i].StoreID, rows[i].Price = category, store, copyPrice(price)
			continue
		}
		if rows[i].Category != "" {
			category = rows[i].Category
		}
		if rows[i].Price != nil {
			price = rows[i].Price
		}
		store = rows[i].StoreID
	}

	category, store, price = "", "", nil
	for i := len(rows) - 1; i >= 0; i-- {
		if !rows[i].Added {
			if rows[i].Category != "" {
				category = rows[i].Category
			}
			if rows[i].Price != nil {
				price = rows[i].Price
			}
			store = rows[i].StoreID
			continue
		}
		if rows[i].Category == "" {
			rows[i].Category = category
		}
		if rows[i].Price == nil {
			rows[i].Price = copyPrice(price)
		}
		if rows[i].StoreID == "" {
			rows[i].StoreID = store
		}
	}
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
