package dataprocessing

import (
	"sort"
	"time"

	"skuforecast/pkg/contracts/domain"
)

// Series maps a SKU to its daily observations in ascending date order.
// Each date appears at most once per SKU.
type Series map[string][]domain.SalesRecord

// GroupBySKU groups records by SKU and orders them by date. Rows for the same
// SKU and date, e.g. from different stores, are summed into one observation:
// the first non-empty category and price win, and the store is kept only when
// all rows agree on it.
func GroupBySKU(records []domain.SalesRecord) Series {
	type key struct {
		sku  string
		date time.Time
	}

	merged := make(map[key]int, len(records))
	series := make(Series)

	for _, record := range records {
		record.Date = domain.Day(record.Date)
		k := key{sku: record.SKU, date: record.Date}

		idx, exists := merged[k]
		if !exists {
			merged[k] = len(series[record.SKU])
			series[record.SKU] = append(series[record.SKU], record)
			continue
		}

		existing := &series[record.SKU][idx]
		existing.Quantity += record.Quantity
		if existing.Category == "" {
			existing.Category = record.Category
		}
		if existing.Price == nil && record.Price != nil {
			price := *record.Price
			existing.Price = &price
		}
		if existing.StoreID != record.StoreID {
			existing.StoreID = ""
		}
		existing.Added = existing.Added && record.Added
	}

	for sku := range series {
		obs := series[sku]
		sort.Slice(obs, func(i, j int) bool {
			return obs[i].Date.Before(obs[j].Date)
		})
	}

	return series
}

// SKUs returns the SKU ids in ascending order
func (s Series) SKUs() []string {
	skus := make([]string, 0, len(s))
	for sku := range s {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

// Len returns the total number of observations across all SKUs
func (s Series) Len() int {
	total := 0
	for _, obs := range s {
		total += len(obs)
	}
	return total
}

// DateRange returns the earliest and latest observation dates.
// ok is false when the series holds no observations.
func (s Series) DateRange() (first, last time.Time, ok bool) {
	for _, obs := range s {
		if len(obs) == 0 {
			continue
		}
		if !ok || obs[0].Date.Before(first) {
			first = obs[0].Date
		}
		if !ok || obs[len(obs)-1].Date.After(last) {
			last = obs[len(obs)-1].Date
		}
		ok = true
	}
	return first, last, ok
}

// Category returns the first non-empty category recorded for sku
func (s Series) Category(sku string) string {
	for _, r := range s[sku] {
		if r.Category != "" {
			return r.Category
		}
	}
	return ""
}

// Records flattens the series back into records ordered by SKU then date
func (s Series) Records() []domain.SalesRecord {
	records := make([]domain.SalesRecord, 0, s.Len())
	for _, sku := range s.SKUs() {
		records = append(records, s[sku]...)
	}
	return records
}

// Append returns a copy of the series with record added to its SKU.
// record must be later than every existing observation of that SKU.
func (s Series) Append(record domain.SalesRecord) Series {
	out := make(Series, len(s))
	for sku, obs := range s {
		out[sku] = obs
	}
	obs := s[record.SKU]
	extended := make([]domain.SalesRecord, len(obs), len(obs)+1)
	copy(extended, obs)
	out[record.SKU] = append(extended, record)
	return out
}
