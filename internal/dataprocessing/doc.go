// Package dataprocessing loads raw sales history and shapes it into per-SKU
// daily series.
//
// # Loading
//
// LoadSales reads a CSV file, or the "sales" (else first) sheet of an xlsx
// workbook. Headers are matched case-insensitively with aliases:
//
//	sku_id | sku
//	date
//	quantity | sales_quantity | qty
//	store_id | store              (optional)
//	category | category_id        (optional)
//	sales_price | price           (optional)
//
// A missing required column, an unparseable date or a non-numeric, negative
// or non-finite quantity fails with a parse error that names the line and
// column.
//
// # Series
//
// GroupBySKU orders each SKU's rows by date and sums rows that share a date.
// ExpandGrid fills every SKU × day combination between the global first and
// last date with zero-quantity rows marked Added. Summarizer reports per-SKU
// statistics used for rare-SKU handling.
package dataprocessing
