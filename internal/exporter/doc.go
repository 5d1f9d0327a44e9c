// Package exporter writes forecast results to disk.
//
// ForecastWriter renders results as CSV (sku_id,date,predicted_quantity)
// or as an xlsx workbook, sorted by SKU then date. Every file is written
// to a temporary sibling and renamed into place so a failed run never
// leaves a partial or stale-mixed output behind.
//
// Example usage:
//
//	writer := exporter.NewForecastWriter(exporter.DefaultForecastWriterOptions())
//	if err := writer.Write("data/results/forecast.csv", results); err != nil {
//		return err
//	}
package exporter
