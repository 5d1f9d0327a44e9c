// Package files locates sales history inputs on disk.
//
// A forecasting run accepts either a single sales file or a directory of
// exports. Discovery expands a directory into its .csv, .xlsx and .xlsm
// files in name order, skipping hidden files and Excel lock files:
//
//	discovery := files.NewDiscovery(paths.BaseDir)
//	inputs, err := discovery.ResolveInputs("data/raw")
//	// inputs: [.../data/raw/sales_2024_01.csv .../data/raw/sales_2024_02.xlsx]
package files
