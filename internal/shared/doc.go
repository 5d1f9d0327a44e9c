// Package shared holds helpers used across the forecasting packages.
//
// The testutil subpackage provides:
//
//   - BufferedSlogHandler for asserting on structured log output
//   - sales fixture builders that write CSV input files for tests
//
// Example usage:
//
//	func TestLoad(t *testing.T) {
//	    rows := testutil.DailySeries("A1", "snacks", start, 30, testutil.Constant(10))
//	    path := testutil.WriteSalesCSV(t, t.TempDir(), rows)
//	    ...
//	}
//
// Nothing in this tree is imported by production code.
package shared
