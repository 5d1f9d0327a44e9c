// Package operations runs the forecasting pipeline.
//
// A run is a fixed sequence of steps registered with a Registry:
//
//	load -> features -> fit -> predict -> write
//
// Runner executes the steps sequentially in dependency order. The first
// failing step aborts the run: its error is returned with the step recorded
// on it, and every step that depends on it is marked skipped. Nothing is
// written unless all steps before "write" succeed.
//
// Each step gets its own span from the run's tracer and its duration is
// recorded on the forecast_stage_duration histogram.
//
// Example usage:
//
//	runner, err := operations.NewRunner(cfg, operations.Options{Logger: logger})
//	if err != nil {
//		return err
//	}
//	resp, err := runner.Execute(ctx, operations.RunRequest{
//		InputPath:  paths.SalesCSV,
//		OutputPath: paths.ForecastCSV,
//	})
package operations
