package operations

import (
	"log/slog"

	"skuforecast/internal/exporter"
	"skuforecast/internal/infrastructure"
	"skuforecast/pkg/contracts/domain"
)

// ResultWriter persists the forecasts of a successful run
type ResultWriter interface {
	Write(path string, results []domain.ForecastResult) error
}

// Options carries the runner's collaborators. Zero values fall back to
// slog.Default, no-op telemetry and an exporter.ForecastWriter configured
// from forecast.precision.
type Options struct {
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	Writer    ResultWriter
}

func (o Options) withDefaults(precision int) Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Telemetry == nil {
		o.Telemetry = infrastructure.NoopTelemetry()
	}
	if o.Writer == nil {
		o.Writer = exporter.NewForecastWriter(exporter.ForecastWriterOptions{
			Precision: precision,
			Logger:    o.Logger,
		})
	}
	return o
}
