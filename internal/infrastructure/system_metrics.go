package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RegisterRuntimeMetrics reports Go runtime gauges on meter. The values are
// sampled on every collection, so a metrics textfile written at the end of a
// run shows the memory the run left behind.
func RegisterRuntimeMetrics(meter metric.Meter) (metric.Registration, error) {
	startTime := time.Now()

	goRoutines, err := meter.Int64ObservableGauge(
		"forecast_runtime_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	heapAlloc, err := meter.Int64ObservableGauge(
		"forecast_runtime_heap_alloc",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	memorySystem, err := meter.Int64ObservableGauge(
		"forecast_runtime_memory_system",
		metric.WithDescription("Memory obtained from the OS in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	gcCount, err := meter.Int64ObservableCounter(
		"forecast_runtime_gc_cycles",
		metric.WithDescription("Completed garbage collection cycles"),
	)
	if err != nil {
		return nil, err
	}

	uptime, err := meter.Float64ObservableGauge(
		"forecast_runtime_uptime",
		metric.WithDescription("Seconds since telemetry was initialized"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		o.ObserveInt64(goRoutines, int64(runtime.NumGoroutine()))
		o.ObserveInt64(heapAlloc, int64(memStats.HeapAlloc))
		o.ObserveInt64(memorySystem, int64(memStats.Sys))
		o.ObserveInt64(gcCount, int64(memStats.NumGC))
		o.ObserveFloat64(uptime, time.Since(startTime).Seconds())
		return nil
	}, goRoutines, heapAlloc, memorySystem, gcCount, uptime)
}
