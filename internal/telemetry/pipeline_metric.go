package internaltelemetry

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// PipelineMetrics holds all the metric instruments for a drain pipeline.
type PipelineMetrics struct {
	PagesReadCounter          metric.Int64Counter
	PagesWrittenCounter       metric.Int64Counter
	BytesWrittenCounter       metric.Int64Counter
	ShortWritesCounter        metric.Int64Counter
	BufferedPagesUpDown       metric.Int64UpDownCounter
	BackpressureWaitHistogram metric.Int64Histogram
	RunDurationHistogram      metric.Int64Histogram
}

// NewPipelineMetrics creates and registers all the metrics for the pipeline.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	pagesRead, err := meter.Int64Counter(
		"draino.pipeline.pages_read_total",
		metric.WithDescription("Total number of pages filled from the input, including the partial tail."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	pagesWritten, err := meter.Int64Counter(
		"draino.pipeline.pages_written_total",
		metric.WithDescription("Total number of pages written to the output."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	bytesWritten, err := meter.Int64Counter(
		"draino.pipeline.bytes_written_total",
		metric.WithDescription("Total number of bytes accepted by the output."),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	shortWrites, err := meter.Int64Counter(
		"draino.pipeline.short_writes_total",
		metric.WithDescription("Writes where the output accepted fewer bytes than requested."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	buffered, err := meter.Int64UpDownCounter(
		"draino.pipeline.buffered_pages",
		metric.WithDescription("Pages filled and waiting for the writer."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	backpressure, err := meter.Int64Histogram(
		"draino.pipeline.backpressure_wait",
		metric.WithDescription("Time the reader spent blocked waiting for a free page."),
		metric.WithUnit("us"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Int64Histogram(
		"draino.pipeline.run_duration",
		metric.WithDescription("Wall time of a complete drain run."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		PagesReadCounter:          pagesRead,
		PagesWrittenCounter:       pagesWritten,
		BytesWrittenCounter:       bytesWritten,
		ShortWritesCounter:        shortWrites,
		BufferedPagesUpDown:       buffered,
		BackpressureWaitHistogram: backpressure,
		RunDurationHistogram:      runDuration,
	}, nil
}

// NewNoopPipelineMetrics returns instruments that record nothing.
func NewNoopPipelineMetrics() *PipelineMetrics {
	m, err := NewPipelineMetrics(noop.NewMeterProvider().Meter(""))
	if err != nil {
		// The noop meter never fails to create instruments.
		panic(err)
	}
	return m
}
