// Package observe holds the OpenTelemetry metric instruments of the
// capture and analysis pipeline and the Prometheus exporter bridge.
// Tests should build instruments with NewMetrics over their own
// MeterProvider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/pa/hablara"

// Metrics holds all instruments. Safe for concurrent use.
type Metrics struct {
	// Frames counts 30 ms frames leaving the VAD, by attribute "label".
	Frames metric.Int64Counter
	// DroppedBuffers counts hardware buffers dropped because the worker fell behind.
	DroppedBuffers metric.Int64Counter
	// VADErrors counts frames whose inference failed.
	VADErrors metric.Int64Counter
	// CappedRecordings counts recordings that hit the maximum duration.
	CappedRecordings metric.Int64Counter
	// AudioLevel is the latest RMS input level.
	AudioLevel metric.Float64Gauge

	// AnalysisDuration tracks offline feature extraction and classification latency.
	AnalysisDuration metric.Float64Histogram
	// AnalysisJobs counts analysis jobs by attribute "status".
	AnalysisJobs metric.Int64Counter
}

var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates all instruments from mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Frames, err = m.Int64Counter("hablara.vad.frames",
		metric.WithDescription("Frames classified by the voice activity detector, by label."),
	); err != nil {
		return nil, err
	}
	if met.DroppedBuffers, err = m.Int64Counter("hablara.capture.dropped_buffers",
		metric.WithDescription("Hardware buffers dropped before processing."),
	); err != nil {
		return nil, err
	}
	if met.VADErrors, err = m.Int64Counter("hablara.vad.errors",
		metric.WithDescription("Frames whose voice activity inference failed."),
	); err != nil {
		return nil, err
	}
	if met.CappedRecordings, err = m.Int64Counter("hablara.recorder.capped",
		metric.WithDescription("Recordings that reached the maximum duration."),
	); err != nil {
		return nil, err
	}
	if met.AudioLevel, err = m.Float64Gauge("hablara.capture.level",
		metric.WithDescription("Latest RMS level of the input signal."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("hablara.analysis.duration",
		metric.WithDescription("Latency of feature extraction and classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisJobs, err = m.Int64Counter("hablara.analysis.jobs",
		metric.WithDescription("Analysis jobs by status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns instruments bound to the global MeterProvider,
// created on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Nop returns instruments that record nothing
func Nop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// RecordFrame counts one classified frame
func (m *Metrics) RecordFrame(ctx context.Context, label string) {
	m.Frames.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// RecordAnalysis records one finished analysis job
func (m *Metrics) RecordAnalysis(ctx context.Context, seconds float64, status string) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.AnalysisDuration.Record(ctx, seconds, attrs)
	m.AnalysisJobs.Add(ctx, 1, attrs)
}
