package tidal

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records delivery metrics.
// Use NewMetricsRecorder for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEnqueue counts an accepted event.
	RecordEnqueue(ctx context.Context, eventType EventType)

	// RecordEviction counts events dropped to keep the queue bounded.
	RecordEviction(ctx context.Context, count int)

	// RecordSend records one sub-stream send after its last attempt.
	RecordSend(ctx context.Context, subStream SubStream, events, attempts int, success bool, duration time.Duration)

	// RecordFlush records a flush attempt.
	RecordFlush(ctx context.Context, success bool, removed int, duration time.Duration)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) RecordEnqueue(context.Context, EventType)                              {}
func (NoopMetrics) RecordEviction(context.Context, int)                                   {}
func (NoopMetrics) RecordSend(context.Context, SubStream, int, int, bool, time.Duration) {}
func (NoopMetrics) RecordFlush(context.Context, bool, int, time.Duration)                 {}

type otelMetrics struct {
	enqueued     metric.Int64Counter
	evicted      metric.Int64Counter
	sends        metric.Int64Counter
	sendAttempts metric.Int64Counter
	sentEvents   metric.Int64Counter
	sendLatency  metric.Float64Histogram
	flushes      metric.Int64Counter
	delivered    metric.Int64Counter
	flushLatency metric.Float64Histogram
}

func newOtelMetrics(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter("github.com/Tap30/tidal-go")

	enqueued, err := meter.Int64Counter("tidal.events.enqueued",
		metric.WithDescription("Number of events accepted into the queue"),
	)
	if err != nil {
		return nil, err
	}

	evicted, err := meter.Int64Counter("tidal.events.evicted",
		metric.WithDescription("Number of queued events dropped because the queue was full"),
	)
	if err != nil {
		return nil, err
	}

	sends, err := meter.Int64Counter("tidal.sends",
		metric.WithDescription("Number of sub-stream sends"),
	)
	if err != nil {
		return nil, err
	}

	sendAttempts, err := meter.Int64Counter("tidal.send.attempts",
		metric.WithDescription("Number of HTTP attempts including retries"),
	)
	if err != nil {
		return nil, err
	}

	sentEvents, err := meter.Int64Counter("tidal.events.sent",
		metric.WithDescription("Number of events carried by sub-stream sends"),
	)
	if err != nil {
		return nil, err
	}

	sendLatency, err := meter.Float64Histogram("tidal.send.latency_ms",
		metric.WithDescription("Sub-stream send latency including backoff in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	flushes, err := meter.Int64Counter("tidal.flushes",
		metric.WithDescription("Number of flush attempts"),
	)
	if err != nil {
		return nil, err
	}

	delivered, err := meter.Int64Counter("tidal.events.delivered",
		metric.WithDescription("Number of events removed from the queue after delivery"),
	)
	if err != nil {
		return nil, err
	}

	flushLatency, err := meter.Float64Histogram("tidal.flush.latency_ms",
		metric.WithDescription("Flush latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		enqueued:     enqueued,
		evicted:      evicted,
		sends:        sends,
		sendAttempts: sendAttempts,
		sentEvents:   sentEvents,
		sendLatency:  sendLatency,
		flushes:      flushes,
		delivered:    delivered,
		flushLatency: flushLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by OpenTelemetry.
// A nil provider uses the global meter provider. If instrument creation
// fails, a no-op recorder is returned.
func NewMetricsRecorder(provider metric.MeterProvider) MetricsRecorder {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m, err := newOtelMetrics(provider)
	if err != nil {
		otel.Handle(err)
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordEnqueue(ctx context.Context, eventType EventType) {
	m.enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(eventType))))
}

func (m *otelMetrics) RecordEviction(ctx context.Context, count int) {
	m.evicted.Add(ctx, int64(count))
}

func (m *otelMetrics) RecordSend(ctx context.Context, subStream SubStream, events, attempts int, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("sub_stream", string(subStream)),
		attribute.Bool("success", success),
	)
	m.sends.Add(ctx, 1, attrs)
	m.sendAttempts.Add(ctx, int64(attempts), attrs)
	m.sentEvents.Add(ctx, int64(events), attrs)
	m.sendLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordFlush(ctx context.Context, success bool, removed int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.flushes.Add(ctx, 1, attrs)
	m.flushLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if removed > 0 {
		m.delivered.Add(ctx, int64(removed))
	}
}
