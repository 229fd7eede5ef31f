package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/loresync/sync"

	// SchemaMetricsMeterName is the name used for the schema metrics meter
	SchemaMetricsMeterName = "github.com/stacklok/loresync/schema"

	// GateMetricsMeterName is the name used for the request gate meter
	GateMetricsMeterName = "github.com/stacklok/loresync/gate"
)

// Row outcomes recorded by SyncMetrics.RecordRows.
const (
	OutcomeSynced  = "synced"
	OutcomeErrored = "errored"
)

// SyncMetrics holds the instruments for sync runs.
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
	rowsTotal    metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"loresync_sync_duration_seconds",
		metric.WithDescription("Duration of one logical database sync in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	rowsTotal, err := meter.Int64Counter(
		"loresync_sync_rows_total",
		metric.WithDescription("Source rows processed, by outcome"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
		rowsTotal:    rowsTotal,
	}, nil
}

// RecordSyncDuration records how long a logical database took to sync.
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, database string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("logical_database", database),
		attribute.Bool("success", success),
	}
	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRows adds count rows with the given outcome.
func (m *SyncMetrics) RecordRows(ctx context.Context, database, outcome string, count int) {
	if m == nil || m.rowsTotal == nil || count <= 0 {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("logical_database", database),
		attribute.String("outcome", outcome),
	}
	m.rowsTotal.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// SchemaMetrics holds the instruments describing cached target schemas.
type SchemaMetrics struct {
	propertiesTotal metric.Int64Gauge
}

// NewSchemaMetrics creates a new SchemaMetrics instance.
// If provider is nil, it returns nil (no-op metrics).
func NewSchemaMetrics(provider metric.MeterProvider) (*SchemaMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SchemaMetricsMeterName)

	propertiesTotal, err := meter.Int64Gauge(
		"loresync_schema_properties",
		metric.WithDescription("Number of properties in the schema in use for each logical database"),
		metric.WithUnit("{property}"),
	)
	if err != nil {
		return nil, err
	}

	return &SchemaMetrics{propertiesTotal: propertiesTotal}, nil
}

// RecordProperties records the property count of a schema and how it was obtained.
func (m *SchemaMetrics) RecordProperties(ctx context.Context, database, source string, count int) {
	if m == nil || m.propertiesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("logical_database", database),
		attribute.String("source", source),
	}
	m.propertiesTotal.Record(ctx, int64(count), metric.WithAttributes(attrs...))
}

// GateMetrics holds the instruments for the outbound request gate.
type GateMetrics struct {
	callsTotal  metric.Int64Counter
	attempts    metric.Int64Histogram
	waitSeconds metric.Float64Histogram
}

// NewGateMetrics creates a new GateMetrics instance.
// If provider is nil, it returns nil (no-op metrics).
func NewGateMetrics(provider metric.MeterProvider) (*GateMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(GateMetricsMeterName)

	callsTotal, err := meter.Int64Counter(
		"loresync_gate_calls_total",
		metric.WithDescription("Workspace API calls completed through the gate"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	attempts, err := meter.Int64Histogram(
		"loresync_gate_call_attempts",
		metric.WithDescription("Attempts needed per gated call"),
		metric.WithUnit("{attempt}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 6, 8),
	)
	if err != nil {
		return nil, err
	}

	waitSeconds, err := meter.Float64Histogram(
		"loresync_gate_wait_seconds",
		metric.WithDescription("Time spent queued before admission"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return &GateMetrics{
		callsTotal:  callsTotal,
		attempts:    attempts,
		waitSeconds: waitSeconds,
	}, nil
}

// RecordCall records one completed gated call.
func (m *GateMetrics) RecordCall(ctx context.Context, label string, attempts int, waited time.Duration, success bool) {
	if m == nil || m.callsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", label),
		attribute.Bool("success", success),
	)
	m.callsTotal.Add(ctx, 1, attrs)
	m.attempts.Record(ctx, int64(attempts), attrs)
	m.waitSeconds.Record(ctx, waited.Seconds(), attrs)
}
