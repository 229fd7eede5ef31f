// Package otel provides small tracing helpers shared by the sync engine.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across packages.
const (
	AttrUserID          = attribute.Key("loresync.user_id")
	AttrLogicalDatabase = attribute.Key("loresync.logical_database")
	AttrTargetID        = attribute.Key("loresync.target_id")
	AttrRecordID        = attribute.Key("loresync.record_id")
	AttrDiscoveryTier   = attribute.Key("loresync.discovery_tier")
	AttrSchemaSource    = attribute.Key("loresync.schema_source")
	AttrResultCount     = attribute.Key("result.count")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when
// tracer is nil.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks it failed. The status text stays
// generic so tokens and SQL never land in span status; details go to the event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
