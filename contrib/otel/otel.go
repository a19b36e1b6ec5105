// Package otel exports edit lifecycle events as OpenTelemetry spans.
//
// It lives in its own module so the core SDK does not depend on OpenTelemetry.
//
//	tp := sdktrace.NewTracerProvider(...)
//	editor := core.NewEditor(p, f, core.WithTelemetry(otel.NewHook(tp)))
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/qwen-edit/core"
)

// InstrumentationName identifies spans created by this package.
const InstrumentationName = "github.com/petal-labs/qwen-edit/contrib/otel"

// SpanName is the name of the span covering one edit.
const SpanName = "qwen_edit.edit"

// Hook implements core.TelemetryHook. One span is opened per edit and closed
// when the edit ends, keyed by operation ID.
type Hook struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewHook creates a hook that records spans with tp.
func NewHook(tp trace.TracerProvider) *Hook {
	return &Hook{
		tracer: tp.Tracer(InstrumentationName),
		spans:  make(map[string]trace.Span),
	}
}

// OnEditStart opens the span.
func (h *Hook) OnEditStart(e core.EditStartEvent) {
	_, span := h.tracer.Start(context.Background(), SpanName,
		trace.WithTimestamp(e.Start),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("qwen_edit.op_id", e.OpID),
			attribute.String("qwen_edit.provider", e.Provider),
			attribute.String("qwen_edit.model", string(e.Model)),
			attribute.Int("qwen_edit.images", e.Images),
		),
	)

	h.mu.Lock()
	h.spans[e.OpID] = span
	h.mu.Unlock()
}

// OnEditEnd records the outcome and ends the span. Events without a matching
// start are ignored.
func (h *Hook) OnEditEnd(e core.EditEndEvent) {
	h.mu.Lock()
	span, ok := h.spans[e.OpID]
	delete(h.spans, e.OpID)
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String("qwen_edit.stage", e.Stage))
	if e.RequestID != "" {
		span.SetAttributes(attribute.String("qwen_edit.request_id", e.RequestID))
	}

	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	} else {
		span.SetAttributes(attribute.Int("qwen_edit.bytes", e.Bytes))
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.End))
}

var _ core.TelemetryHook = (*Hook)(nil)
