package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for calendaragent spans.
const TracerName = "github.com/teemow/calendaragent"

// Span attribute keys.
const (
	SpanAttrAgent        = "agent.name"
	SpanAttrOperation    = "agent.operation"
	SpanAttrIteration    = "agent.iteration"
	SpanAttrIntent       = "router.intent"
	SpanAttrConversation = "conversation.id"
	SpanAttrUser         = "user.hash"
	SpanAttrStatus       = "agent.status"
	SpanAttrLLMKind      = "llm.kind"
	SpanAttrLLMModel     = "llm.model"
	SpanAttrEventID      = "calendar.event_id"
)

// SpanAttributeBuilder helps construct span attributes with consistent naming.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 8)}
}

// WithAgent adds the agent name.
func (b *SpanAttributeBuilder) WithAgent(agent string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrAgent, agent))
	return b
}

// WithOperation adds the operation name.
func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrOperation, operation))
	return b
}

// WithIntent adds the routed intent.
func (b *SpanAttributeBuilder) WithIntent(intent string) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.String(SpanAttrIntent, intent))
	return b
}

// WithConversation adds the conversation id when set.
func (b *SpanAttributeBuilder) WithConversation(id string) *SpanAttributeBuilder {
	if id != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrConversation, id))
	}
	return b
}

// WithUserHash adds a hashed user identifier when set.
func (b *SpanAttributeBuilder) WithUserHash(hash string) *SpanAttributeBuilder {
	if hash != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrUser, hash))
	}
	return b
}

// WithEventID adds a calendar event id when set.
func (b *SpanAttributeBuilder) WithEventID(id string) *SpanAttributeBuilder {
	if id != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrEventID, id))
	}
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts a new span with the given name and attributes.
// The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartAgentSpan starts a span covering one agent loop run.
func StartAgentSpan(ctx context.Context, agent string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attribute.String(SpanAttrAgent, agent))
	all = append(all, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "agent."+agent, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindInternal))
}

// StartOperationSpan starts a span for one operation invocation.
func StartOperationSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attribute.String(SpanAttrOperation, operation))
	all = append(all, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "operation."+operation, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindServer))
}

// StartLLMSpan starts a client span for a model call.
func StartLLMSpan(ctx context.Context, kind, model string) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "llm."+kind,
		trace.WithAttributes(
			attribute.String(SpanAttrLLMKind, kind),
			attribute.String(SpanAttrLLMModel, model),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to the span.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID of the span in ctx, or "".
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}
