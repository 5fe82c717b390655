package instrumentation

import (
	"context"
	"errors"
	"testing"
)

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithAgent("scheduler").
		WithOperation("add_event").
		WithIntent("schedule").
		WithConversation("conv-1").
		WithUserHash("user:abc").
		WithEventID("evt-1").
		Build()

	if len(attrs) != 6 {
		t.Fatalf("expected 6 attributes, got %d", len(attrs))
	}

	attrMap := make(map[string]interface{})
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	tests := map[string]string{
		SpanAttrAgent:        "scheduler",
		SpanAttrOperation:    "add_event",
		SpanAttrIntent:       "schedule",
		SpanAttrConversation: "conv-1",
		SpanAttrUser:         "user:abc",
		SpanAttrEventID:      "evt-1",
	}
	for key, want := range tests {
		if attrMap[key] != want {
			t.Errorf("%s = %v, want %q", key, attrMap[key], want)
		}
	}
}

func TestSpanAttributeBuilder_EmptyValues(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithOperation("list_events").
		WithConversation("").
		WithUserHash("").
		WithEventID("").
		Build()

	if len(attrs) != 1 {
		t.Errorf("expected 1 attribute, got %d", len(attrs))
	}
}

func TestStartSpans(t *testing.T) {
	ctx, _ := newTestProvider(t)

	spanCtx, span := StartSpan(ctx, "test-span")
	span.End()
	if spanCtx == nil {
		t.Error("expected context to be non-nil")
	}

	_, span = StartAgentSpan(ctx, "planner")
	span.End()

	_, span = StartOperationSpan(ctx, "free_slots")
	span.End()

	_, span = StartLLMSpan(ctx, LLMKindReason, "gemini-2.5-flash")
	SetSpanError(span, errors.New("upstream"))
	span.End()
}

func TestSetSpanHelpers(t *testing.T) {
	ctx, _ := newTestProvider(t)

	_, span := StartSpan(ctx, "helpers")
	defer span.End()

	SetSpanError(span, nil)
	SetSpanSuccess(span)
	AddSpanEvent(span, "event")
}

func TestGetIDs_NoSpan(t *testing.T) {
	ctx := context.Background()
	if id := GetTraceID(ctx); id != "" {
		t.Errorf("GetTraceID = %q, want empty", id)
	}
	if id := GetSpanID(ctx); id != "" {
		t.Errorf("GetSpanID = %q, want empty", id)
	}
}
