package llm

import (
	"context"
	"time"

	"github.com/teemow/calendaragent/internal/instrumentation"
)

// Instrumented records a span and call metrics around each call.
type Instrumented struct {
	next    Client
	model   string
	metrics *instrumentation.Metrics
}

// WithInstrumentation wraps next. model labels spans only.
func WithInstrumentation(next Client, model string, metrics *instrumentation.Metrics) *Instrumented {
	return &Instrumented{next: next, model: model, metrics: metrics}
}

// Invoke implements Reasoner.
func (i *Instrumented) Invoke(ctx context.Context, instruction string, history []Message, ops []Operation) (ReasonOutput, error) {
	ctx, span := instrumentation.StartLLMSpan(ctx, instrumentation.LLMKindReason, i.model)
	defer span.End()

	start := time.Now()
	out, err := i.next.Invoke(ctx, instruction, history, ops)
	i.record(ctx, instrumentation.LLMKindReason, start, err)
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	return out, err
}

// Complete implements Completer.
func (i *Instrumented) Complete(ctx context.Context, instruction, prompt string) (string, error) {
	ctx, span := instrumentation.StartLLMSpan(ctx, instrumentation.LLMKindComplete, i.model)
	defer span.End()

	start := time.Now()
	out, err := i.next.Complete(ctx, instruction, prompt)
	i.record(ctx, instrumentation.LLMKindComplete, start, err)
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	return out, err
}

func (i *Instrumented) record(ctx context.Context, kind string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	i.metrics.RecordLLMCall(ctx, kind, status, time.Since(start))
}
