package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrAgent     = "agent"
	attrOutcome   = "outcome"
	attrKind      = "kind"
	attrIntent    = "intent"
	attrDecision  = "decision"
	attrUser      = "user_hash"
)

// Metrics records calendaragent metrics. A zero Metrics is a valid no-op.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	activeConversations metric.Int64UpDownCounter

	operationInvocationsTotal metric.Int64Counter
	operationDuration         metric.Float64Histogram

	agentRunsTotal  metric.Int64Counter
	agentIterations metric.Int64Histogram

	llmCallsTotal   metric.Int64Counter
	llmCallDuration metric.Float64Histogram
	llmRetriesTotal metric.Int64Counter

	calendarMutationsTotal metric.Int64Counter

	intentClassificationsTotal metric.Int64Counter
	planDecisionsTotal         metric.Int64Counter

	detailedLabels bool
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	if m.httpRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0)); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}
	if m.activeConversations, err = meter.Int64UpDownCounter("active_conversations",
		metric.WithDescription("Number of live conversation sessions"),
		metric.WithUnit("{conversation}")); err != nil {
		return nil, fmt.Errorf("failed to create active_conversations gauge: %w", err)
	}
	if m.operationInvocationsTotal, err = meter.Int64Counter("operation_invocations_total",
		metric.WithDescription("Total number of agent operation invocations"),
		metric.WithUnit("{invocation}")); err != nil {
		return nil, fmt.Errorf("failed to create operation_invocations_total counter: %w", err)
	}
	if m.operationDuration, err = meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Agent operation execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0)); err != nil {
		return nil, fmt.Errorf("failed to create operation_duration_seconds histogram: %w", err)
	}
	if m.agentRunsTotal, err = meter.Int64Counter("agent_runs_total",
		metric.WithDescription("Total number of agent loop runs by outcome"),
		metric.WithUnit("{run}")); err != nil {
		return nil, fmt.Errorf("failed to create agent_runs_total counter: %w", err)
	}
	if m.agentIterations, err = meter.Int64Histogram("agent_iterations",
		metric.WithDescription("Reasoning iterations per agent run"),
		metric.WithUnit("{iteration}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8, 10, 15, 20)); err != nil {
		return nil, fmt.Errorf("failed to create agent_iterations histogram: %w", err)
	}
	if m.llmCallsTotal, err = meter.Int64Counter("llm_calls_total",
		metric.WithDescription("Total number of LLM calls"),
		metric.WithUnit("{call}")); err != nil {
		return nil, fmt.Errorf("failed to create llm_calls_total counter: %w", err)
	}
	if m.llmCallDuration, err = meter.Float64Histogram("llm_call_duration_seconds",
		metric.WithDescription("LLM call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0)); err != nil {
		return nil, fmt.Errorf("failed to create llm_call_duration_seconds histogram: %w", err)
	}
	if m.llmRetriesTotal, err = meter.Int64Counter("llm_retries_total",
		metric.WithDescription("Total number of LLM calls retried after rate limiting"),
		metric.WithUnit("{retry}")); err != nil {
		return nil, fmt.Errorf("failed to create llm_retries_total counter: %w", err)
	}
	if m.calendarMutationsTotal, err = meter.Int64Counter("calendar_mutations_total",
		metric.WithDescription("Total number of calendar writes by kind and result"),
		metric.WithUnit("{mutation}")); err != nil {
		return nil, fmt.Errorf("failed to create calendar_mutations_total counter: %w", err)
	}
	if m.intentClassificationsTotal, err = meter.Int64Counter("intent_classifications_total",
		metric.WithDescription("Total number of classified utterances by intent and method"),
		metric.WithUnit("{classification}")); err != nil {
		return nil, fmt.Errorf("failed to create intent_classifications_total counter: %w", err)
	}
	if m.planDecisionsTotal, err = meter.Int64Counter("plan_decisions_total",
		metric.WithDescription("Total number of plan feedback decisions"),
		metric.WithUnit("{decision}")); err != nil {
		return nil, fmt.Errorf("failed to create plan_decisions_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOperation records one operation invocation made by an agent (or by
// an MCP client, with agent "mcp"). Status is the tagged result status.
func (m *Metrics) RecordOperation(ctx context.Context, agent, operation, status, userHash string, duration time.Duration) {
	if m == nil || m.operationInvocationsTotal == nil {
		return
	}
	kv := []attribute.KeyValue{
		attribute.String(attrAgent, agent),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && userHash != "" {
		kv = append(kv, attribute.String(attrUser, userHash))
	}
	attrs := metric.WithAttributes(kv...)
	m.operationInvocationsTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAgentRun records the outcome and iteration count of one loop run.
func (m *Metrics) RecordAgentRun(ctx context.Context, agent, outcome string, iterations int) {
	if m == nil || m.agentRunsTotal == nil {
		return
	}
	m.agentRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAgent, agent),
		attribute.String(attrOutcome, outcome),
	))
	m.agentIterations.Record(ctx, int64(iterations), metric.WithAttributes(attribute.String(attrAgent, agent)))
}

// RecordLLMCall records one call to the model.
func (m *Metrics) RecordLLMCall(ctx context.Context, kind, status string, duration time.Duration) {
	if m == nil || m.llmCallsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	)
	m.llmCallsTotal.Add(ctx, 1, attrs)
	m.llmCallDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordLLMRetry counts a retry after a rate-limit response.
func (m *Metrics) RecordLLMRetry(ctx context.Context, kind string) {
	if m == nil || m.llmRetriesTotal == nil {
		return
	}
	m.llmRetriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordCalendarMutation records an add, update or remove and its result
// status (success, conflict, forced, error).
func (m *Metrics) RecordCalendarMutation(ctx context.Context, kind, status string) {
	if m == nil || m.calendarMutationsTotal == nil {
		return
	}
	m.calendarMutationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	))
}

// RecordIntent records the result of routing one utterance.
func (m *Metrics) RecordIntent(ctx context.Context, intent, method string) {
	if m == nil || m.intentClassificationsTotal == nil {
		return
	}
	m.intentClassificationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrIntent, intent),
		attribute.String(attrMethod, method),
	))
}

// RecordPlanDecision records a confirm/revise/end decision.
func (m *Metrics) RecordPlanDecision(ctx context.Context, decision string) {
	if m == nil || m.planDecisionsTotal == nil {
		return
	}
	m.planDecisionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrDecision, decision)))
}

// IncrementActiveConversations increments the live conversation gauge.
func (m *Metrics) IncrementActiveConversations(ctx context.Context) {
	if m == nil || m.activeConversations == nil {
		return
	}
	m.activeConversations.Add(ctx, 1)
}

// DecrementActiveConversations decrements the live conversation gauge.
func (m *Metrics) DecrementActiveConversations(ctx context.Context) {
	if m == nil || m.activeConversations == nil {
		return
	}
	m.activeConversations.Add(ctx, -1)
}
