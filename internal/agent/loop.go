package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/logging"
)

// DefaultMaxIterations bounds REASON steps per run.
const DefaultMaxIterations = 10

// State is a control-loop state.
type State string

const (
	StateReason State = "reason"
	StateAct    State = "act"
	StateDone   State = "done"
	StateError  State = "error"
)

// Step is one entry in a run trace.
type Step struct {
	Iteration int                    `json:"iteration"`
	Agent     string                 `json:"agent"`
	State     State                  `json:"state"`
	Thought   string                 `json:"thought,omitempty"`
	Requests  []llm.OperationRequest `json:"requests,omitempty"`
	Results   []llm.OperationResult  `json:"results,omitempty"`
	Answer    string                 `json:"answer,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Outcome is the result of a completed run.
type Outcome struct {
	Answer string
	// Messages holds the messages appended during the run, in order.
	Messages   []llm.Message
	Trace      []Step
	Iterations int
}

// Results returns every operation result named name, oldest first.
func (o *Outcome) Results(name string) []llm.OperationResult {
	var out []llm.OperationResult
	for _, step := range o.Trace {
		for _, r := range step.Results {
			if r.Name == name {
				out = append(out, r)
			}
		}
	}
	return out
}

// Loop drives one specialist agent: it alternates REASON and ACT until the
// reasoner returns a final answer or the iteration cap is hit.
type Loop struct {
	name          string
	instruction   string
	reasoner      llm.Reasoner
	registry      *Registry
	maxIterations int
	logger        *slog.Logger
	metrics       *instrumentation.Metrics
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations sets the iteration cap. Values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// NewLoop creates a loop for the named agent.
func NewLoop(name, instruction string, reasoner llm.Reasoner, registry *Registry, opts ...Option) *Loop {
	l := &Loop{
		name:          name,
		instruction:   instruction,
		reasoner:      reasoner,
		registry:      registry,
		maxIterations: DefaultMaxIterations,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.WithAgent(l.logger, name)
	return l
}

// Name returns the agent name.
func (l *Loop) Name() string { return l.name }

// Registry returns the operations available to the agent.
func (l *Loop) Registry() *Registry { return l.registry }

// MaxIterations returns the iteration cap.
func (l *Loop) MaxIterations() int { return l.maxIterations }

// Run executes the loop over history. history is not modified; the
// messages produced by the run are returned in Outcome.Messages.
func (l *Loop) Run(ctx context.Context, history []llm.Message) (*Outcome, error) {
	ctx = WithAgentName(ctx, l.name)
	ctx, span := instrumentation.StartAgentSpan(ctx, l.name)
	defer span.End()

	ops := l.registry.Operations()
	msgs := append([]llm.Message(nil), history...)
	base := len(msgs)
	var trace []Step

	finish := func(outcome string, iterations int) {
		l.metrics.RecordAgentRun(ctx, l.name, outcome, iterations)
		span.SetAttributes(attribute.Int(instrumentation.SpanAttrIteration, iterations))
	}

	for i := 1; i <= l.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			finish(instrumentation.OutcomeError, i-1)
			instrumentation.SetSpanError(span, err)
			return nil, fmt.Errorf("agent %s cancelled: %w", l.name, err)
		}

		out, err := l.reasoner.Invoke(ctx, l.instruction, msgs, ops)
		if err != nil {
			trace = append(trace, Step{Iteration: i, Agent: l.name, State: StateError, Error: err.Error()})
			finish(instrumentation.OutcomeError, i)
			instrumentation.SetSpanError(span, err)
			l.logger.Error("reasoning failed", logging.Iteration(i), logging.Err(err))
			return nil, &RunError{Agent: l.name, Trace: trace, Err: fmt.Errorf("reasoning failed: %w", err)}
		}

		switch o := out.(type) {
		case llm.FinalAnswer:
			msgs = append(msgs, llm.AssistantMessage(o.Text))
			trace = append(trace, Step{Iteration: i, Agent: l.name, State: StateDone, Answer: o.Text})
			finish(instrumentation.OutcomeDone, i)
			instrumentation.SetSpanSuccess(span)
			l.logger.Debug("agent done", logging.Iteration(i))
			return &Outcome{Answer: o.Text, Messages: msgs[base:], Trace: trace, Iterations: i}, nil

		case llm.OperationRequests:
			if len(o.Requests) == 0 {
				err := errors.New("reasoner returned no operation requests")
				trace = append(trace, Step{Iteration: i, Agent: l.name, State: StateError, Error: err.Error()})
				finish(instrumentation.OutcomeError, i)
				instrumentation.SetSpanError(span, err)
				return nil, &RunError{Agent: l.name, Trace: trace, Err: err}
			}

			msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: o.Thought, Requests: o.Requests})
			step := Step{Iteration: i, Agent: l.name, State: StateAct, Thought: o.Thought, Requests: o.Requests}
			for _, req := range o.Requests {
				res := l.registry.Execute(ctx, req)
				l.logger.Debug("operation executed",
					logging.Iteration(i),
					logging.Operation(req.Name),
					logging.Status(res.Status))
				step.Results = append(step.Results, res)
				msgs = append(msgs, llm.Message{Role: llm.RoleOperation, Result: &res})
			}
			trace = append(trace, step)

		default:
			err := fmt.Errorf("unexpected reasoner output %T", out)
			trace = append(trace, Step{Iteration: i, Agent: l.name, State: StateError, Error: err.Error()})
			finish(instrumentation.OutcomeError, i)
			instrumentation.SetSpanError(span, err)
			l.logger.Error("reasoning failed", logging.Iteration(i), logging.Err(err))
			return nil, &RunError{Agent: l.name, Trace: trace, Err: err}
		}
	}

	finish(instrumentation.OutcomeIterationLimit, l.maxIterations)
	limitErr := &IterationLimitError{Agent: l.name, Limit: l.maxIterations, Trace: trace}
	instrumentation.SetSpanError(span, limitErr)
	l.logger.Warn("iteration limit exceeded", slog.Int("limit", l.maxIterations))
	return nil, limitErr
}

// Ask runs the loop on a single request with a fresh history and returns
// the final answer. It lets one agent delegate to another.
func (l *Loop) Ask(ctx context.Context, request string) (string, error) {
	out, err := l.Run(ctx, []llm.Message{llm.UserMessage(request)})
	if err != nil {
		return "", err
	}
	return out.Answer, nil
}
