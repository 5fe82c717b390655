package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/llm"
	"github.com/teemow/calendaragent/internal/logging"
)

// Intents.
const (
	IntentScheduling = "scheduling"
	IntentPlanning   = "planning"
	IntentSummary    = "summary"
	IntentPreference = "preference"
	IntentUnknown    = "unknown"
	IntentError      = "error"
)

// Agents an intent routes to.
const (
	AgentScheduler = "scheduler"
	AgentPlanner   = "planner"
	AgentSummary   = "summary"
)

// Classification methods.
const (
	MethodLLM     = instrumentation.ClassifyMethodLLM
	MethodKeyword = instrumentation.ClassifyMethodKeyword
	MethodFailed  = instrumentation.ClassifyMethodFailed
)

var knownIntents = map[string]bool{
	IntentScheduling: true,
	IntentPlanning:   true,
	IntentSummary:    true,
	IntentPreference: true,
	IntentUnknown:    true,
}

// Classification is the router's verdict on one utterance.
type Classification struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params"`
	Reasoning  string         `json:"reasoning"`
	Method     string         `json:"method"`
}

// Router classifies utterances.
type Router struct {
	completer llm.Completer
	metrics   *instrumentation.Metrics
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// New creates a Router over completer.
func New(completer llm.Completer, opts ...Option) *Router {
	r := &Router{
		completer: completer,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithOperation(r.logger, "classify")
	return r
}

// Classify determines the intent of text and merges the extracted
// parameters into the result.
func (r *Router) Classify(ctx context.Context, text string) Classification {
	c := r.classify(ctx, text)
	if c.Params == nil {
		c.Params = map[string]any{}
	}
	if c.Intent != IntentError {
		for k, v := range ExtractParameters(text, c.Intent) {
			if _, ok := c.Params[k]; !ok {
				c.Params[k] = v
			}
		}
	}

	r.metrics.RecordIntent(ctx, c.Intent, c.Method)
	r.logger.Debug("utterance classified",
		logging.Intent(c.Intent),
		slog.Float64("confidence", c.Confidence),
		slog.String("method", c.Method))
	return c
}

func (r *Router) classify(ctx context.Context, text string) Classification {
	reply, err := r.completer.Complete(ctx, classifyInstruction, fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		r.logger.Warn("intent classification failed", logging.Err(err))
		return Classification{
			Intent:    IntentError,
			Params:    map[string]any{"error": err.Error()},
			Reasoning: "classification failed: " + err.Error(),
			Method:    MethodFailed,
		}
	}

	c, ok := parseClassification(reply)
	if !ok {
		r.logger.Debug("unparseable classification, using keywords", slog.String("reply", logging.Truncate(reply, 200)))
		return ClassifyByKeywords(text)
	}
	return c
}

// parseClassification decodes the LLM's JSON verdict.
func parseClassification(reply string) (Classification, bool) {
	raw, ok := llm.ExtractJSON(reply)
	if !ok {
		return Classification{}, false
	}

	var body struct {
		Intent     string         `json:"intent"`
		Confidence *float64       `json:"confidence"`
		Params     map[string]any `json:"params"`
		Reasoning  string         `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return Classification{}, false
	}

	intent := strings.ToLower(strings.TrimSpace(body.Intent))
	if !knownIntents[intent] {
		intent = IntentUnknown
	}
	confidence := 0.5
	if body.Confidence != nil {
		confidence = *body.Confidence
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	reasoning := body.Reasoning
	if reasoning == "" {
		reasoning = "no reasoning provided"
	}

	return Classification{
		Intent:     intent,
		Confidence: confidence,
		Params:     body.Params,
		Reasoning:  reasoning,
		Method:     MethodLLM,
	}, true
}

// Route maps an intent to the agent that handles it. Preferences are
// handled by the scheduler, and anything unrecognised falls back to it.
func Route(intent string) string {
	switch intent {
	case IntentPlanning:
		return AgentPlanner
	case IntentSummary:
		return AgentSummary
	default:
		return AgentScheduler
	}
}
