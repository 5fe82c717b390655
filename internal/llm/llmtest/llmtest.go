// Package llmtest provides scripted llm.Client fakes for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/teemow/calendaragent/internal/llm"
)

// ErrScriptExhausted is returned when a Script has no more steps.
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Call records one Invoke.
type Call struct {
	Instruction string
	History     []llm.Message
	Operations  []llm.Operation
}

// Step is one scripted reasoning result.
type Step struct {
	Output llm.ReasonOutput
	Err    error
}

// Script replays Steps in order, one per Invoke, and answers Complete from
// Completions in order. It is safe for concurrent use.
type Script struct {
	mu          sync.Mutex
	steps       []Step
	completions []Step
	calls       []Call
	prompts     []string

	// Repeat replays the last step forever once the script runs out.
	Repeat bool
}

// NewScript returns a Script over steps.
func NewScript(steps ...Step) *Script {
	return &Script{steps: steps}
}

// Answer is a Step that ends the loop with text.
func Answer(text string) Step {
	return Step{Output: llm.FinalAnswer{Text: text}}
}

// Request is a Step that asks for one operation.
func Request(name string, args map[string]any) Step {
	return Step{Output: llm.OperationRequests{Requests: []llm.OperationRequest{{ID: name, Name: name, Arguments: args}}}}
}

// Fail is a Step that returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

// WithCompletions queues Complete responses.
func (s *Script) WithCompletions(texts ...string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range texts {
		s.completions = append(s.completions, Step{Output: llm.FinalAnswer{Text: t}})
	}
	return s
}

// WithCompletionError queues a failing Complete.
func (s *Script) WithCompletionError(err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions = append(s.completions, Step{Err: err})
	return s
}

// Invoke implements llm.Reasoner.
func (s *Script) Invoke(ctx context.Context, instruction string, history []llm.Message, ops []llm.Operation) (llm.ReasonOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{
		Instruction: instruction,
		History:     append([]llm.Message(nil), history...),
		Operations:  ops,
	})

	if len(s.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	step := s.steps[0]
	if len(s.steps) > 1 || !s.Repeat {
		s.steps = s.steps[1:]
	}
	return step.Output, step.Err
}

// Complete implements llm.Completer.
func (s *Script) Complete(ctx context.Context, instruction, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if len(s.completions) == 0 {
		return "", ErrScriptExhausted
	}
	step := s.completions[0]
	s.completions = s.completions[1:]
	if step.Err != nil {
		return "", step.Err
	}
	if fa, ok := step.Output.(llm.FinalAnswer); ok {
		return fa.Text, nil
	}
	return "", nil
}

// Calls returns the recorded Invoke calls.
func (s *Script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Prompts returns the recorded Complete prompts.
func (s *Script) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
