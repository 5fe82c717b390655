package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Paced delays calls to the wrapped client so that consecutive calls are at
// least MinInterval apart.
type Paced struct {
	next    Client
	limiter *rate.Limiter
}

// WithPacing wraps next. A non-positive interval disables pacing.
func WithPacing(next Client, interval time.Duration) Client {
	if interval <= 0 {
		return next
	}
	return &Paced{next: next, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *Paced) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("llm pacing: %w", err)
	}
	return nil
}

// Invoke implements Reasoner.
func (p *Paced) Invoke(ctx context.Context, instruction string, history []Message, ops []Operation) (ReasonOutput, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.Invoke(ctx, instruction, history, ops)
}

// Complete implements Completer.
func (p *Paced) Complete(ctx context.Context, instruction, prompt string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.Complete(ctx, instruction, prompt)
}
