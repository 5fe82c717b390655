package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/teemow/calendaragent/internal/instrumentation"
	"github.com/teemow/calendaragent/internal/logging"
)

// RetryPolicy bounds exponential backoff on rate-limit errors.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        4,
		InitialInterval: time.Second,
		MaxInterval:     20 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
	}
}

// Retrying retries calls to the wrapped client when they fail with
// ErrRateLimited. Every other error is returned immediately.
type Retrying struct {
	next    Client
	policy  RetryPolicy
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// WithRetry wraps next with policy. metrics and logger may be nil.
func WithRetry(next Client, policy RetryPolicy, metrics *instrumentation.Metrics, logger *slog.Logger) *Retrying {
	if policy.MaxTries == 0 {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, policy: policy, metrics: metrics, logger: logger}
}

// Invoke implements Reasoner.
func (r *Retrying) Invoke(ctx context.Context, instruction string, history []Message, ops []Operation) (ReasonOutput, error) {
	return retry(ctx, r, instrumentation.LLMKindReason, func() (ReasonOutput, error) {
		return r.next.Invoke(ctx, instruction, history, ops)
	})
}

// Complete implements Completer.
func (r *Retrying) Complete(ctx context.Context, instruction, prompt string) (string, error) {
	return retry(ctx, r, instrumentation.LLMKindComplete, func() (string, error) {
		return r.next.Complete(ctx, instruction, prompt)
	})
}

func retry[T any](ctx context.Context, r *Retrying, kind string, call func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval

	op := func() (T, error) {
		out, err := call()
		if err != nil && !IsRateLimit(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}

	notify := func(err error, wait time.Duration) {
		r.metrics.RecordLLMRetry(ctx, kind)
		r.logger.Warn("llm rate limited, retrying",
			slog.String("kind", kind),
			slog.Duration("wait", wait),
			logging.Err(err))
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.policy.MaxTries),
		backoff.WithNotify(notify),
	}
	if r.policy.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(r.policy.MaxElapsedTime))
	}

	out, err := backoff.Retry(ctx, op, opts...)
	if err != nil && !errors.Is(err, ErrUpstream) && ctx.Err() == nil {
		err = classify(err)
	}
	return out, err
}
