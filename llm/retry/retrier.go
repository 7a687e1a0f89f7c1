package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
)

// ExhaustedError 表示所有尝试均失败。Err 为最后一次的错误。
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// IsExhausted reports whether err ended a retry loop by using up every attempt.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// OnRetryFunc 在每次等待前调用；attempt 为刚失败的尝试序号（从 1 开始）。
type OnRetryFunc func(attempt int, err error, c Classification, delay time.Duration)

// Retrier 按 Policy 执行带退避的重试。
type Retrier struct {
	policy  Policy
	logger  *zap.Logger
	onRetry OnRetryFunc
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithOnRetry registers a callback invoked before each backoff wait.
func WithOnRetry(fn OnRetryFunc) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New 创建重试器。
func New(policy Policy, logger *zap.Logger, opts ...Option) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retrier{
		policy: policy.Normalize(),
		logger: logger.With(zap.String("component", "retry")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the normalized policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Run executes fn until it succeeds, fails with an error the policy does not retry,
// or MaxAttempts is reached. Configuration errors and context cancellation end the loop at once.
func (r *Retrier) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Debug("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}

		if llm.IsConfigError(lastErr) || ctx.Err() != nil {
			return lastErr
		}

		c := ClassifyError(lastErr)
		if !r.policy.Allows(c) {
			r.logger.Debug("error not retryable",
				zap.Int("attempt", attempt),
				zap.Bool("auth", c.Auth),
				zap.Error(lastErr))
			return lastErr
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.policy.Backoff(attempt, retryAfter(lastErr))
		r.logger.Warn("call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Any("kinds", c.Kinds()),
			zap.Error(lastErr))
		if r.onRetry != nil {
			r.onRetry(attempt, lastErr, c, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxAttempts),
		zap.Error(lastErr))
	return &ExhaustedError{Attempts: r.policy.MaxAttempts, Err: lastErr}
}

// Do is the typed form of Run.
//
//	reply, err := retry.Do(ctx, r, func(ctx context.Context) (string, error) {
//	    return client.Chat(ctx, msgs, ov)
//	})
func Do[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Run(ctx, func(ctx context.Context, _ int) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Stream runs a streaming call under the policy. An attempt that already forwarded text
// or tool metadata to onDelta is not retried: a retry would run the tools again and
// repeat output the caller already has.
func (r *Retrier) Stream(ctx context.Context, onDelta llm.DeltaFunc,
	fn func(ctx context.Context, onDelta llm.DeltaFunc) error) error {

	if onDelta == nil {
		onDelta = func(string, *llm.DeltaMetadata) {}
	}
	var partial error
	err := r.Run(ctx, func(ctx context.Context, attempt int) error {
		emitted := false
		err := fn(ctx, func(text string, meta *llm.DeltaMetadata) {
			if text != "" || meta != nil {
				emitted = true
			}
			onDelta(text, meta)
		})
		if err != nil && emitted {
			r.logger.Warn("stream failed after partial output, not retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
			partial = err
			return nil
		}
		return err
	})
	if partial != nil {
		return partial
	}
	return err
}

func retryAfter(err error) time.Duration {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
