package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 20
	DefaultBaseDelay   = 8 * time.Second

	// backoffStep is added to the base delay for every failed attempt after the first.
	backoffStep = time.Second
)

// Retry configures [Execute]. The zero value makes no attempts; use
// [DefaultRetry] as a starting point.
type Retry struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int

	// BaseDelay is the wait after the first retryable failure. Each further
	// failure waits one second longer than the previous one.
	BaseDelay time.Duration

	// Retryable reports whether a failed attempt may be retried. Defaults
	// to [DefaultRetryPolicy]. Errors matching [ErrBusy] are always retried.
	Retryable func(error) bool

	Notifier Notifier
	Logger   RequestLogger

	sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetry() Retry {
	return Retry{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Retryable:   DefaultRetryPolicy,
		Notifier:    NoopNotifier{},
		Logger:      &NoopLogger{},
	}
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetry
	outcomeFail
	outcomeExhausted
)

type outcome struct {
	kind   outcomeKind
	delay  time.Duration
	notify bool
}

// Delay returns the wait after the given failed attempt (1-based).
func (r Retry) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return r.BaseDelay + time.Duration(attempt-1)*backoffStep
}

func (r Retry) decide(attempt int, err error) outcome {
	if err == nil {
		return outcome{kind: outcomeSuccess}
	}

	if errors.Is(err, ErrBusy) {
		if attempt >= r.MaxAttempts {
			return outcome{kind: outcomeExhausted}
		}

		return outcome{kind: outcomeRetry}
	}

	retryable := r.Retryable
	if retryable == nil {
		retryable = DefaultRetryPolicy
	}

	if !retryable(err) {
		return outcome{kind: outcomeFail}
	}

	if attempt >= r.MaxAttempts {
		return outcome{kind: outcomeExhausted}
	}

	return outcome{kind: outcomeRetry, delay: r.Delay(attempt), notify: true}
}

// Execute calls op until it succeeds, fails with a non-retryable error, or
// MaxAttempts attempts have been made. op is invoked at most MaxAttempts
// times. Each call to Execute keeps its own attempt counter, so concurrent
// calls do not interfere.
func Execute[T any](ctx context.Context, r Retry, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	notifier := r.Notifier
	if notifier == nil {
		notifier = NoopNotifier{}
	}

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		result, err := op(ctx)

		o := r.decide(attempt, err)

		switch o.kind {
		case outcomeSuccess:
			return result, nil
		case outcomeFail:
			return zero, err
		case outcomeExhausted:
			n := exhaustedNotification(attempt, statusCode(err))
			safeNotify(r.Logger, func() { notifier.OnExhausted(ctx, n) })

			return zero, &RetriesExhaustedError{Attempts: attempt, Err: err}
		}

		if o.notify {
			n := retryNotification(attempt, statusCode(err))
			safeNotify(r.Logger, func() { notifier.OnRetry(ctx, n) })
		}

		if err := r.wait(ctx, o.delay); err != nil {
			return zero, err
		}
	}

	n := exhaustedNotification(0, 0)
	safeNotify(r.Logger, func() { notifier.OnExhausted(ctx, n) })

	return zero, &RetriesExhaustedError{Attempts: 0}
}

func (r Retry) wait(ctx context.Context, d time.Duration) error {
	sleep := r.sleep
	if sleep == nil {
		sleep = Sleep
	}

	if err := sleep(ctx, d); err != nil {
		return fmt.Errorf("retry wait interrupted: %w", err)
	}

	return nil
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter
// case. A non-positive d only checks ctx.
func Sleep(ctx context.Context, d time.Duration) error {
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

func statusCode(err error) int {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}

	return 0
}
