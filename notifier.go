package client

import (
	"context"
	"fmt"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification describes a retry or a terminal failure. StatusCode is zero
// when the failure did not come from an HTTP status.
type Notification struct {
	Title      string
	Message    string
	Severity   Severity
	Attempt    int
	StatusCode int
}

// Notifier observes the retry loop. Calls are fire-and-forget: a notifier
// cannot change the outcome of a request, and panics are recovered.
type Notifier interface {
	OnRetry(ctx context.Context, n Notification)
	OnExhausted(ctx context.Context, n Notification)
}

// NoopNotifier discards all notifications. It is the default.
type NoopNotifier struct{}

func (NoopNotifier) OnRetry(_ context.Context, _ Notification)     {}
func (NoopNotifier) OnExhausted(_ context.Context, _ Notification) {}

// NotifierFuncs adapts plain functions to [Notifier]. Nil fields are skipped.
type NotifierFuncs struct {
	Retry     func(ctx context.Context, n Notification)
	Exhausted func(ctx context.Context, n Notification)
}

func (f NotifierFuncs) OnRetry(ctx context.Context, n Notification) {
	if f.Retry != nil {
		f.Retry(ctx, n)
	}
}

func (f NotifierFuncs) OnExhausted(ctx context.Context, n Notification) {
	if f.Exhausted != nil {
		f.Exhausted(ctx, n)
	}
}

// LogNotifier writes notifications to a [RequestLogger].
type LogNotifier struct {
	Logger RequestLogger
}

func (l *LogNotifier) OnRetry(_ context.Context, n Notification) {
	l.Logger.Warnf("%s: %s", n.Title, n.Message)
}

func (l *LogNotifier) OnExhausted(_ context.Context, n Notification) {
	l.Logger.Errorf("%s: %s", n.Title, n.Message)
}

// MultiNotifier fans a notification out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) OnRetry(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.OnRetry(ctx, n)
	}
}

func (m MultiNotifier) OnExhausted(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.OnExhausted(ctx, n)
	}
}

func retryNotification(attempt, statusCode int) Notification {
	return Notification{
		Title:      "Hold on...",
		Message:    fmt.Sprintf("Request failed with status %d. Retrying... Attempt %d", statusCode, attempt),
		Severity:   SeverityWarning,
		Attempt:    attempt,
		StatusCode: statusCode,
	}
}

func exhaustedNotification(attempts, statusCode int) Notification {
	return Notification{
		Title:      "Request Failed",
		Message:    fmt.Sprintf("Request failed after %d attempts", attempts),
		Severity:   SeverityError,
		Attempt:    attempts,
		StatusCode: statusCode,
	}
}

func safeNotify(logger RequestLogger, fn func()) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Errorf("notifier panicked: %v", r)
		}
	}()

	fn()
}
