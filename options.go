package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBusyCode is the err_code value the game API uses to signal that
	// it is temporarily too busy to handle the request.
	DefaultBusyCode = 40004

	maxAttemptsLimit = 100
	maxBaseDelay     = 5 * time.Minute
	minTimeout       = 100 * time.Millisecond
	maxTimeout       = 5 * time.Minute
)

type Option func(*Options)

type Options struct {
	maxAttempts       int
	baseDelay         time.Duration
	timeout           time.Duration
	busyCode          int
	requestLogger     RequestLogger
	retryPolicy       func(error) bool
	notifier          Notifier
	requestHeaders    map[string]string
	beforeSend        []RequestHook
	afterReceive      []ResponseHook
	rateLimiter       *rate.Limiter
	basicAuthUsername string
	basicAuthPassword string
	authScheme        string
	authToken         string
	sleep             func(ctx context.Context, d time.Duration) error
}

func newClientOptions() *Options {
	return &Options{
		maxAttempts:   DefaultMaxAttempts,
		baseDelay:     DefaultBaseDelay,
		timeout:       30 * time.Second,
		busyCode:      DefaultBusyCode,
		requestLogger: &NoopLogger{},
		retryPolicy:   DefaultRetryPolicy,
		notifier:      NoopNotifier{},
		requestHeaders: map[string]string{
			"Accept": "application/json",
		},
		sleep: Sleep,
	}
}

// WithMaxAttempts sets the number of attempts per request, including the
// first one. Negative values are ignored.
func WithMaxAttempts(attempts int) Option {
	return func(o *Options) {
		if attempts >= 0 {
			o.maxAttempts = attempts
		}
	}
}

// WithBaseDelay sets the wait after the first retryable failure. Negative
// values are ignored.
func WithBaseDelay(delay time.Duration) Option {
	return func(o *Options) {
		if delay >= 0 {
			o.baseDelay = delay
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout >= minTimeout {
			o.timeout = timeout
		}
	}
}

// WithBusyCode sets the err_code value treated as a busy signal. Zero
// disables busy detection.
func WithBusyCode(code int) Option {
	return func(o *Options) {
		if code >= 0 {
			o.busyCode = code
		}
	}
}

func WithRequestLogger(logger RequestLogger) Option {
	return func(o *Options) {
		if logger != nil {
			o.requestLogger = logger
		}
	}
}

func WithRetryPolicy(policy func(error) bool) Option {
	return func(o *Options) {
		if policy != nil {
			o.retryPolicy = policy
		}
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(o *Options) {
		if notifier != nil {
			o.notifier = notifier
		}
	}
}

// WithRateLimiter makes every attempt wait for a token from limiter. The
// limiter is shared by all requests made through the client.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(o *Options) {
		if limiter != nil {
			o.rateLimiter = limiter
		}
	}
}

// WithBeforeSend registers a hook applied to every request before each
// attempt, after the per-request hook.
func WithBeforeSend(hook RequestHook) Option {
	return func(o *Options) {
		if hook != nil {
			o.beforeSend = append(o.beforeSend, hook)
		}
	}
}

// WithAfterReceive registers a hook applied to every successful response,
// before the per-request hook.
func WithAfterReceive(hook ResponseHook) Option {
	return func(o *Options) {
		if hook != nil {
			o.afterReceive = append(o.afterReceive, hook)
		}
	}
}

func WithRequestHeader(header, value string) Option {
	return func(o *Options) {
		header = strings.TrimSpace(header)

		if header == "" || strings.EqualFold(header, "Content-Type") || strings.EqualFold(header, "Accept") {
			return
		}

		o.requestHeaders[header] = value
	}
}

func WithBasicAuth(username, password string) Option {
	return func(o *Options) {
		o.basicAuthUsername = username
		o.basicAuthPassword = password
	}
}

func WithAuthScheme(scheme string) Option {
	return func(o *Options) {
		o.authScheme = scheme
	}
}

func WithAuthToken(token string) Option {
	return func(o *Options) {
		o.authToken = token
	}
}

func (o *Options) Validate() error {
	if o.maxAttempts < 0 {
		return errors.New("maxAttempts must be non-negative")
	}

	if o.maxAttempts > maxAttemptsLimit {
		return fmt.Errorf("maxAttempts must not exceed %d", maxAttemptsLimit)
	}

	if o.baseDelay < 0 {
		return errors.New("baseDelay must be non-negative")
	}

	if o.baseDelay > maxBaseDelay {
		return fmt.Errorf("baseDelay must not exceed %v", maxBaseDelay)
	}

	if o.timeout < minTimeout {
		return fmt.Errorf("timeout must be at least %v", minTimeout)
	}

	if o.timeout > maxTimeout {
		return fmt.Errorf("timeout must not exceed %v", maxTimeout)
	}

	if o.busyCode < 0 {
		return errors.New("busyCode must be non-negative")
	}

	if o.requestLogger == nil {
		return errors.New("requestLogger must not be nil")
	}

	if o.retryPolicy == nil {
		return errors.New("retryPolicy must not be nil")
	}

	if o.notifier == nil {
		return errors.New("notifier must not be nil")
	}

	if o.basicAuthUsername != "" && o.authToken != "" {
		return errors.New("cannot use both basic auth and token auth - choose one")
	}

	return nil
}

func (o *Options) retry() Retry {
	return Retry{
		MaxAttempts: o.maxAttempts,
		BaseDelay:   o.baseDelay,
		Retryable:   o.retryPolicy,
		Notifier:    o.notifier,
		Logger:      o.requestLogger,
		sleep:       o.sleep,
	}
}
