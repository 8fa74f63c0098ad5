package alerts

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	client "github.com/peteraglen/giftcode-client"
)

const (
	retryWaitTime    = 500 * time.Millisecond
	retryMaxWaitTime = 3 * time.Second
)

type Option func(*Options)

type Options struct {
	retryCount     int
	sendTimeout    time.Duration
	retryAlerts    bool
	requestLogger  client.RequestLogger
	requestHeaders map[string]string
	authScheme     string
	authToken      string
}

func newOptions() *Options {
	return &Options{
		retryCount:    3,
		sendTimeout:   10 * time.Second,
		retryAlerts:   true,
		requestLogger: &client.NoopLogger{},
		requestHeaders: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}
}

// retryDelivery retries alert delivery on HTTP 429 and 5xx responses and on
// connection errors, except context errors and DNS failures.
func retryDelivery(r *resty.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}

		var dnsErr *net.DNSError
		return !errors.As(err, &dnsErr)
	}

	return r.StatusCode() == 429 || r.StatusCode() >= 500
}

// WithRetryCount sets how many times a failed delivery is retried.
// Negative values are ignored.
func WithRetryCount(count int) Option {
	return func(o *Options) {
		if count >= 0 {
			o.retryCount = count
		}
	}
}

// WithSendTimeout bounds how long a single notification may take to
// deliver, retries included.
func WithSendTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		if timeout >= 100*time.Millisecond {
			o.sendTimeout = timeout
		}
	}
}

// WithRetryAlerts controls whether retry notifications are forwarded. When
// disabled only requests that ran out of attempts raise an alert.
func WithRetryAlerts(enabled bool) Option {
	return func(o *Options) {
		o.retryAlerts = enabled
	}
}

func WithRequestLogger(logger client.RequestLogger) Option {
	return func(o *Options) {
		if logger != nil {
			o.requestLogger = logger
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
	if o.retryCount < 0 {
		return errors.New("retryCount must be non-negative")
	}

	if o.retryCount > 100 {
		return errors.New("retryCount must not exceed 100")
	}

	if o.sendTimeout < 100*time.Millisecond {
		return errors.New("sendTimeout must be at least 100ms")
	}

	if o.requestLogger == nil {
		return errors.New("requestLogger must not be nil")
	}

	if o.authScheme != "" && o.authToken == "" {
		return errors.New("authScheme requires an auth token")
	}

	return nil
}
