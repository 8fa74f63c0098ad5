package client

import (
	"errors"
	"net/http"
)

// DefaultRetryPolicy is the default retry condition used by [Client]. It
// retries when the server answered with HTTP 429 (rate limit), 500 or 503.
// Every other status, connection errors, and context errors are returned to
// the caller without a retry.
//
// Supply a custom function via [WithRetryPolicy] to override this behaviour.
func DefaultRetryPolicy(err error) bool {
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		return false
	}

	switch transportErr.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}
