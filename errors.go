package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRetriesExhausted is matched by the error returned when every
	// allowed attempt failed with a retryable condition.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrBusy is reported when the server answered with the configured busy
	// code. See [WithBusyCode].
	ErrBusy = errors.New("server busy")
)

// TransportError is returned when the server responds with a non-2xx status.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, errorMessage(e.Body))
}

// RetriesExhaustedError wraps the last error seen once the attempt limit is
// reached. It matches [ErrRetriesExhausted] with errors.Is.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("request failed after %d attempts", e.Attempts)
	}

	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

type busyError struct {
	method string
	url    string
	code   int
}

func (e *busyError) Error() string {
	return fmt.Sprintf("%s %s answered with busy code %d", e.method, e.url, e.code)
}

func (e *busyError) Is(target error) bool {
	return target == ErrBusy
}

// errorMessage extracts the "error" field from a JSON error body, falling
// back to the raw body.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return "(empty error body)"
	}

	var errResp struct {
		Error string `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}

	return strings.TrimSpace(string(body))
}
