package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// HeaderRequestID carries an identifier shared by all attempts of one request.
const HeaderRequestID = "X-Request-ID"

type Client struct {
	baseURL     string
	options     *Options
	mu          sync.Mutex
	restyClient atomic.Pointer[resty.Client]
}

func New(baseURL string, opts ...Option) *Client {
	options := newClientOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		baseURL: baseURL,
		options: options,
	}
}

// Connect validates the options and prepares the underlying HTTP client.
// Calling Connect on a connected client is a no-op.
func (c *Client) Connect(_ context.Context) error {
	if c == nil {
		return errors.New("client is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.restyClient.Load() != nil {
		return nil
	}

	if c.baseURL == "" {
		return errors.New("base URL must be set")
	}

	if err := c.options.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	restyClient := resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(c.options.timeout).
		SetRetryCount(0).
		SetLogger(c.options.requestLogger).
		SetHeaders(c.options.requestHeaders)

	if c.options.basicAuthUsername != "" {
		restyClient.SetBasicAuth(c.options.basicAuthUsername, c.options.basicAuthPassword)
	}

	if c.options.authToken != "" {
		restyClient.SetAuthToken(c.options.authToken)

		if c.options.authScheme != "" {
			restyClient.SetAuthScheme(c.options.authScheme)
		}
	}

	c.restyClient.Store(restyClient)

	return nil
}

// Close releases idle connections. The client can not be reconnected.
func (c *Client) Close() {
	if c == nil {
		return
	}

	if restyClient := c.restyClient.Load(); restyClient != nil {
		restyClient.GetClient().CloseIdleConnections()
	}
}

func (c *Client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodGet, req)
}

func (c *Client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodPost, req)
}

func (c *Client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, req)
}

func (c *Client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, req)
}

// Do sends req, retrying transient failures according to the client's retry
// settings. The returned error is a [*TransportError] for non-retryable HTTP
// statuses, a [*RetriesExhaustedError] when every attempt failed, or the
// transport error otherwise.
func (c *Client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if c == nil {
		return nil, errors.New("client is nil")
	}

	restyClient := c.restyClient.Load()
	if restyClient == nil {
		return nil, errors.New("client not connected - call Connect() first")
	}

	if req == nil {
		return nil, errors.New("request must not be nil")
	}

	requestID := uuid.NewString()

	return Execute(ctx, c.options.retry(), func(ctx context.Context) (*Response, error) {
		return c.attempt(ctx, restyClient, method, req, requestID)
	})
}

func (c *Client) attempt(ctx context.Context, restyClient *resty.Client, method string, original *Request, requestID string) (*Response, error) {
	if c.options.rateLimiter != nil {
		if err := c.options.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req, err := c.prepare(original)
	if err != nil {
		return nil, err
	}

	r := restyClient.R().
		SetContext(ctx).
		SetHeader(HeaderRequestID, requestID).
		SetHeaders(req.Headers)

	if req.FormData != nil {
		r.SetFormData(req.FormData)
	} else if req.Body != nil {
		r.SetBody(req.Body)
	}

	c.options.requestLogger.Debugf("%s %s (request %s)", method, req.URL, requestID)

	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &TransportError{
			Method:     method,
			URL:        req.URL,
			StatusCode: resp.StatusCode(),
			Body:       resp.Body(),
		}
	}

	out, err := c.transform(original, &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	})
	if err != nil {
		return nil, err
	}

	// Checked after the response hooks so they can unwrap or rewrite the body.
	if c.isBusy(out.Body) {
		return nil, &busyError{method: method, url: req.URL, code: c.options.busyCode}
	}

	return out, nil
}

func (c *Client) prepare(original *Request) (*Request, error) {
	req := original.clone()

	hooks := make([]RequestHook, 0, len(c.options.beforeSend)+1)
	if original.BeforeSend != nil {
		hooks = append(hooks, original.BeforeSend)
	}

	hooks = append(hooks, c.options.beforeSend...)

	for _, hook := range hooks {
		next, err := hook(req)
		if err != nil {
			return nil, fmt.Errorf("request hook failed: %w", err)
		}

		if next != nil {
			req = next
		}
	}

	return req, nil
}

func (c *Client) transform(original *Request, resp *Response) (*Response, error) {
	hooks := append([]ResponseHook{}, c.options.afterReceive...)
	if original.AfterReceive != nil {
		hooks = append(hooks, original.AfterReceive)
	}

	for _, hook := range hooks {
		next, err := hook(resp)
		if err != nil {
			return nil, fmt.Errorf("response hook failed: %w", err)
		}

		if next != nil {
			resp = next
		}
	}

	return resp, nil
}

func (c *Client) isBusy(body []byte) bool {
	if c.options.busyCode == 0 || len(body) == 0 {
		return false
	}

	var payload struct {
		ErrCode json.RawMessage `json:"err_code"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}

	// Only a bare JSON number matches; "40004" as a string does not.
	return string(payload.ErrCode) == strconv.Itoa(c.options.busyCode)
}
