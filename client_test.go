package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a connected client whose retry waits are recorded
// instead of slept.
func newTestClient(t *testing.T, baseURL string, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()

	sleeper := &sleepRecorder{}
	client := New(baseURL, opts...)
	client.options.sleep = sleeper.sleep

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	return client, sleeper
}

func TestNew(t *testing.T) {
	t.Parallel()

	client := New("http://example.com", WithMaxAttempts(5))

	if client == nil {
		t.Fatal("expected client to be created")
	}

	if client.baseURL != "http://example.com" {
		t.Errorf("expected baseURL=http://example.com, got %s", client.baseURL)
	}

	if client.options.maxAttempts != 5 {
		t.Errorf("expected maxAttempts=5, got %d", client.options.maxAttempts)
	}
}

func TestConnect_EmptyURL(t *testing.T) {
	t.Parallel()

	client := New("")

	err := client.Connect(context.Background())

	if err == nil {
		t.Fatal("expected error for empty URL")
	}

	if err.Error() != "base URL must be set" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConnect_InvalidOptions(t *testing.T) {
	t.Parallel()

	client := New("http://example.com")
	// Force invalid options by setting nil logger
	client.options.requestLogger = nil

	err := client.Connect(context.Background())

	if err == nil {
		t.Fatal("expected error for invalid options")
	}

	if !strings.Contains(err.Error(), "invalid options") {
		t.Errorf("expected error to contain 'invalid options', got: %v", err)
	}
}

func TestConnect_OnlyOnce(t *testing.T) {
	t.Parallel()

	client := New("http://example.com")

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("first connect failed: %v", err)
	}

	first := client.restyClient.Load()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("second connect failed: %v", err)
	}

	if client.restyClient.Load() != first {
		t.Error("second connect should be a no-op")
	}
}

func TestDo_NilClient(t *testing.T) {
	t.Parallel()

	var client *Client

	_, err := client.Post(context.Background(), &Request{URL: "/player"})

	if err == nil || err.Error() != "client is nil" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDo_NotConnected(t *testing.T) {
	t.Parallel()

	client := New("http://example.com")

	_, err := client.Post(context.Background(), &Request{URL: "/player"})

	if err == nil || err.Error() != "client not connected - call Connect() first" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDo_NilRequest(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, "http://example.com")

	_, err := client.Get(context.Background(), nil)

	if err == nil || err.Error() != "request must not be nil" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDo_Methods(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var methods []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	ctx := context.Background()

	for _, call := range []func(context.Context, *Request) (*Response, error){client.Get, client.Post, client.Delete, client.Patch} {
		if _, err := call(ctx, &Request{URL: "/x"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	expected := []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodPatch}
	for i, m := range expected {
		if methods[i] != m {
			t.Errorf("expected method %s at %d, got %s", m, i, methods[i])
		}
	}
}

func TestDo_FormPost(t *testing.T) {
	t.Parallel()

	var capturedPath, contentType, accept, customHeader, requestID string
	var capturedForm url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		accept = r.Header.Get("Accept")
		customHeader = r.Header.Get("X-Custom")
		requestID = r.Header.Get(HeaderRequestID)
		_ = r.ParseForm()
		capturedForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":{"nickname":"x"}}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, WithRequestHeader("X-Custom", "custom-value"))

	resp, err := client.Post(context.Background(), &Request{
		URL:      "/player",
		Headers:  map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		FormData: map[string]string{"fid": "123", "sign": "abc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capturedPath != "/player" {
		t.Errorf("expected path=/player, got %s", capturedPath)
	}

	if !strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		t.Errorf("expected form content type, got %s", contentType)
	}

	if accept != "application/json" {
		t.Errorf("expected Accept=application/json, got %s", accept)
	}

	if customHeader != "custom-value" {
		t.Errorf("expected X-Custom=custom-value, got %s", customHeader)
	}

	if requestID == "" {
		t.Error("expected request ID header")
	}

	if capturedForm.Get("fid") != "123" || capturedForm.Get("sign") != "abc" {
		t.Errorf("unexpected form: %v", capturedForm)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	if string(resp.Body) != `{"code":0,"data":{"nickname":"x"}}` {
		t.Errorf("expected body to pass through unchanged, got %s", resp.Body)
	}
}

func TestDo_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var mu sync.Mutex
	requestIDs := map[string]bool{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestIDs[r.Header.Get(HeaderRequestID)] = true
		mu.Unlock()

		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	defer server.Close()

	notifier := &recordingNotifier{}
	client, sleeper := newTestClient(t, server.URL, WithNotifier(notifier), WithBaseDelay(2*time.Second))

	resp, err := client.Post(context.Background(), &Request{URL: "/gift_code"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(resp.Body) != `{"code":0}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}

	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}

	delays := sleeper.recorded()
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 3*time.Second {
		t.Errorf("expected waits [2s 3s], got %v", delays)
	}

	if len(notifier.retries) != 2 || notifier.retries[0].StatusCode != 503 {
		t.Errorf("unexpected retry notifications: %+v", notifier.retries)
	}

	if len(requestIDs) != 1 {
		t.Errorf("expected one request ID across attempts, got %d", len(requestIDs))
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "database unavailable"}`))
	}))
	defer server.Close()

	notifier := &recordingNotifier{}
	client, _ := newTestClient(t, server.URL, WithNotifier(notifier), WithMaxAttempts(3))

	_, err := client.Post(context.Background(), &Request{URL: "/player"})

	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}

	if !strings.Contains(err.Error(), "database unavailable") {
		t.Errorf("expected error to contain the server message, got: %v", err)
	}

	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}

	if len(notifier.exhausted) != 1 {
		t.Errorf("expected one exhausted notification, got %d", len(notifier.exhausted))
	}
}

func TestDo_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Bad Request"))
	}))
	defer server.Close()

	notifier := &recordingNotifier{}
	client, sleeper := newTestClient(t, server.URL, WithNotifier(notifier))

	_, err := client.Post(context.Background(), &Request{URL: "/player"})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}

	if transportErr.StatusCode != http.StatusBadRequest || string(transportErr.Body) != "Bad Request" {
		t.Errorf("unexpected transport error: %+v", transportErr)
	}

	if errors.Is(err, ErrRetriesExhausted) {
		t.Error("non-retryable failure should not be reported as exhausted")
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}

	if len(notifier.retries) != 0 || len(notifier.exhausted) != 0 || len(sleeper.recorded()) != 0 {
		t.Error("expected no notifications and no waits")
	}
}

func TestDo_BusyCode(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"code":1,"msg":"busy","err_code":40004}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer server.Close()

	notifier := &recordingNotifier{}
	client, sleeper := newTestClient(t, server.URL, WithNotifier(notifier))

	resp, err := client.Post(context.Background(), &Request{URL: "/gift_code"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(string(resp.Body), "success") {
		t.Errorf("unexpected body: %s", resp.Body)
	}

	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}

	for _, d := range sleeper.recorded() {
		if d != 0 {
			t.Errorf("expected busy retry without delay, got %v", d)
		}
	}

	if len(notifier.retries) != 0 {
		t.Errorf("expected no retry notifications, got %d", len(notifier.retries))
	}
}

func TestDo_BusyCodeDisabled(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"err_code":40004}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, WithBusyCode(0))

	resp, err := client.Post(context.Background(), &Request{URL: "/gift_code"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(resp.Body) != `{"err_code":40004}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestDo_BusyCodeMustBeNumber(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"err_code":"40004"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	resp, err := client.Post(context.Background(), &Request{URL: "/gift_code"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(resp.Body) != `{"err_code":"40004"}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}

	if calls.Load() != 1 {
		t.Errorf("expected a quoted err_code not to be treated as busy, got %d calls", calls.Load())
	}
}

func TestDo_BusyCodeCheckedAfterResponseHooks(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"data":{"err_code":40004}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"nickname":"p1"}}`))
	}))
	defer server.Close()

	unwrap := func(resp *Response) (*Response, error) {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &envelope); err != nil {
			return nil, err
		}

		out := *resp
		out.Body = envelope.Data

		return &out, nil
	}

	client, sleeper := newTestClient(t, server.URL, WithAfterReceive(unwrap))

	resp, err := client.Post(context.Background(), &Request{URL: "/player"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(resp.Body) != `{"nickname":"p1"}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}

	if calls.Load() != 2 {
		t.Errorf("expected the unwrapped busy body to be retried, got %d calls", calls.Load())
	}

	for _, d := range sleeper.recorded() {
		if d != 0 {
			t.Errorf("expected busy retry without delay, got %v", d)
		}
	}
}

func TestDo_RequestError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	client, _ := newTestClient(t, server.URL)

	// Close server to cause connection error
	server.Close()

	_, err := client.Post(context.Background(), &Request{URL: "/player"})

	if err == nil {
		t.Fatal("expected error for request failure")
	}

	if !strings.Contains(err.Error(), "POST") {
		t.Errorf("expected error to mention POST, got: %v", err)
	}

	if errors.Is(err, ErrRetriesExhausted) {
		t.Error("connection errors are not retried")
	}
}

func TestDo_Hooks(t *testing.T) {
	t.Parallel()

	var attemptHeaders []string
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptHeaders = append(attemptHeaders, r.Header.Get("X-Order"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL,
		WithBeforeSend(func(r *Request) (*Request, error) {
			r.Headers["X-Order"] += "client"
			return r, nil
		}),
		WithAfterReceive(func(r *Response) (*Response, error) {
			r.Body = append(r.Body, []byte("|client")...)
			return r, nil
		}),
	)

	resp, err := client.Post(context.Background(), &Request{
		URL:     "/echo",
		Body:    "payload",
		Headers: map[string]string{"X-Order": ""},
		BeforeSend: func(r *Request) (*Request, error) {
			r.Headers["X-Order"] += "request,"
			return r, nil
		},
		AfterReceive: func(r *Response) (*Response, error) {
			r.Body = append(r.Body, []byte("|request")...)
			return r, nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// hooks run on a fresh copy for every attempt
	for i, h := range attemptHeaders {
		if h != "request,client" {
			t.Errorf("attempt %d: expected X-Order=request,client, got %q", i+1, h)
		}
	}

	if string(resp.Body) != "payload|client|request" {
		t.Errorf("unexpected body: %s", resp.Body)
	}
}

func TestDo_HookError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	hookErr := errors.New("cannot sign")

	_, err := client.Post(context.Background(), &Request{
		URL:        "/player",
		BeforeSend: func(_ *Request) (*Request, error) { return nil, hookErr },
	})

	if !errors.Is(err, hookErr) {
		t.Errorf("expected hook error, got %v", err)
	}

	if calls.Load() != 0 {
		t.Errorf("expected no request to be sent, got %d", calls.Load())
	}
}

func TestDo_SetsTokenAuth(t *testing.T) {
	t.Parallel()

	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, WithAuthScheme("Bearer"), WithAuthToken("my-token"))

	if _, err := client.Get(context.Background(), &Request{URL: "/"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if authHeader != "Bearer my-token" {
		t.Errorf("expected 'Bearer my-token', got %s", authHeader)
	}
}

func TestDo_SetsBasicAuth(t *testing.T) {
	t.Parallel()

	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, WithBasicAuth("user", "pass"))

	if _, err := client.Get(context.Background(), &Request{URL: "/"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(authHeader, "Basic ") {
		t.Errorf("expected Basic auth header, got %s", authHeader)
	}
}

func TestDo_ConcurrentRequests(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[string]int{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path]++
		n := seen[r.URL.Path]
		mu.Unlock()

		failures := 1
		if r.URL.Path == "/slow" {
			failures = 3
		}

		if n <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)

	for i, path := range []string{"/fast", "/slow"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Post(context.Background(), &Request{URL: path})
			errs[i] = err
			if resp != nil {
				results[i] = string(resp.Body)
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	if results[0] != "/fast" || results[1] != "/slow" {
		t.Errorf("unexpected results: %v", results)
	}

	if seen["/fast"] != 2 || seen["/slow"] != 4 {
		t.Errorf("expected 2 and 4 attempts, got %d and %d", seen["/fast"], seen["/slow"])
	}
}
