// Package client provides a retrying HTTP client for the gift code API.
//
// The client wraps [github.com/go-resty/resty/v2] with a bounded retry loop
// using linear backoff, request and response hooks, and pluggable logging
// and notifications. Package api builds the player and gift code requests on
// top of it.
//
// # Basic Usage
//
//	c := client.New("https://api.example.com",
//	    client.WithMaxAttempts(5),
//	    client.WithNotifier(notifier),
//	)
//
//	if err := c.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	resp, err := c.Post(ctx, &client.Request{URL: "/player", FormData: form})
//
// # Configuration
//
// All configuration is supplied as [Option] functions passed to [New].
// Invalid values are silently ignored and the default is retained;
// all configuration is validated when [Client.Connect] is called.
//
// # Retry Behaviour
//
// A request is attempted at most [DefaultMaxAttempts] times unless changed
// with [WithMaxAttempts]. [DefaultRetryPolicy] retries on HTTP 429, 500 and
// 503 only; any other failure is returned at once. After failed attempt n
// the client waits the base delay plus n-1 seconds, so with the default
// base delay of 8s the waits are 8s, 9s, 10s and so on.
//
// A 2xx response whose JSON body carries the busy err_code (see
// [WithBusyCode]) is retried immediately without waiting; it still counts
// as an attempt.
//
// When every attempt has failed the returned error matches
// [ErrRetriesExhausted] and unwraps to the last failure.
//
// [Execute] exposes the same loop for arbitrary operations.
//
// # Notifications
//
// A [Notifier] supplied via [WithNotifier] is told about every retry and
// about requests that ran out of attempts. Notifications never change the
// result of a request. Package alerts forwards them to a Slack Manager API.
//
// # Logging
//
// Implement [RequestLogger] and supply it via [WithRequestLogger] to
// integrate with your logging library. The default [NoopLogger] discards
// all log output.
package client
