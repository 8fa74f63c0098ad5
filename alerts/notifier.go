// Package alerts forwards retry notifications to a Slack Manager alerts API.
//
//	n := alerts.New("https://slack-manager.example.com", alerts.WithAuthToken(token))
//	if err := n.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	c := client.New(apiURL, client.WithNotifier(n))
//
// Notifications are delivered in the background. Delivery failures are
// logged through the configured [client.RequestLogger] and never reach the
// request that triggered the notification. Call [Notifier.Wait] before
// exiting to let pending deliveries finish.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-resty/resty/v2"
	common "github.com/peteraglen/slack-manager-common"

	client "github.com/peteraglen/giftcode-client"
)

const (
	pingPath   = "/ping"
	alertsPath = "/alerts"
)

// Notifier implements [client.Notifier].
type Notifier struct {
	baseURL     string
	options     *Options
	mu          sync.RWMutex
	restyClient *resty.Client
	pending     sync.WaitGroup
}

var _ client.Notifier = (*Notifier)(nil)

func New(baseURL string, opts ...Option) *Notifier {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Notifier{
		baseURL: baseURL,
		options: options,
	}
}

// Connect validates the options and pings the alerts API. Calling Connect on
// a connected notifier is a no-op.
func (n *Notifier) Connect(ctx context.Context) error {
	if n == nil {
		return errors.New("alert notifier is nil")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.restyClient != nil {
		return nil
	}

	if n.baseURL == "" {
		return errors.New("base URL must be set")
	}

	if err := n.options.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	restyClient := resty.New().
		SetBaseURL(n.baseURL).
		SetRetryCount(n.options.retryCount).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWaitTime).
		AddRetryCondition(retryDelivery).
		SetLogger(n.options.requestLogger).
		SetHeaders(n.options.requestHeaders)

	if n.options.authToken != "" {
		restyClient.SetAuthToken(n.options.authToken)

		if n.options.authScheme != "" {
			restyClient.SetAuthScheme(n.options.authScheme)
		}
	}

	resp, err := restyClient.R().SetContext(ctx).Get(pingPath)
	if err != nil {
		return fmt.Errorf("failed to ping alerts API: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("failed to ping alerts API: %w", transportError(http.MethodGet, pingPath, resp))
	}

	n.restyClient = restyClient

	return nil
}

// Send posts alerts to the alerts API.
func (n *Notifier) Send(ctx context.Context, alerts ...*common.Alert) error {
	if n == nil {
		return errors.New("alert notifier is nil")
	}

	n.mu.RLock()
	restyClient := n.restyClient
	n.mu.RUnlock()

	if restyClient == nil {
		return errors.New("notifier not connected - call Connect() first")
	}

	if len(alerts) == 0 {
		return errors.New("alerts list cannot be empty")
	}

	for i, alert := range alerts {
		if alert == nil {
			return fmt.Errorf("alert at index %d is nil", i)
		}
	}

	body := struct {
		Alerts []*common.Alert `json:"alerts"`
	}{Alerts: alerts}

	resp, err := restyClient.R().SetContext(ctx).SetBody(body).Post(alertsPath)
	if err != nil {
		return fmt.Errorf("%s %s: %w", http.MethodPost, alertsPath, err)
	}

	if resp.IsError() {
		return transportError(http.MethodPost, alertsPath, resp)
	}

	return nil
}

func (n *Notifier) OnRetry(ctx context.Context, notification client.Notification) {
	if !n.options.retryAlerts {
		return
	}

	n.deliver(ctx, notification)
}

func (n *Notifier) OnExhausted(ctx context.Context, notification client.Notification) {
	n.deliver(ctx, notification)
}

// Wait blocks until every notification handed to the notifier so far has
// been delivered or has failed.
func (n *Notifier) Wait() {
	if n != nil {
		n.pending.Wait()
	}
}

// deliver sends in the background so a slow alerts API never holds up the
// retry loop. The send outlives ctx, bounded by the send timeout.
func (n *Notifier) deliver(ctx context.Context, notification client.Notification) {
	ctx = context.WithoutCancel(ctx)
	alert := toAlert(notification)

	n.pending.Add(1)

	go func() {
		defer n.pending.Done()

		ctx, cancel := context.WithTimeout(ctx, n.options.sendTimeout)
		defer cancel()

		if err := n.Send(ctx, alert); err != nil {
			n.options.requestLogger.Errorf("failed to deliver %s alert %q: %v", notification.Severity, notification.Title, err)
		}
	}()
}

func toAlert(notification client.Notification) *common.Alert {
	severity := common.AlertError
	if notification.Severity == client.SeverityWarning {
		severity = common.AlertWarning
	}

	alert := common.NewAlert(severity)
	alert.Header = notification.Title
	alert.Text = notification.Message

	return alert
}

func transportError(method, path string, resp *resty.Response) *client.TransportError {
	return &client.TransportError{
		Method:     method,
		URL:        path,
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}
}
