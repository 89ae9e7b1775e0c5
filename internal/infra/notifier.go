package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notification is posted to the notification collaborator (sound panel,
// badge counters, chat bot) for every new-order alert tick.
type Notification struct {
	Kind     string    `json:"kind"` // "new_order"
	OrderID  string    `json:"order_id"`
	Customer string    `json:"customer"`
	Channel  string    `json:"channel"`
	Total    string    `json:"total"`
	Attempt  int       `json:"attempt"`
	SentAt   time.Time `json:"sent_at"`
}

// Notifier delivers notifications to an HTTP webhook.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// WebhookNotifier posts JSON to a fixed URL, guarded by a circuit breaker.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	cb         *CircuitBreaker
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		cb:         NewCircuitBreaker(DefaultCBConfig("notifier")),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, msg Notification) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notifier: marshal: %w", err)
	}
	return n.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("notifier: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("notifier: webhook unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return fmt.Errorf("notifier: webhook returned %d", resp.StatusCode)
		}
		return nil
	})
}

// NopNotifier drops every notification. Used when NOTIFIER_URL is unset.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) error { return nil }
