package notifiers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/daniacca/mattercore/internal/matter"
)

// WebhookNotifier posts containment events as JSON to a URL.
type WebhookNotifier struct {
	id      string
	url     string
	client  *http.Client
	headers map[string]string
	types   map[matter.EventType]bool
}

// NewWebhookNotifier creates a webhook notifier. With no event types every
// event is delivered.
func NewWebhookNotifier(id, url string, types ...matter.EventType) *WebhookNotifier {
	wn := &WebhookNotifier{
		id:      id,
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		headers: make(map[string]string),
	}
	if len(types) > 0 {
		wn.types = make(map[matter.EventType]bool, len(types))
		for _, t := range types {
			wn.types[t] = true
		}
	}
	return wn
}

// SetHeader sets a custom header to include in webhook requests
func (wn *WebhookNotifier) SetHeader(key, value string) {
	wn.headers[key] = value
}

// ID returns the notifier ID
func (wn *WebhookNotifier) ID() string {
	return wn.id
}

// Type returns the notifier type
func (wn *WebhookNotifier) Type() string {
	return "webhook"
}

// Accepts reports whether the notifier delivers events of type t.
func (wn *WebhookNotifier) Accepts(t matter.EventType) bool {
	return wn.types == nil || wn.types[t]
}

// Notify posts the event. Filtered event types succeed without a request.
func (wn *WebhookNotifier) Notify(ctx context.Context, event matter.ContainmentEvent) error {
	if !wn.Accepts(event.Type) {
		return nil
	}
	body, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Matter-Event", string(event.Type))
	for key, value := range wn.headers {
		req.Header.Set(key, value)
	}

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close closes the notifier (no-op for webhook)
func (wn *WebhookNotifier) Close() error {
	return nil
}

var _ matter.Notifier = (*WebhookNotifier)(nil)
