package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chainlode/ethexport/internal/partition"
)

// WebhookNotifier POSTs events as JSON to a set of endpoints.
type WebhookNotifier struct {
	client *http.Client
	urls   []string
}

// NewWebhookNotifier creates a webhook notifier for the given URLs.
func NewWebhookNotifier(urls []string) *WebhookNotifier {
	return &WebhookNotifier{
		client: &http.Client{Timeout: 10 * time.Second},
		urls:   urls,
	}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(map[string]interface{}{
		"pipeline":     event.Pipeline,
		"step":         event.Step,
		"date":         partition.FormatDate(event.Date),
		"attempt":      event.Attempt,
		"max_attempts": event.MaxAttempts,
		"final":        event.Final,
		"error":        fmt.Sprint(event.Err),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	for _, url := range n.urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("webhook request for %s: %w", url, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook post to %s: %w", url, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("webhook post to %s: status %d", url, resp.StatusCode)
		}
	}
	return nil
}
