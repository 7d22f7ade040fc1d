// Package notify posts run summaries to a Discord webhook. Notification
// failures never fail a build; callers log the returned error as a
// warning and move on.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SafeLimit stays under Discord's 2000-character message cap with room
// for formatting the webhook layer may add.
const SafeLimit = 1900

// Notifier posts plain-content messages to one webhook URL
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier builds a notifier; an empty URL makes Send a no-op
func NewNotifier(webhookURL string, timeout time.Duration) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a webhook URL is set
func (n *Notifier) Configured() bool {
	return n.webhookURL != ""
}

// Send posts one message. Callers treat a returned error as a warning.
func (n *Notifier) Send(content string) error {
	if !n.Configured() {
		return nil
	}

	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}

	resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("discord webhook failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook failed: %s", resp.Status)
	}
	return nil
}
