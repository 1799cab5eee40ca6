/*
Package notify delivers outbound notifications (payment reminders, payroll
approvals) to external channels.

PURPOSE:
  Core packages return data; this package pushes it out. Delivery is
  best-effort: a failed send is an error the caller records as a warning,
  never a reason to roll back the business operation that triggered it.

IMPLEMENTATIONS:
  Webhook: POST JSON to a configured URL
  Console: logs the message (dev)
  Noop:    discards (tests, notifications disabled)
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is one outbound notification.
type Message struct {
	// Recipient is an address in the channel's terms (email, webhook
	// consumers route on it).
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`

	// Kind tags the trigger: "payment_reminder", "payroll_approved", ...
	Kind string `json:"kind"`
}

// Notifier sends a single message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// =============================================================================
// WEBHOOK
// =============================================================================

// Webhook POSTs each message as JSON to a fixed URL.
type Webhook struct {
	URL    string
	Client *http.Client
	Log    *logrus.Logger
}

// NewWebhook returns a Webhook with a 10s default timeout.
func NewWebhook(url string, log *logrus.Logger) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		Log:    log,
	}
}

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("posting notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	if w.Log != nil {
		w.Log.WithFields(logrus.Fields{
			"recipient": msg.Recipient,
			"kind":      msg.Kind,
		}).Info("notification sent")
	}
	return nil
}

// =============================================================================
// CONSOLE / NOOP
// =============================================================================

// Console logs each message instead of delivering it.
type Console struct {
	Log *logrus.Logger
}

func (c *Console) Send(_ context.Context, msg Message) error {
	c.Log.WithFields(logrus.Fields{
		"recipient": msg.Recipient,
		"subject":   msg.Subject,
		"kind":      msg.Kind,
	}).Info("notification (console)")
	return nil
}

// Noop discards every message.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }
