// Package notify delivers fire-and-forget event summaries to external
// sinks. Delivery failures are logged and never propagate back into the
// monitoring core.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// Sink receives event summaries.
type Sink interface {
	Notify(summary string)
}

// LogSink writes summaries to the daemon log. Always available.
type LogSink struct{}

// Notify logs the summary.
func (LogSink) Notify(summary string) {
	watchlog.Log.Info("Notification", "summary", summary)
}

// Webhook posts summaries as JSON to a configured URL. Each delivery runs
// in its own goroutine with bounded retries.
type Webhook struct {
	URL    string
	Client *http.Client

	// MaxElapsed bounds total retry time per delivery; zero means 30s.
	MaxElapsed time.Duration
}

// NewWebhook creates a webhook sink for the given URL.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type payload struct {
	Summary string    `json:"summary"`
	Time    time.Time `json:"time"`
}

// Notify delivers the summary asynchronously. Returns immediately.
func (w *Webhook) Notify(summary string) {
	go w.deliver(summary)
}

func (w *Webhook) deliver(summary string) {
	body, err := json.Marshal(payload{Summary: summary, Time: time.Now()})
	if err != nil {
		watchlog.Log.Error("Marshal notification", "error", err)
		return
	}

	maxElapsed := w.MaxElapsed
	if maxElapsed == 0 {
		maxElapsed = 30 * time.Second
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = maxElapsed

	err = backoff.Retry(func() error {
		resp, err := w.Client.Post(w.URL, "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			// Client errors won't heal on retry.
			return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
		}
		return nil
	}, policy)
	if err != nil {
		watchlog.Log.Warn("Notification delivery failed", "url", w.URL, "error", err)
	}
}

// Multi fans a summary out to several sinks.
type Multi []Sink

// Notify delivers to every sink.
func (m Multi) Notify(summary string) {
	for _, s := range m {
		s.Notify(summary)
	}
}
