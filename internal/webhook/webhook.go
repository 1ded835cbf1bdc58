// Package webhook posts session events to an operator-configured URL.
// Delivery is best effort and never fails the caller.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 5 * time.Second

// Payload is the JSON body sent on session end.
type Payload struct {
	Event       string    `json:"event"`
	ProjectPath string    `json:"projectPath"`
	SessionID   string    `json:"sessionId"`
	Summary     string    `json:"summary"`
	Failed      bool      `json:"failed"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notifier delivers payloads.
type Notifier struct {
	Client *http.Client
	Log    *logrus.Entry
}

// New returns a Notifier with DefaultTimeout.
func New(log *logrus.Entry) *Notifier {
	return &Notifier{Client: &http.Client{Timeout: DefaultTimeout}, Log: log}
}

// Fire posts payload to url. An empty url is a no-op. Errors are logged and
// dropped.
func (n *Notifier) Fire(ctx context.Context, url string, payload Payload) {
	if url == "" {
		return
	}
	if err := n.post(ctx, url, payload); err != nil && n.Log != nil {
		n.Log.WithError(err).WithField("url", url).Warn("webhook delivery failed")
	}
}

func (n *Notifier) post(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	client := n.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	ctx, cancel := context.WithTimeout(ctx, client.Timeout+time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
