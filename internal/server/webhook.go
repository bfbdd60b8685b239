package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chaosdojo/chaosdojo/internal/history"
)

// Webhook forwards run summaries to an optional workflow-orchestration
// endpoint. Delivery is best effort: failures are logged and never block or
// fail the run.
type Webhook struct {
	URL    string
	Client *http.Client
	Logger logrus.FieldLogger
}

// NewWebhook returns a webhook sender, or nil when no URL is configured.
func NewWebhook(url string, logger logrus.FieldLogger) *Webhook {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
}

// Notify posts one run record as JSON.
func (w *Webhook) Notify(ctx context.Context, rec history.Record) {
	payload, err := json.Marshal(rec)
	if err != nil {
		w.Logger.WithError(err).Warn("webhook marshal failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		w.Logger.WithError(err).Warn("webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		w.Logger.WithError(err).Warn("webhook delivery failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.Logger.WithField("status", resp.StatusCode).Warn("webhook rejected")
	}
}
