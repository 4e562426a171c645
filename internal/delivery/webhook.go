package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lazypower/nudge/internal/engine"
)

const defaultTimeout = 5 * time.Second

// Webhook POSTs each decision as JSON to a storefront endpoint.
type Webhook struct {
	http *http.Client
	url  string
}

// NewWebhook creates a webhook publisher. A zero timeout uses five seconds.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Webhook{
		http: &http.Client{Timeout: timeout},
		url:  url,
	}
}

func (w *Webhook) Name() string { return KindWebhook }

// Publish sends d. Any non-2xx response is an error carrying the body.
func (w *Webhook) Publish(ctx context.Context, d *engine.Decision) error {
	body, err := encode(d)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Nudge-Decision", d.ID)

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", w.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("POST %s: status %d: %s", w.url, resp.StatusCode, data)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Healthy reports whether the endpoint answers a HEAD request below 500.
func (w *Webhook) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, w.url, nil)
	if err != nil {
		return false
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
