// Package push forwards push-worthy alerts to an external push gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"deliveryhub/internal/notification/app/core"
	"deliveryhub/internal/xpkg/events"
)

type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}
}

// Push POSTs the alert as JSON. Any non-2xx answer is an error.
func (w *Webhook) Push(ctx context.Context, a events.Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPush, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alert-Id", a.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPush, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", core.ErrPush, resp.StatusCode)
	}
	return nil
}
