package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"hakobite/internal/models"
)

// Webhook posts the booking as JSON to an external business system.
type Webhook struct {
	client *http.Client
	url    string
	token  string
}

func NewWebhook(client *http.Client, url, token string) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{client: client, url: url, token: token}
}

func (w *Webhook) Name() string { return "webhook" }

type webhookPayload struct {
	Type    string               `json:"type"`
	Booking models.BookingRecord `json:"booking"`
}

func (w *Webhook) Notify(ctx context.Context, r models.BookingRecord) error {
	body, err := json.Marshal(webhookPayload{Type: "booking.created", Booking: r})
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hakobite/1.0")
	req.Header.Set("Idempotency-Key", r.BookingID)
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
