// Package discord builds and delivers webhook messages. Delivery is
// fire-and-forget: one POST per relay, status and body logged, no retry.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Payload is the webhook body: a plain content line plus optional rich
// embeds. Embeds reuse the discordgo wire structs so the JSON shape matches
// what Discord expects.
type Payload struct {
	Content         string                            `json:"content,omitempty"`
	AllowedMentions *discordgo.MessageAllowedMentions `json:"allowed_mentions,omitempty"`
	Embeds          []*discordgo.MessageEmbed         `json:"embeds,omitempty"`
}

type Webhook struct {
	httpClient *http.Client
}

func NewWebhook() *Webhook {
	return &Webhook{
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send POSTs the payload to the webhook URL. A non-2xx response is returned
// as an error so callers can log it, but delivery is never retried.
func (w *Webhook) Send(ctx context.Context, url string, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	log.Printf("Webhook response: %d %s", resp.StatusCode, string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
