package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/guberm/wealthsimple-trading-bot/pkg/httputil"
)

// DiscordSender delivers notifications through a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *httputil.Client
}

// NewDiscordSender creates a sender for the given webhook URL.
func NewDiscordSender(webhookURL string, client *httputil.Client) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: client}
}

// Send posts the message to the webhook. The title is rendered bold with
// Discord markdown. Discord answers 204 No Content on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", title, message),
	}

	resp, err := d.client.PostJSON(ctx, d.webhookURL, payload)
	if err != nil {
		return fmt.Errorf("failed to post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
