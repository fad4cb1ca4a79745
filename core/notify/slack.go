package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Poster delivers a formatted message to the chat service.
type Poster interface {
	Post(ctx context.Context, header string, lines []string) error
}

// WebhookPoster posts block-formatted messages to an incoming webhook URL.
type WebhookPoster struct {
	cfg  Config
	http *http.Client
}

// NewWebhookPoster creates a Poster from the configuration.
func NewWebhookPoster(cfg Config) *WebhookPoster {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	return &WebhookPoster{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

// Post sends one message. A blank webhook URL disables delivery silently so
// local environments run without a chat integration.
func (p *WebhookPoster) Post(ctx context.Context, header string, lines []string) error {
	if p.cfg.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"blocks": BuildBlocks(header, lines),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// BuildBlocks assembles the block payload for one message: a header block,
// a divider, one section per line, and a UTC timestamp context footer.
func BuildBlocks(header string, lines []string) []map[string]any {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": header},
		},
		{"type": "divider"},
	}

	if len(lines) > 0 {
		text := "• " + strings.Join(lines, "\n• ")
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": text},
		})
	}

	blocks = append(blocks, map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": "*UTC Time:* " + time.Now().UTC().Format("02.01.2006 15:04"),
			},
		},
	})

	return blocks
}
