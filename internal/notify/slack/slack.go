// Package slack posts critical triage findings to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/radtriage/internal/triage"
)

const (
	maxCommentLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends triage results to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

var _ triage.Notifier = (*Notifier)(nil)

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Send posts a finding to the configured Slack webhook.
func (n *Notifier) Send(ctx context.Context, r *triage.Result) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(r, time.Now()))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "posted finding to slack", "image_name", r.ImageName)
	return nil
}

func buildMessage(r *triage.Result, now time.Time) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("%s finding: %s (%s)", band(r.SeverityRating), r.ImageName, formatRating(r.SeverityRating)),
		"blocks": []map[string]any{
			headerBlock(r),
			fieldsBlock(r),
			{"type": "divider"},
			commentBlock(r),
			contextBlock(r, now),
		},
	}
}

func headerBlock(r *triage.Result) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s finding: %s", bandEmoji(r.SeverityRating), band(r.SeverityRating), r.ImageName),
		},
	}
}

func fieldsBlock(r *triage.Result) map[string]any {
	return map[string]any{
		"type": "section",
		"fields": []map[string]any{
			{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", formatRating(r.SeverityRating))},
			{"type": "mrkdwn", "text": fmt.Sprintf("*Band:* %s", band(r.SeverityRating))},
		},
	}
}

func commentBlock(r *triage.Result) map[string]any {
	text := truncate(r.Comment, maxCommentLen)
	if text == "" {
		text = "_" + triage.DefaultComment + "_"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Findings*\n\n%s", text),
		},
	}
}

func contextBlock(r *triage.Result, now time.Time) map[string]any {
	ts := r.CreatedAt
	if ts.IsZero() {
		ts = now
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("radtriage • %s • %s", r.ImageName, ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

// band names the prompt's scoring band for rating.
func band(rating *float64) string {
	switch {
	case rating == nil:
		return "Unrated"
	case *rating >= 9:
		return "Critical"
	case *rating >= 7:
		return "Urgent"
	case *rating >= 4:
		return "Moderate"
	default:
		return "Low"
	}
}

func bandEmoji(rating *float64) string {
	switch band(rating) {
	case "Critical":
		return "\U0001f534" // red circle
	case "Urgent":
		return "\U0001f7e0" // orange circle
	case "Moderate":
		return "\U0001f7e1" // yellow circle
	case "Low":
		return "\U0001f7e2" // green circle
	default:
		return "⚪" // white circle
	}
}

func formatRating(rating *float64) string {
	if rating == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *rating)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
