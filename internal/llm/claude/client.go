// Package claude classifies images with the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/radtriage/internal/triage"
)

const defaultMaxTokens = 1024

// Client implements triage.Classifier using the Anthropic SDK.
type Client struct {
	client anthropic.Client
	model  string
}

var _ triage.Classifier = (*Client)(nil)

// New creates a Claude classifier. The SDK's automatic retries are disabled so
// each image gets exactly one attempt. Extra options are appended after the
// defaults.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &Client{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// Classify sends one image with its prompt and returns the reply text.
func (c *Client) Classify(ctx context.Context, req *triage.ClassifyRequest) (string, error) {
	msg, err := c.client.Messages.New(ctx, buildParams(c.model, req))
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}
	text := textOf(msg)
	if text == "" {
		return "", errors.New("claude: response has no text content")
	}
	return text, nil
}

func buildParams(model string, req *triage.ClassifyRequest) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(req.MIMEType, req.ImageBase64),
				anthropic.NewTextBlock(req.Prompt),
			),
		},
	}
}

// textOf joins all text blocks of msg.
func textOf(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
