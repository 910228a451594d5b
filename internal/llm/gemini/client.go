// Package gemini classifies images with Google's Gemini models.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/linnemanlabs/radtriage/internal/triage"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-1.5-flash"

// Client implements triage.Classifier on top of a shared genai client.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

var _ triage.Classifier = (*Client)(nil)

// New dials the Gemini API. Close the client on shutdown.
func New(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Client{client: cl, model: cl.GenerativeModel(model)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Classify sends the prompt and the image in one request and returns the first
// text part of the reply.
func (c *Client) Classify(ctx context.Context, req *triage.ClassifyRequest) (string, error) {
	parts, err := buildParts(req)
	if err != nil {
		return "", err
	}
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := candidateText(resp)
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func buildParts(req *triage.ClassifyRequest) ([]genai.Part, error) {
	img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("gemini: bad base64 image: %w", err)
	}
	return []genai.Part{
		genai.Text(req.Prompt),
		genai.Blob{MIMEType: req.MIMEType, Data: img},
	}, nil
}

// candidateText joins every text part of the first candidate that has any.
// Gemini may split one reply across parts, and the severity sentence comes last.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if strings.TrimSpace(b.String()) != "" {
			return b.String()
		}
	}
	return ""
}
