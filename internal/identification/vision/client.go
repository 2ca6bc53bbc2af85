// Package vision wraps an OpenAI-compatible vision chat API for reading the
// student name and printed code off a scanned page. It only extracts what is
// visible; resolving the observation against the roster happens upstream.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"gradescan/internal/queue"
)

const defaultTimeout = 60 * time.Second

const systemPrompt = `You read the header area of a scanned page of student work.
Look for a handwritten student name and a printed student code (a short
alphanumeric label, often near a barcode or in a corner box).

Respond with a single JSON object and nothing else:
{
  "raw_handwritten_name": "name exactly as written, or empty string",
  "parsed_code": "the printed code, or empty string",
  "confidence": "low" | "medium" | "high"
}

Confidence reflects how certain you are that the name reading is correct.
Use "low" when the handwriting is ambiguous or partially cropped. Never
guess a code; report it only when clearly legible.`

// Config captures the settings required to talk to the identification API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client calls the vision chat completion API to read page headers.
type Client struct {
	api   *openai.Client
	model string
}

// New constructs an identification client using the supplied configuration.
func New(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientConfig.BaseURL = base
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:   openai.NewClientWithConfig(clientConfig),
		model: strings.TrimSpace(cfg.Model),
	}
}

// Identify reads the name and code off one page image.
func (c *Client) Identify(ctx context.Context, imageRef string) (queue.Identification, error) {
	var ident queue.Identification

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Read the student name and code from this page.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageRef,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return ident, fmt.Errorf("identification API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ident, errors.New("identification API returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return ident, errors.New("identification API returned empty content")
	}
	if err := json.Unmarshal([]byte(raw), &ident); err != nil {
		return ident, fmt.Errorf("decode identification response: %w", err)
	}
	switch ident.Confidence {
	case queue.ConfidenceLow, queue.ConfidenceMedium, queue.ConfidenceHigh:
	default:
		ident.Confidence = queue.ConfidenceLow
	}
	return ident, nil
}
