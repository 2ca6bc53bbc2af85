// Package vision wraps an OpenAI-compatible vision chat API for rubric
// grading of scanned student work. The client sends one or more page images
// per call and requires a strict JSON object response; parsing the payload
// into the analysis result model is the caller's concern.
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
)

const defaultTimeout = 120 * time.Second

// Config captures the runtime settings required to talk to the analysis API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client calls the vision chat completion API.
type Client struct {
	api   *openai.Client
	model string
}

// New constructs a vision client using the supplied configuration.
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

// Analyze submits the page images of one logical submission and returns the
// raw JSON grading payload. Multiple images are one submission graded as a
// single answer, not scored separately.
func (c *Client) Analyze(ctx context.Context, imageRefs []string) (json.RawMessage, error) {
	if len(imageRefs) == 0 {
		return nil, errors.New("analyze requires at least one image")
	}

	parts := make([]openai.ChatMessagePart, 0, len(imageRefs)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: userInstruction(len(imageRefs)),
	})
	for _, ref := range imageRefs {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    ref,
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("analysis API returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return nil, errors.New("analysis API returned empty content")
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("analysis API returned invalid JSON: %s", snippet(raw))
	}
	return json.RawMessage(raw), nil
}

func snippet(s string) string {
	const max = 160
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
