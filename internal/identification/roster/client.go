// Package roster fetches the class roster used to resolve identified students.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gradescan/internal/services"
)

// Student is one roster entry. Code is the printed student code that may
// appear on scanned pages.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// Config holds roster endpoint settings.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client talks to the roster service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// New creates a roster client from the given settings.
func New(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Students fetches the full roster. Transient failures are retried with
// exponential backoff before the call is given up on.
func (c *Client) Students(ctx context.Context) ([]Student, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "roster", "fetch students",
			"roster base URL is not configured", nil)
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		students, retryable, err := c.fetch(ctx)
		if err == nil {
			return students, nil
		}
		lastErr = err
		if !retryable || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, services.Wrap(services.ErrUnavailable, "roster", "fetch students", "", lastErr)
}

func (c *Client) fetch(ctx context.Context) ([]Student, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/students", nil)
	if err != nil {
		return nil, false, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retryable := resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("roster returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var students []Student
	if err := json.NewDecoder(resp.Body).Decode(&students); err != nil {
		return nil, false, fmt.Errorf("decode roster response: %w", err)
	}
	return students, false, nil
}
