package gradebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gradescan/internal/services"
)

const defaultTimeout = 30 * time.Second

// client is the HTTP implementation for both sink interfaces.
type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newClient(baseURL, apiKey string, timeoutSeconds int) *client {
	timeout := defaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) SaveGrade(ctx context.Context, req SaveRequest) error {
	if strings.TrimSpace(req.StudentID) == "" {
		return services.Wrap(services.ErrValidation, "gradebook", "save grade",
			"student id is required", nil)
	}
	return c.post(ctx, "/grades", req, "save grade")
}

type pushRequest struct {
	StudentID   string `json:"student_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	RewardTier  string `json:"reward_tier,omitempty"`
}

func (c *client) Push(ctx context.Context, studentID, title, description, rewardTier string) error {
	if strings.TrimSpace(studentID) == "" {
		return services.Wrap(services.ErrValidation, "gradebook", "push remediation",
			"student id is required", nil)
	}
	return c.post(ctx, "/assignments", pushRequest{
		StudentID:   studentID,
		Title:       title,
		Description: description,
		RewardTier:  rewardTier,
	}, "push remediation")
}

func (c *client) post(ctx context.Context, path string, payload any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, "gradebook", operation, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrValidation, "gradebook", operation, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "gradebook", operation, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return services.Wrap(services.ErrUnavailable, "gradebook", operation,
			fmt.Sprintf("service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}
	return nil
}
