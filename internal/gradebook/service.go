// Package gradebook posts finalized grades and remediation assignments to
// their external sinks. Both services are optional; when unconfigured a
// no-op implementation is used so the pipeline keeps working locally.
package gradebook

import (
	"context"

	"gradescan/internal/analysis"
	"gradescan/internal/config"
)

// SaveRequest carries one student's finalized grade.
type SaveRequest struct {
	StudentID     string                 `json:"student_id"`
	Grade         float64                `json:"grade"`
	Justification string                 `json:"justification,omitempty"`
	RawScores     []analysis.RubricScore `json:"raw_scores,omitempty"`
	StandardCode  string                 `json:"standard_code,omitempty"`
}

// Service persists grades. Calls are idempotent from the caller's side only;
// the server may record duplicate history rows on retry, which is acceptable.
type Service interface {
	SaveGrade(ctx context.Context, req SaveRequest) error
}

// PushService assigns remediation work to a student.
type PushService interface {
	Push(ctx context.Context, studentID, title, description, rewardTier string) error
}

// NewService returns the configured gradebook sink, or a no-op when no URL
// is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil || cfg.Gradebook.URL == "" {
		return noopService{}
	}
	return newClient(cfg.Gradebook.URL, cfg.Gradebook.APIKey, cfg.Gradebook.TimeoutSeconds)
}

// NewPushService returns the configured remediation sink, or a no-op when no
// URL is set.
func NewPushService(cfg *config.Config) PushService {
	if cfg == nil || cfg.Remediation.URL == "" {
		return noopService{}
	}
	return newClient(cfg.Remediation.URL, cfg.Remediation.APIKey, cfg.Remediation.TimeoutSeconds)
}

type noopService struct{}

func (noopService) SaveGrade(context.Context, SaveRequest) error { return nil }

func (noopService) Push(context.Context, string, string, string, string) error { return nil }
