package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RubricScore is one graded criterion within a submission.
type RubricScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	Feedback  string  `json:"feedback,omitempty"`
}

// TotalScore sums the rubric into earned/possible points.
type TotalScore struct {
	Earned     float64 `json:"earned"`
	Possible   float64 `json:"possible"`
	Percentage float64 `json:"percentage"`
}

// Result is the analysis service's output for one submission. It is treated
// as read-only input to grade resolution once attached to a queue item.
type Result struct {
	OCRText                   string        `json:"ocr_text,omitempty"`
	ProblemIdentified         string        `json:"problem_identified,omitempty"`
	ApproachAnalysis          string        `json:"approach_analysis,omitempty"`
	RubricScores              []RubricScore `json:"rubric_scores,omitempty"`
	Misconceptions            []string      `json:"misconceptions,omitempty"`
	TotalScore                TotalScore    `json:"total_score"`
	Grade                     *float64      `json:"grade,omitempty"`
	GradeJustification        string        `json:"grade_justification,omitempty"`
	Feedback                  string        `json:"feedback,omitempty"`
	NYSStandard               string        `json:"nys_standard,omitempty"`
	RegentsScore              *int          `json:"regents_score,omitempty"`
	RegentsScoreJustification string        `json:"regents_score_justification,omitempty"`
}

// ParseResult decodes a stored analysis result. Empty input yields nil
// without error so callers can treat an unanalyzed item uniformly.
func ParseResult(raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("parse analysis result: %w", err)
	}
	return &result, nil
}

// Encode serializes the result for queue storage.
func (r *Result) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode analysis result: %w", err)
	}
	return string(data), nil
}
