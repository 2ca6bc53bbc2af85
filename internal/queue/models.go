package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusIdentifying Status = "identifying"
	StatusAnalyzing   Status = "analyzing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusIdentifying,
	StatusAnalyzing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusIdentifying: {},
	StatusAnalyzing:   {},
}

// PageType distinguishes independent submissions from merged extra pages.
type PageType string

const (
	PagePrimary      PageType = "primary"
	PageContinuation PageType = "continuation"
)

// Confidence grades the identification service's certainty in a name match.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Identification records what the identification service saw on a page.
type Identification struct {
	MatchedViaCode     bool       `json:"matched_via_code"`
	RawHandwrittenName string     `json:"raw_handwritten_name,omitempty"`
	Confidence         Confidence `json:"confidence"`
	ParsedCode         string     `json:"parsed_code,omitempty"`
}

// Item represents a scanned submission persisted in SQLite.
type Item struct {
	ID                 int64      `json:"id"`
	ImageRef           string     `json:"image_ref"`
	Status             Status     `json:"status"`
	StudentID          string     `json:"student_id,omitempty"`
	StudentName        string     `json:"student_name,omitempty"`
	AutoAssigned       bool       `json:"auto_assigned,omitempty"`
	IdentificationJSON string     `json:"identification,omitempty"`
	PageType           PageType   `json:"page_type"`
	ContinuationOf     int64      `json:"continuation_of,omitempty"` // 0 when the item is a primary page
	PageRank           int64      `json:"page_rank,omitempty"`
	ResultJSON         string     `json:"result,omitempty"`
	ErrorMessage       string     `json:"error,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastHeartbeat      *time.Time `json:"last_heartbeat,omitempty"`
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight service call.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsPrimary reports whether the item is an independent submission.
func (i Item) IsPrimary() bool {
	return i.PageType != PageContinuation
}

// IsAssigned reports whether a student has been attached to the item.
func (i Item) IsAssigned() bool {
	return strings.TrimSpace(i.StudentID) != ""
}

// Identification decodes the stored identification record, if any.
func (i Item) Identification() *Identification {
	if strings.TrimSpace(i.IdentificationJSON) == "" {
		return nil
	}
	var ident Identification
	if err := json.Unmarshal([]byte(i.IdentificationJSON), &ident); err != nil {
		return nil
	}
	return &ident
}

// SetIdentification stores the identification record on the item.
func (i *Item) SetIdentification(ident Identification) error {
	data, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	i.IdentificationJSON = string(data)
	return nil
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.LastHeartbeat = nil
}

// SetCompleted attaches an analysis result and marks the item completed.
// Any previous result or error is overwritten.
func (i *Item) SetCompleted(resultJSON string) {
	i.Status = StatusCompleted
	i.ResultJSON = resultJSON
	i.ErrorMessage = ""
	i.LastHeartbeat = nil
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}
