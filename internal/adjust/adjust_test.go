package adjust_test

import (
	"context"
	"errors"
	"testing"

	"gradescan/internal/adjust"
	"gradescan/internal/gradebook"
	"gradescan/internal/logging"
	"gradescan/internal/report"
)

func band() []report.StudentResult {
	return []report.StudentResult{
		{StudentID: "s-1", StudentName: "Avery Kim", EffectiveGrade: 55},
		{StudentID: "s-2", StudentName: "Jordan Bell", EffectiveGrade: 72},
		{StudentID: "s-3", StudentName: "Sam Osei", EffectiveGrade: 95},
	}
}

func TestPreviewAppliesDeltaWithClamp(t *testing.T) {
	plan := adjust.Plan{
		CriterionIDs:  []string{"retake"},
		Justification: "completed the retake during study hall",
	}
	if got := plan.TotalDelta(); got != 10 {
		t.Fatalf("TotalDelta = %v, want 10", got)
	}

	entries, err := adjust.Preview(plan, band())
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}

	want := []float64{65, 82, 100}
	for i, entry := range entries {
		if entry.NewGrade != want[i] {
			t.Fatalf("entry %d = %v, want %v", i, entry.NewGrade, want[i])
		}
	}
}

func TestPreviewRequiresJustification(t *testing.T) {
	plan := adjust.Plan{ManualDelta: 5, Justification: "   "}
	if _, err := adjust.Preview(plan, band()); err == nil {
		t.Fatal("expected error for missing justification")
	}
}

func TestPlanValidateBoundsManualDelta(t *testing.T) {
	plan := adjust.Plan{ManualDelta: 21, Justification: "too generous"}
	if err := plan.Validate(); err == nil {
		t.Fatal("expected error for out-of-range manual delta")
	}
	plan.ManualDelta = -21
	if err := plan.Validate(); err == nil {
		t.Fatal("expected error for out-of-range negative delta")
	}
	plan.ManualDelta = -20
	if err := plan.Validate(); err != nil {
		t.Fatalf("delta at the bound should validate: %v", err)
	}
}

func TestPlanValidateRejectsUnknownCriterion(t *testing.T) {
	plan := adjust.Plan{CriterionIDs: []string{"extra-credit"}, Justification: "n/a"}
	if err := plan.Validate(); err == nil {
		t.Fatal("expected error for unknown criterion")
	}
}

func TestTotalDeltaCombinesCriteriaAndManual(t *testing.T) {
	plan := adjust.Plan{
		CriterionIDs:  []string{"retake", "corrections", "incomplete"},
		ManualDelta:   -3,
		Justification: "mixed adjustments",
	}
	// 10 + 5 - 5 - 3
	if got := plan.TotalDelta(); got != 7 {
		t.Fatalf("TotalDelta = %v, want 7", got)
	}
}

type recordingService struct {
	saved  []gradebook.SaveRequest
	failOn map[string]error
}

func (r *recordingService) SaveGrade(_ context.Context, req gradebook.SaveRequest) error {
	if err := r.failOn[req.StudentID]; err != nil {
		return err
	}
	r.saved = append(r.saved, req)
	return nil
}

func TestCommitAccumulatesFailures(t *testing.T) {
	entries := []adjust.Entry{
		{StudentID: "s-1", NewGrade: 65},
		{StudentID: "s-2", NewGrade: 82},
		{StudentID: "s-3", NewGrade: 100},
	}
	svc := &recordingService{
		failOn: map[string]error{"s-2": errors.New("gradebook rejected the write")},
	}

	result := adjust.Commit(context.Background(), svc, entries, "retake credit", logging.NewNop())

	if result.Saved != 2 {
		t.Fatalf("Saved = %d, want 2", result.Saved)
	}
	if len(result.Failures) != 1 || result.Failures[0].StudentID != "s-2" {
		t.Fatalf("unexpected failures: %#v", result.Failures)
	}
	if !result.Failed() {
		t.Fatal("expected Failed() to report the partial failure")
	}
	// The failure must not abort the remaining students.
	if len(svc.saved) != 2 || svc.saved[1].StudentID != "s-3" {
		t.Fatalf("unexpected saves: %#v", svc.saved)
	}
	for _, req := range svc.saved {
		if req.Justification != "retake credit" {
			t.Fatalf("justification not carried: %#v", req)
		}
	}
}
