package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gradescan/internal/analysis"
	"gradescan/internal/queue"
	"gradescan/internal/testsupport"
)

type stubService struct {
	calls    [][]string
	response json.RawMessage
	err      error
}

func (s *stubService) Analyze(_ context.Context, imageRefs []string) (json.RawMessage, error) {
	s.calls = append(s.calls, imageRefs)
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

const sampleResult = `{
	"ocr_text": "worked solution across both pages",
	"rubric_scores": [{"criterion": "setup", "score": 2, "max_score": 2}],
	"total_score": {"earned": 8, "possible": 10, "percentage": 80},
	"misconceptions": ["sign error"]
}`

func TestExecuteMergesContinuationPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := &stubService{response: json.RawMessage(sampleResult)}
	analyzer := analysis.NewAnalyzerWithService(cfg, store, testsupport.NewLogger(t), svc)

	ctx := context.Background()
	primary, err := store.NewScan(ctx, "scans/page-1.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	second, _ := store.NewScan(ctx, "scans/page-2.png")
	third, _ := store.NewScan(ctx, "scans/page-3.png")
	if err := store.Link(ctx, second.ID, primary.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if err := store.Link(ctx, third.ID, primary.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	if err := analyzer.Execute(ctx, primary); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(svc.calls) != 1 {
		t.Fatalf("expected one service call, got %d", len(svc.calls))
	}
	want := []string{"scans/page-1.png", "scans/page-2.png", "scans/page-3.png"}
	got := svc.calls[0]
	if len(got) != len(want) {
		t.Fatalf("call images = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("image %d = %q, want %q (link order must hold)", i, got[i], want[i])
		}
	}

	if primary.Status != queue.StatusCompleted {
		t.Fatalf("expected completed status, got %s", primary.Status)
	}
	result, err := analysis.ParseResult(primary.ResultJSON)
	if err != nil || result == nil {
		t.Fatalf("stored result did not parse: %v", err)
	}
	if result.TotalScore.Percentage != 80 {
		t.Fatalf("unexpected stored result: %#v", result)
	}
}

func TestExecuteRejectsContinuationItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	analyzer := analysis.NewAnalyzerWithService(cfg, store, testsupport.NewLogger(t), &stubService{})

	ctx := context.Background()
	primary, _ := store.NewScan(ctx, "scans/primary.png")
	child, _ := store.NewScan(ctx, "scans/child.png")
	if err := store.Link(ctx, child.ID, primary.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	linked, _ := store.GetByID(ctx, child.ID)

	if err := analyzer.Execute(ctx, linked); err == nil {
		t.Fatal("expected error when executing a continuation item")
	}
}

func TestExecuteServiceFailureSurfaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := &stubService{err: errors.New("model timeout")}
	analyzer := analysis.NewAnalyzerWithService(cfg, store, testsupport.NewLogger(t), svc)

	ctx := context.Background()
	item, _ := store.NewScan(ctx, "scans/a.png")
	if err := analyzer.Execute(ctx, item); err == nil {
		t.Fatal("expected service error to surface")
	}
	if item.Status == queue.StatusCompleted {
		t.Fatal("failed analysis must not complete the item")
	}
}

func TestExecuteOverwritesPriorResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := &stubService{response: json.RawMessage(sampleResult)}
	analyzer := analysis.NewAnalyzerWithService(cfg, store, testsupport.NewLogger(t), svc)

	ctx := context.Background()
	item, _ := store.NewScan(ctx, "scans/a.png")
	item.SetFailed("previous run failed")

	if err := analyzer.Execute(ctx, item); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if item.Status != queue.StatusCompleted || item.ErrorMessage != "" {
		t.Fatalf("expected prior failure overwritten, got %#v", item)
	}
}

func TestParseResult(t *testing.T) {
	result, err := analysis.ParseResult(sampleResult)
	if err != nil {
		t.Fatalf("ParseResult failed: %v", err)
	}
	if result.TotalScore.Earned != 8 || len(result.RubricScores) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}

	empty, err := analysis.ParseResult("  ")
	if err != nil || empty != nil {
		t.Fatalf("expected nil result for empty input, got %#v, %v", empty, err)
	}

	if _, err := analysis.ParseResult("{not json"); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
