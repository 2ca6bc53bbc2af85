package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gradescan/internal/queue"
	"gradescan/internal/stage"
	"gradescan/internal/testsupport"
	"gradescan/internal/workflow"
)

type scriptedHandler struct {
	name    string
	execute func(ctx context.Context, item *queue.Item) error
	seen    []int64
}

func (s *scriptedHandler) Prepare(context.Context, *queue.Item) error { return nil }

func (s *scriptedHandler) Execute(ctx context.Context, item *queue.Item) error {
	s.seen = append(s.seen, item.ID)
	if s.execute == nil {
		return nil
	}
	return s.execute(ctx, item)
}

func (s *scriptedHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func completingHandler() *scriptedHandler {
	return &scriptedHandler{
		name: "analyzer",
		execute: func(_ context.Context, item *queue.Item) error {
			item.SetCompleted(`{"total_score":{"earned":8,"possible":10,"percentage":80}}`)
			return nil
		},
	}
}

func seed(t *testing.T, store *queue.Store, n int) []*queue.Item {
	t.Helper()
	items := make([]*queue.Item, 0, n)
	for i := 0; i < n; i++ {
		item, err := store.NewScan(context.Background(), fmt.Sprintf("scans/page-%03d.png", i+1))
		if err != nil {
			t.Fatalf("NewScan failed: %v", err)
		}
		items = append(items, item)
	}
	return items
}

func TestRunAnalysisIsolatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	items := seed(t, store, 5)
	failID := items[2].ID
	analyzer := &scriptedHandler{
		name: "analyzer",
		execute: func(_ context.Context, item *queue.Item) error {
			if item.ID == failID {
				return errors.New("forced failure")
			}
			item.SetCompleted(`{"total_score":{"earned":8,"possible":10,"percentage":80}}`)
			return nil
		},
	}
	manager := workflow.NewManagerWithHandlers(cfg, store, testsupport.NewLogger(t),
		&scriptedHandler{name: "identifier"}, analyzer)

	report, err := manager.RunAnalysis(context.Background())
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	if report.Processed != 5 || report.Completed != 4 || report.Failed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}
	if len(report.FailedIDs) != 1 || report.FailedIDs[0] != failID {
		t.Fatalf("unexpected failed ids: %v", report.FailedIDs)
	}

	ctx := context.Background()
	for _, seeded := range items {
		got, err := store.GetByID(ctx, seeded.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if seeded.ID == failID {
			if got.Status != queue.StatusFailed || got.ErrorMessage == "" {
				t.Fatalf("expected failed item with error, got %#v", got)
			}
			continue
		}
		if got.Status != queue.StatusCompleted {
			t.Fatalf("item %d: expected completed, got %s", got.ID, got.Status)
		}
	}
}

func TestRunAnalysisProcessesInQueueOrderAndSkipsContinuations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	items := seed(t, store, 3)
	if err := store.Link(context.Background(), items[1].ID, items[0].ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	analyzer := completingHandler()
	manager := workflow.NewManagerWithHandlers(cfg, store, testsupport.NewLogger(t),
		&scriptedHandler{name: "identifier"}, analyzer)

	report, err := manager.RunAnalysis(context.Background())
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}
	if report.Processed != 2 {
		t.Fatalf("expected 2 processed (continuation skipped), got %d", report.Processed)
	}
	want := []int64{items[0].ID, items[2].ID}
	if len(analyzer.seen) != 2 || analyzer.seen[0] != want[0] || analyzer.seen[1] != want[1] {
		t.Fatalf("processing order = %v, want %v", analyzer.seen, want)
	}
}

func TestRequeuedCompletedItemIsReanalyzed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	items := seed(t, store, 1)
	grade := 60.0
	analyzer := &scriptedHandler{
		name: "analyzer",
		execute: func(_ context.Context, item *queue.Item) error {
			item.SetCompleted(fmt.Sprintf(`{"total_score":{"earned":%g,"possible":100,"percentage":%g}}`, grade, grade))
			return nil
		},
	}
	manager := workflow.NewManagerWithHandlers(cfg, store, testsupport.NewLogger(t),
		&scriptedHandler{name: "identifier"}, analyzer)

	ctx := context.Background()
	if _, err := manager.RunAnalysis(ctx); err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	// A second pass ignores the completed item until it is requeued.
	report, err := manager.RunAnalysis(ctx)
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}
	if report.Processed != 0 {
		t.Fatalf("completed item must not be re-processed implicitly, got %#v", report)
	}

	count, err := store.RequeueCompleted(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("RequeueCompleted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one requeued item, got %d", count)
	}

	grade = 85
	report, err = manager.RunAnalysis(ctx)
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}
	if report.Processed != 1 || report.Completed != 1 {
		t.Fatalf("unexpected report for re-run: %#v", report)
	}

	got, err := store.GetByID(ctx, items[0].ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("expected completed status, got %s", got.Status)
	}
	if !strings.Contains(got.ResultJSON, `"percentage":85`) {
		t.Fatalf("prior result not overwritten: %s", got.ResultJSON)
	}
}

func TestRunIdentificationReturnsItemsToPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	items := seed(t, store, 2)
	identifier := &scriptedHandler{
		name: "identifier",
		execute: func(ctx context.Context, item *queue.Item) error {
			if item.ID != items[0].ID {
				return nil
			}
			if err := store.AssignStudent(ctx, item.ID, queue.Assignment{
				StudentID: "s-1", StudentName: "Avery Kim", Auto: true,
			}); err != nil {
				return err
			}
			item.StudentID = "s-1"
			item.StudentName = "Avery Kim"
			item.AutoAssigned = true
			return nil
		},
	}
	manager := workflow.NewManagerWithHandlers(cfg, store, testsupport.NewLogger(t),
		identifier, completingHandler())

	report, err := manager.RunIdentification(context.Background())
	if err != nil {
		t.Fatalf("RunIdentification failed: %v", err)
	}
	if report.Processed != 2 || report.Assigned != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %#v", report)
	}

	ctx := context.Background()
	for _, seeded := range items {
		got, err := store.GetByID(ctx, seeded.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.Status != queue.StatusPending {
			t.Fatalf("identification must leave items pending, got %s", got.Status)
		}
	}

	assigned, _ := store.GetByID(ctx, items[0].ID)
	if assigned.StudentID != "s-1" || !assigned.AutoAssigned {
		t.Fatalf("expected persisted assignment, got %#v", assigned)
	}
}

func TestRunIdentificationSkipsAssignedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	items := seed(t, store, 2)
	if err := store.AssignStudent(context.Background(), items[0].ID, queue.Assignment{
		StudentID: "s-9", StudentName: "Manually Assigned",
	}); err != nil {
		t.Fatalf("AssignStudent failed: %v", err)
	}

	identifier := &scriptedHandler{name: "identifier"}
	manager := workflow.NewManagerWithHandlers(cfg, store, testsupport.NewLogger(t),
		identifier, completingHandler())

	report, err := manager.RunIdentification(context.Background())
	if err != nil {
		t.Fatalf("RunIdentification failed: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("expected assigned item skipped, processed %d", report.Processed)
	}
	if len(identifier.seen) != 1 || identifier.seen[0] != items[1].ID {
		t.Fatalf("unexpected items seen: %v", identifier.seen)
	}
}

func TestRunIdentificationFailureLeavesItemCleanAndContinues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	items := seed(t, store, 2)
	identifier := &scriptedHandler{
		name: "identifier",
		execute: func(_ context.Context, item *queue.Item) error {
			if item.ID == items[0].ID {
				item.IdentificationJSON = `{"confidence":"low"}`
				return errors.New("vision service down")
			}
			return nil
		},
	}
	manager := workflow.NewManagerWithHandlers(cfg, store, testsupport.NewLogger(t),
		identifier, completingHandler())

	report, err := manager.RunIdentification(context.Background())
	if err != nil {
		t.Fatalf("RunIdentification failed: %v", err)
	}
	if report.Processed != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report: %#v", report)
	}

	got, _ := store.GetByID(context.Background(), items[0].ID)
	if got.Status != queue.StatusPending || got.IdentificationJSON != "" {
		t.Fatalf("failed identification must leave a clean pending item, got %#v", got)
	}
}

func TestRunStopsAtItemBoundaryOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	seed(t, store, 3)
	ctx, cancel := context.WithCancel(context.Background())
	analyzer := &scriptedHandler{
		name: "analyzer",
		execute: func(_ context.Context, item *queue.Item) error {
			// Cancel mid-pass; the current item still finishes.
			cancel()
			item.SetCompleted(`{"total_score":{"earned":8,"possible":10,"percentage":80}}`)
			return nil
		},
	}
	manager := workflow.NewManagerWithHandlers(cfg, store, testsupport.NewLogger(t),
		&scriptedHandler{name: "identifier"}, analyzer)

	report, err := manager.RunAnalysis(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Processed != 1 || report.Completed != 1 {
		t.Fatalf("expected exactly one item processed before stop, got %#v", report)
	}
}
