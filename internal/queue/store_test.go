package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"gradescan/internal/queue"
	"gradescan/internal/testsupport"
)

func TestOpenCreatesSchemaAndInsertsItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewScan(ctx, "scans/page-001.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}
	if item.PageType != queue.PagePrimary {
		t.Fatalf("expected primary page type, got %s", item.PageType)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.ImageRef != "scans/page-001.png" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}
}

func TestNewScanRequiresImageRef(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for _, ref := range []string{"", "   ", "\t\n"} {
		if _, err := store.NewScan(ctx, ref); !errors.Is(err, queue.ErrInvalidOperation) {
			t.Fatalf("NewScan(%q): expected ErrInvalidOperation, got %v", ref, err)
		}
	}

	// Surrounding whitespace is trimmed, not stored.
	item, err := store.NewScan(ctx, "  scans/padded.png  ")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	if item.ImageRef != "scans/padded.png" {
		t.Fatalf("expected trimmed image ref, got %q", item.ImageRef)
	}
}

func TestAssignStudentEnforcesOnePrimaryPerStudent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := store.NewScan(ctx, "scans/a.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	second, err := store.NewScan(ctx, "scans/b.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}

	assignment := queue.Assignment{StudentID: "s-100", StudentName: "Dana Ruiz", Auto: true}
	if err := store.AssignStudent(ctx, first.ID, assignment); err != nil {
		t.Fatalf("first assignment failed: %v", err)
	}

	err = store.AssignStudent(ctx, second.ID, queue.Assignment{StudentID: "s-100", StudentName: "Dana Ruiz"})
	if !errors.Is(err, queue.ErrDuplicateAssignment) {
		t.Fatalf("expected ErrDuplicateAssignment, got %v", err)
	}

	// A duplicate failure must leave the second item untouched.
	fetched, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.StudentID != "" {
		t.Fatalf("expected second item unassigned, got %q", fetched.StudentID)
	}

	// Re-assigning the same student to the holder is a no-op, not a conflict.
	if err := store.AssignStudent(ctx, first.ID, assignment); err != nil {
		t.Fatalf("re-assignment to holder failed: %v", err)
	}
}

func TestAssignStudentClearsOnEmptyID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewScan(ctx, "scans/a.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	if err := store.AssignStudent(ctx, item.ID, queue.Assignment{StudentID: "s-1", StudentName: "Ang Chen", Auto: true}); err != nil {
		t.Fatalf("assignment failed: %v", err)
	}
	if err := store.AssignStudent(ctx, item.ID, queue.Assignment{}); err != nil {
		t.Fatalf("clearing assignment failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.StudentID != "" || fetched.AutoAssigned {
		t.Fatalf("expected cleared assignment, got %#v", fetched)
	}
}

func TestLinkAndUnlinkRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary, err := store.NewScan(ctx, "scans/primary.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	child, err := store.NewScan(ctx, "scans/child.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}

	if err := store.Link(ctx, child.ID, primary.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	linked, err := store.GetByID(ctx, child.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if linked.PageType != queue.PageContinuation || linked.ContinuationOf != primary.ID {
		t.Fatalf("unexpected linked state: %#v", linked)
	}

	pages, err := store.ContinuationPages(ctx, primary.ID)
	if err != nil {
		t.Fatalf("ContinuationPages failed: %v", err)
	}
	if len(pages) != 1 || pages[0].ID != child.ID {
		t.Fatalf("expected one continuation page, got %#v", pages)
	}

	if err := store.Unlink(ctx, child.ID); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}

	restored, err := store.GetByID(ctx, child.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if restored.PageType != queue.PagePrimary || restored.ContinuationOf != 0 || restored.Status != queue.StatusPending {
		t.Fatalf("expected restored primary pending item, got %#v", restored)
	}

	pages, err = store.ContinuationPages(ctx, primary.ID)
	if err != nil {
		t.Fatalf("ContinuationPages failed: %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("expected no residual continuation reference, got %#v", pages)
	}
}

func TestLinkDiscardsChildResultAndAssignment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary, err := store.NewScan(ctx, "scans/primary.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	child, err := store.NewScan(ctx, "scans/child.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}

	child.SetCompleted(`{"total_score":{"earned":5,"possible":10,"percentage":50}}`)
	if err := store.Update(ctx, child); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := store.AssignStudent(ctx, child.ID, queue.Assignment{StudentID: "s-2", StudentName: "Noor Haddad"}); err != nil {
		t.Fatalf("assignment failed: %v", err)
	}

	if err := store.Link(ctx, child.ID, primary.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	linked, err := store.GetByID(ctx, child.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if linked.ResultJSON != "" || linked.StudentID != "" || linked.Status != queue.StatusPending {
		t.Fatalf("expected result and assignment discarded on link, got %#v", linked)
	}
}

func TestLinkRejectsInvalidTopology(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a, _ := store.NewScan(ctx, "scans/a.png")
	b, _ := store.NewScan(ctx, "scans/b.png")
	c, _ := store.NewScan(ctx, "scans/c.png")

	if err := store.Link(ctx, a.ID, a.ID); !errors.Is(err, queue.ErrInvalidLink) {
		t.Fatalf("self-link: expected ErrInvalidLink, got %v", err)
	}

	if err := store.Link(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	// b is now a continuation; it cannot serve as a parent.
	if err := store.Link(ctx, c.ID, b.ID); !errors.Is(err, queue.ErrInvalidLink) {
		t.Fatalf("chained link: expected ErrInvalidLink, got %v", err)
	}
	// b is already linked to a different primary.
	if err := store.Link(ctx, b.ID, c.ID); !errors.Is(err, queue.ErrInvalidLink) {
		t.Fatalf("relink elsewhere: expected ErrInvalidLink, got %v", err)
	}
	// a has children of its own; it cannot become a continuation.
	if err := store.Link(ctx, a.ID, c.ID); !errors.Is(err, queue.ErrInvalidLink) {
		t.Fatalf("parent as child: expected ErrInvalidLink, got %v", err)
	}

	if err := store.Unlink(ctx, c.ID); !errors.Is(err, queue.ErrNotLinked) {
		t.Fatalf("unlink of primary: expected ErrNotLinked, got %v", err)
	}
}

func TestRemoveRejectsPrimaryWithContinuations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	primary, _ := store.NewScan(ctx, "scans/primary.png")
	child, _ := store.NewScan(ctx, "scans/child.png")
	if err := store.Link(ctx, child.ID, primary.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	if err := store.Remove(ctx, primary.ID); !errors.Is(err, queue.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}

	if err := store.Unlink(ctx, child.ID); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}
	if err := store.Remove(ctx, primary.ID); err != nil {
		t.Fatalf("Remove after unlink failed: %v", err)
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale, _ := store.NewScan(ctx, "scans/stale.png")
	fresh, _ := store.NewScan(ctx, "scans/fresh.png")

	old := time.Now().UTC().Add(-time.Hour)
	stale.Status = queue.StatusAnalyzing
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	now := time.Now().UTC()
	fresh.Status = queue.StatusIdentifying
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reclaimed, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected one reclaimed item, got %d", reclaimed)
	}

	got, _ := store.GetByID(ctx, stale.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("expected stale item back to pending, got %s", got.Status)
	}
	got, _ = store.GetByID(ctx, fresh.ID)
	if got.Status != queue.StatusIdentifying {
		t.Fatalf("expected fresh item untouched, got %s", got.Status)
	}
}

func TestRequeueCompletedKeepsPriorResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done, _ := store.NewScan(ctx, "scans/done.png")
	done.SetCompleted(`{"total_score":{"earned":8,"possible":10,"percentage":80}}`)
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	pending, _ := store.NewScan(ctx, "scans/pending.png")

	count, err := store.RequeueCompleted(ctx, done.ID)
	if err != nil {
		t.Fatalf("RequeueCompleted failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one requeued item, got %d", count)
	}

	got, _ := store.GetByID(ctx, done.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", got.Status)
	}
	if got.ResultJSON == "" {
		t.Fatal("prior result must survive until the re-run overwrites it")
	}

	// Non-completed items are never touched, even when named explicitly.
	count, err = store.RequeueCompleted(ctx, pending.ID)
	if err != nil {
		t.Fatalf("RequeueCompleted failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero requeued items, got %d", count)
	}
}

func TestRetryFailedResetsErrorState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, _ := store.NewScan(ctx, "scans/a.png")
	item.SetFailed("analysis service unavailable")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reset item, got %d", count)
	}

	got, _ := store.GetByID(ctx, item.ID)
	if got.Status != queue.StatusPending || got.ErrorMessage != "" {
		t.Fatalf("expected clean pending item, got %#v", got)
	}
}
