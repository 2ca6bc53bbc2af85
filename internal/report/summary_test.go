package report_test

import (
	"context"
	"testing"

	"gradescan/internal/grading"
	"gradescan/internal/queue"
	"gradescan/internal/report"
	"gradescan/internal/testsupport"
)

func completeItem(t *testing.T, store *queue.Store, imageRef, studentID, resultJSON string) *queue.Item {
	t.Helper()
	ctx := context.Background()
	item, err := store.NewScan(ctx, imageRef)
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	if studentID != "" {
		if err := store.AssignStudent(ctx, item.ID, queue.Assignment{StudentID: studentID, StudentName: "Student " + studentID}); err != nil {
			t.Fatalf("AssignStudent failed: %v", err)
		}
		item.StudentID = studentID
		item.StudentName = "Student " + studentID
	}
	item.SetCompleted(resultJSON)
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	return item
}

func TestSummaryUsesEffectiveGrades(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := report.NewBuilder(store, grading.DefaultFloors())

	completeItem(t, store, "scans/a.png", "s-1",
		`{"grade":95,"total_score":{"earned":9,"possible":10,"percentage":90},"misconceptions":["sign error","sign error"]}`)
	completeItem(t, store, "scans/b.png", "s-2",
		`{"grade":40,"total_score":{"earned":7,"possible":10,"percentage":70},"misconceptions":["sign error","dropped units"]}`)
	// Unscoreable work resolves to the 65 fallback, not the raw percentage.
	completeItem(t, store, "scans/c.png", "s-3",
		`{"total_score":{"possible":0}}`)

	summary, err := builder.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	if summary.TotalStudents != 3 {
		t.Fatalf("TotalStudents = %d, want 3", summary.TotalStudents)
	}
	// Effective grades are 95, 70, 65.
	if summary.HighestScore != 95 || summary.LowestScore != 65 {
		t.Fatalf("range = %v..%v, want 65..95", summary.LowestScore, summary.HighestScore)
	}
	wantAverage := (95.0 + 70.0 + 65.0) / 3.0
	if summary.AverageScore != wantAverage {
		t.Fatalf("AverageScore = %v, want %v", summary.AverageScore, wantAverage)
	}
	if summary.PassRate != 1 {
		t.Fatalf("PassRate = %v, want 1", summary.PassRate)
	}
	if len(summary.CommonMisconceptions) == 0 || summary.CommonMisconceptions[0] != "sign error" {
		t.Fatalf("unexpected misconception ranking: %v", summary.CommonMisconceptions)
	}
}

func TestSummaryExcludesContinuationAndUnfinishedItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	builder := report.NewBuilder(store, grading.DefaultFloors())

	ctx := context.Background()
	primary := completeItem(t, store, "scans/primary.png", "s-1",
		`{"total_score":{"earned":8,"possible":10,"percentage":80}}`)

	child, err := store.NewScan(ctx, "scans/child.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	if err := store.Link(ctx, child.ID, primary.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	if _, err := store.NewScan(ctx, "scans/pending.png"); err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}

	failed, err := store.NewScan(ctx, "scans/failed.png")
	if err != nil {
		t.Fatalf("NewScan failed: %v", err)
	}
	failed.SetFailed("service unavailable")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	summary, err := builder.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.TotalStudents != 1 {
		t.Fatalf("TotalStudents = %d, want 1 (continuation and unfinished items excluded)", summary.TotalStudents)
	}
}

func TestSummarizeDistributionBuckets(t *testing.T) {
	results := []report.StudentResult{
		{EffectiveGrade: 55},
		{EffectiveGrade: 59.9},
		{EffectiveGrade: 60},
		{EffectiveGrade: 79.5},
		{EffectiveGrade: 85},
		{EffectiveGrade: 100},
	}

	summary := report.Summarize(results)

	wantCounts := map[string]int{"0-59": 2, "60-69": 1, "70-79": 1, "80-89": 1, "90-100": 1}
	for _, bucket := range summary.ScoreDistribution {
		if bucket.Count != wantCounts[bucket.Label] {
			t.Fatalf("bucket %s = %d, want %d", bucket.Label, bucket.Count, wantCounts[bucket.Label])
		}
	}
}

func TestSummarizeEmptyBatch(t *testing.T) {
	summary := report.Summarize(nil)
	if summary.TotalStudents != 0 || summary.AverageScore != 0 {
		t.Fatalf("unexpected empty summary: %#v", summary)
	}
	if len(summary.ScoreDistribution) != 5 {
		t.Fatalf("expected fixed buckets even when empty, got %d", len(summary.ScoreDistribution))
	}
}

func TestGroupByLevelBands(t *testing.T) {
	results := []report.StudentResult{
		{StudentID: "s-1", EffectiveGrade: 55, Misconceptions: []string{"sign error"}},
		{StudentID: "s-2", EffectiveGrade: 60},
		{StudentID: "s-3", EffectiveGrade: 79.9},
		{StudentID: "s-4", EffectiveGrade: 80},
		{StudentID: "s-5", EffectiveGrade: 95},
	}

	groups := report.GroupByLevel(results)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	wantSizes := map[report.Level]int{
		report.LevelStruggling: 1,
		report.LevelDeveloping: 2,
		report.LevelProficient: 2,
	}
	for _, group := range groups {
		if len(group.Students) != wantSizes[group.Level] {
			t.Fatalf("group %s size = %d, want %d", group.Level, len(group.Students), wantSizes[group.Level])
		}
	}

	if groups[0].Misconceptions[0] != "sign error" {
		t.Fatalf("expected band misconceptions, got %v", groups[0].Misconceptions)
	}
}

func TestTopMisconceptionsTieBreakByFirstSeen(t *testing.T) {
	results := []report.StudentResult{
		{EffectiveGrade: 70, Misconceptions: []string{"first", "second"}},
		{EffectiveGrade: 72, Misconceptions: []string{"second", "first", "third"}},
	}

	summary := report.Summarize(results)
	want := []string{"first", "second", "third"}
	if len(summary.CommonMisconceptions) != len(want) {
		t.Fatalf("got %v, want %v", summary.CommonMisconceptions, want)
	}
	for i, m := range want {
		if summary.CommonMisconceptions[i] != m {
			t.Fatalf("position %d = %q, want %q", i, summary.CommonMisconceptions[i], m)
		}
	}
}
