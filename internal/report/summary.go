// Package report derives class-level statistics and differentiation groups
// from completed submissions. Everything here is recomputed on demand from
// the queue; nothing is persisted.
package report

import (
	"context"
	"sort"

	"gradescan/internal/analysis"
	"gradescan/internal/grading"
	"gradescan/internal/queue"
	"gradescan/internal/services"
)

// topMisconceptions caps the class-wide misconception list.
const topMisconceptions = 5

// ScoreBucket is one fixed band of the score distribution.
type ScoreBucket struct {
	Label string `json:"label"`
	Min   float64
	Max   float64
	Count int `json:"count"`
}

// StudentResult pairs a completed primary item with its resolved grade.
type StudentResult struct {
	ItemID         int64    `json:"item_id"`
	StudentID      string   `json:"student_id,omitempty"`
	StudentName    string   `json:"student_name,omitempty"`
	EffectiveGrade float64  `json:"effective_grade"`
	Misconceptions []string `json:"misconceptions,omitempty"`

	result *analysis.Result
}

// Result exposes the underlying analysis result for callers that need raw
// rubric detail (gradebook export, adjustment justifications).
func (s StudentResult) Result() *analysis.Result {
	return s.result
}

// BatchSummary is the class-level view over one grading batch.
type BatchSummary struct {
	TotalStudents        int           `json:"total_students"`
	AverageScore         float64       `json:"average_score"`
	PassRate             float64       `json:"pass_rate"`
	LowestScore          float64       `json:"lowest_score"`
	HighestScore         float64       `json:"highest_score"`
	ScoreDistribution    []ScoreBucket `json:"score_distribution"`
	CommonMisconceptions []string      `json:"common_misconceptions,omitempty"`
}

// passingGrade is the effective grade at which a student counts as passing.
const passingGrade = 60.0

// Builder computes summaries against a queue snapshot.
type Builder struct {
	store  *queue.Store
	floors grading.Floors
}

// NewBuilder creates a report builder using the given floor policy.
func NewBuilder(store *queue.Store, floors grading.Floors) *Builder {
	return &Builder{store: store, floors: floors}
}

// Results returns every completed primary submission with its effective
// grade, in queue order. Continuation pages are represented solely through
// their primary and never appear here.
func (b *Builder) Results(ctx context.Context) ([]StudentResult, error) {
	items, err := b.store.ListPrimary(ctx, queue.StatusCompleted)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "report", "list completed items", "", err)
	}

	results := make([]StudentResult, 0, len(items))
	for _, item := range items {
		res, err := analysis.ParseResult(item.ResultJSON)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "report", "decode stored result", "", err)
		}
		sr := StudentResult{
			ItemID:         item.ID,
			StudentID:      item.StudentID,
			StudentName:    item.StudentName,
			EffectiveGrade: grading.EffectiveGrade(res, b.floors),
			result:         res,
		}
		if res != nil {
			sr.Misconceptions = res.Misconceptions
		}
		results = append(results, sr)
	}
	return results, nil
}

// Summary computes the class summary for the current batch.
func (b *Builder) Summary(ctx context.Context) (*BatchSummary, error) {
	results, err := b.Results(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(results), nil
}

// Summarize derives the class summary from resolved results.
func Summarize(results []StudentResult) *BatchSummary {
	summary := &BatchSummary{
		ScoreDistribution: newDistribution(),
	}
	if len(results) == 0 {
		return summary
	}

	summary.TotalStudents = len(results)
	summary.LowestScore = results[0].EffectiveGrade
	summary.HighestScore = results[0].EffectiveGrade

	var total float64
	var passing int
	counter := newFrequencyCounter()
	for _, r := range results {
		grade := r.EffectiveGrade
		total += grade
		if grade >= passingGrade {
			passing++
		}
		if grade < summary.LowestScore {
			summary.LowestScore = grade
		}
		if grade > summary.HighestScore {
			summary.HighestScore = grade
		}
		bucketFor(summary.ScoreDistribution, grade)
		counter.addAll(r.Misconceptions)
	}

	summary.AverageScore = total / float64(len(results))
	summary.PassRate = float64(passing) / float64(len(results))
	summary.CommonMisconceptions = counter.top(topMisconceptions)
	return summary
}

func newDistribution() []ScoreBucket {
	return []ScoreBucket{
		{Label: "0-59", Min: 0, Max: 59},
		{Label: "60-69", Min: 60, Max: 69},
		{Label: "70-79", Min: 70, Max: 79},
		{Label: "80-89", Min: 80, Max: 89},
		{Label: "90-100", Min: 90, Max: 100},
	}
}

func bucketFor(buckets []ScoreBucket, grade float64) {
	for i := len(buckets) - 1; i >= 0; i-- {
		if grade >= buckets[i].Min {
			buckets[i].Count++
			return
		}
	}
	buckets[0].Count++
}

// frequencyCounter counts misconceptions by exact string equality, keeping
// first-seen order for tie-breaking.
type frequencyCounter struct {
	counts map[string]int
	order  []string
}

func newFrequencyCounter() *frequencyCounter {
	return &frequencyCounter{counts: make(map[string]int)}
}

func (f *frequencyCounter) addAll(items []string) {
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, seen := f.counts[item]; !seen {
			f.order = append(f.order, item)
		}
		f.counts[item]++
	}
}

// top returns up to n entries ordered by descending frequency, ties broken
// by first-seen order.
func (f *frequencyCounter) top(n int) []string {
	entries := make([]string, len(f.order))
	copy(entries, f.order)
	sort.SliceStable(entries, func(i, j int) bool {
		return f.counts[entries[i]] > f.counts[entries[j]]
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
