// Package adjust implements the two-phase bulk grade adjustment: an operator
// composes a delta from fixed criteria plus a bounded manual amount, previews
// the resulting grades, and only then commits through the gradebook service.
package adjust

import (
	"fmt"
	"strings"

	"gradescan/internal/grading"
	"gradescan/internal/report"
	"gradescan/internal/services"
)

// Criterion is one fixed-value adjustment reason.
type Criterion struct {
	ID    string
	Label string
	Delta float64
}

// ManualDeltaLimit bounds the free-form portion of an adjustment.
const ManualDeltaLimit = 20.0

// Criteria returns the fixed adjustment menu in display order.
func Criteria() []Criterion {
	return []Criterion{
		{ID: "retake", Label: "Completed a retake", Delta: 10},
		{ID: "corrections", Label: "Submitted test corrections", Delta: 5},
		{ID: "participation", Label: "Strong class participation", Delta: 3},
		{ID: "incomplete", Label: "Work left incomplete", Delta: -5},
	}
}

// Plan is the operator's composed adjustment (phase one).
type Plan struct {
	CriterionIDs  []string
	ManualDelta   float64
	Justification string
}

// Validate rejects a plan that may not advance to preview: unknown criteria,
// a manual delta outside the bound, or a missing justification.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Justification) == "" {
		return services.Wrap(services.ErrValidation, "adjust", "validate plan",
			"a justification is required before previewing an adjustment", nil)
	}
	if p.ManualDelta < -ManualDeltaLimit || p.ManualDelta > ManualDeltaLimit {
		return services.Wrap(services.ErrValidation, "adjust", "validate plan",
			fmt.Sprintf("manual delta must be between %g and %g", -ManualDeltaLimit, ManualDeltaLimit), nil)
	}
	known := criterionIndex()
	for _, id := range p.CriterionIDs {
		if _, ok := known[id]; !ok {
			return services.Wrap(services.ErrValidation, "adjust", "validate plan",
				fmt.Sprintf("unknown criterion %q", id), nil)
		}
	}
	return nil
}

// TotalDelta is the sum of the selected criteria deltas plus the manual
// delta.
func (p Plan) TotalDelta() float64 {
	known := criterionIndex()
	total := p.ManualDelta
	for _, id := range p.CriterionIDs {
		if c, ok := known[id]; ok {
			total += c.Delta
		}
	}
	return total
}

// Entry is one student's row in the preview (phase two).
type Entry struct {
	StudentID    string
	StudentName  string
	CurrentGrade float64
	NewGrade     float64
}

// Preview validates the plan and computes the post-adjustment grade for every
// selected student. No state is mutated; the operator may discard the preview
// and recompose freely.
func Preview(plan Plan, students []report.StudentResult) ([]Entry, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	delta := plan.TotalDelta()
	entries := make([]Entry, 0, len(students))
	for _, s := range students {
		entries = append(entries, Entry{
			StudentID:    s.StudentID,
			StudentName:  s.StudentName,
			CurrentGrade: s.EffectiveGrade,
			NewGrade:     grading.Clamp(s.EffectiveGrade + delta),
		})
	}
	return entries, nil
}

func criterionIndex() map[string]Criterion {
	index := make(map[string]Criterion)
	for _, c := range Criteria() {
		index[c.ID] = c
	}
	return index
}
