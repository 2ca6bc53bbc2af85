package adjust

import (
	"context"
	"log/slog"

	"gradescan/internal/gradebook"
	"gradescan/internal/logging"
)

// Failure records one student whose override could not be saved.
type Failure struct {
	StudentID string
	Err       error
}

// CommitReport summarizes a commit: per-student saves are independent, so a
// partial failure leaves the successful overrides in place.
type CommitReport struct {
	Saved    int
	Failures []Failure
}

// Failed reports whether any student's override was not saved.
func (r CommitReport) Failed() bool {
	return len(r.Failures) > 0
}

// Commit applies a previewed adjustment through the gradebook service, one
// student at a time. Failures are accumulated and reported, never silently
// dropped, and never abort the remaining students. Cancellation is honored
// between students.
func Commit(ctx context.Context, svc gradebook.Service, entries []Entry, justification string, logger *slog.Logger) CommitReport {
	var rep CommitReport
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			rep.Failures = append(rep.Failures, Failure{StudentID: entry.StudentID, Err: err})
			continue
		}
		err := svc.SaveGrade(ctx, gradebook.SaveRequest{
			StudentID:     entry.StudentID,
			Grade:         entry.NewGrade,
			Justification: justification,
		})
		if err != nil {
			rep.Failures = append(rep.Failures, Failure{StudentID: entry.StudentID, Err: err})
			logger.Error("grade override failed",
				logging.String(logging.FieldStudentID, entry.StudentID),
				logging.Error(err))
			continue
		}
		rep.Saved++
		logger.Info("grade override saved",
			logging.String(logging.FieldStudentID, entry.StudentID),
			logging.Float64("grade", entry.NewGrade))
	}
	return rep
}
