// Package grading derives the effective grade for a submission from its
// analysis result and the configured floor policy. The resolution order and
// fallback constants are load-bearing: existing grading history was produced
// with them, so they must not drift.
package grading

import (
	"strings"

	"gradescan/internal/analysis"
)

const (
	// DefaultNoEvidenceFloor is the grade recorded when a submission has no
	// analysis result at all.
	DefaultNoEvidenceFloor = 55.0
	// DefaultEffortFloor is the minimum grade for work that shows effort,
	// and the fallback when a result exists but cannot be scored.
	DefaultEffortFloor = 65.0

	// minSuggestedGrade is the lowest AI-suggested grade that is taken at
	// face value; anything below falls through to the rubric percentage.
	minSuggestedGrade = 55.0

	// effortTextThreshold is the number of non-space characters of extracted
	// text that counts as evidence of effort.
	effortTextThreshold = 20
)

// Floors holds the minimum-grade policy.
type Floors struct {
	// NoEvidence applies when nothing on the page suggests the student
	// attempted the problem.
	NoEvidence float64
	// Effort applies when the page shows work, even unscoreable work.
	Effort float64
}

// DefaultFloors returns the stock floor policy.
func DefaultFloors() Floors {
	return Floors{NoEvidence: DefaultNoEvidenceFloor, Effort: DefaultEffortFloor}
}

// EffectiveGrade resolves the grade for one submission:
//
//  1. no result at all yields the no-evidence floor;
//  2. an AI-suggested grade of at least 55 is used as-is;
//  3. otherwise the rubric percentage, when the rubric has points to earn;
//  4. otherwise 65, meaning work shown but unscoreable.
//
// The computed grade is then raised to the effort floor when the page shows
// effort, or to the no-evidence floor when it does not.
func EffectiveGrade(result *analysis.Result, floors Floors) float64 {
	if result == nil {
		return Clamp(floors.NoEvidence)
	}

	grade := resolveBase(result)

	floor := floors.NoEvidence
	if hasEffort(result) {
		floor = floors.Effort
	}
	if grade < floor {
		grade = floor
	}
	return Clamp(grade)
}

func resolveBase(result *analysis.Result) float64 {
	if result.Grade != nil && *result.Grade >= minSuggestedGrade {
		return *result.Grade
	}
	if result.TotalScore.Possible > 0 {
		return result.TotalScore.Percentage
	}
	return DefaultEffortFloor
}

// hasEffort reports whether the result carries evidence the student tried:
// non-trivial extracted text or nonzero earned points.
func hasEffort(result *analysis.Result) bool {
	if result.TotalScore.Earned > 0 {
		return true
	}
	text := strings.Join(strings.Fields(result.OCRText), "")
	return len(text) >= effortTextThreshold
}

// Clamp bounds a grade to [0, 100].
func Clamp(grade float64) float64 {
	switch {
	case grade < 0:
		return 0
	case grade > 100:
		return 100
	default:
		return grade
	}
}
