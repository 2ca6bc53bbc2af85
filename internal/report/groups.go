package report

import "context"

// Level names a differentiation band.
type Level string

const (
	LevelStruggling Level = "struggling" // effective grade below 60
	LevelDeveloping Level = "developing" // 60 up to but excluding 80
	LevelProficient Level = "proficient" // 80 and above
)

// bandMisconceptions caps the per-band misconception list.
const bandMisconceptions = 3

// DifferentiationGroup is one tiered remediation band.
type DifferentiationGroup struct {
	Level          Level           `json:"level"`
	Students       []StudentResult `json:"students"`
	Misconceptions []string        `json:"misconceptions,omitempty"`
}

// Groups computes the three differentiation bands for the current batch.
func (b *Builder) Groups(ctx context.Context) ([]DifferentiationGroup, error) {
	results, err := b.Results(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByLevel(results), nil
}

// GroupByLevel splits resolved results into the three fixed bands. All three
// groups are always present, empty or not, in struggling-first order.
func GroupByLevel(results []StudentResult) []DifferentiationGroup {
	groups := []DifferentiationGroup{
		{Level: LevelStruggling},
		{Level: LevelDeveloping},
		{Level: LevelProficient},
	}
	counters := []*frequencyCounter{
		newFrequencyCounter(),
		newFrequencyCounter(),
		newFrequencyCounter(),
	}

	for _, r := range results {
		idx := bandIndex(r.EffectiveGrade)
		groups[idx].Students = append(groups[idx].Students, r)
		counters[idx].addAll(r.Misconceptions)
	}
	for i := range groups {
		groups[i].Misconceptions = counters[i].top(bandMisconceptions)
	}
	return groups
}

// LevelFor returns the band a grade falls in.
func LevelFor(grade float64) Level {
	switch {
	case grade < 60:
		return LevelStruggling
	case grade < 80:
		return LevelDeveloping
	default:
		return LevelProficient
	}
}

func bandIndex(grade float64) int {
	switch LevelFor(grade) {
	case LevelStruggling:
		return 0
	case LevelDeveloping:
		return 1
	default:
		return 2
	}
}
