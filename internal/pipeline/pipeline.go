// Package pipeline holds the pure rules of the sales pipeline: the stage
// transition graph and the qualification scoring model. No I/O happens here;
// the document store and board synchronizer call into this package before
// committing any mutation.
package pipeline

import (
	"errors"
	"fmt"
	"math"
)

// Stage is one position in the pipeline graph.
type Stage string

const (
	StageCold       Stage = "cold"
	StageContacted  Stage = "contacted"
	StageInterested Stage = "interested"
	StageQualified  Stage = "qualified"
	StageClosedWon  Stage = "closed_won"
	StageClosedLost Stage = "closed_lost"
	StageFrozen     Stage = "frozen"
)

// ErrIllegalTransition marks a stage change rejected by the graph. Callers
// must surface it, never coerce the request to a nearby legal stage.
var ErrIllegalTransition = errors.New("pipeline: illegal stage transition")

// transitions is the sole source of truth for legal stage moves. Terminal
// stages have no outgoing edges; frozen can only reactivate into a
// non-terminal stage.
var transitions = map[Stage][]Stage{
	StageCold:       {StageContacted, StageClosedLost},
	StageContacted:  {StageInterested, StageClosedLost, StageFrozen},
	StageInterested: {StageQualified, StageClosedLost, StageFrozen},
	StageQualified:  {StageClosedWon, StageClosedLost, StageFrozen},
	StageClosedWon:  {},
	StageClosedLost: {},
	StageFrozen:     {StageCold, StageContacted, StageInterested, StageQualified},
}

// Stages returns every stage in fixed board order.
func Stages() []Stage {
	return []Stage{
		StageCold,
		StageContacted,
		StageInterested,
		StageQualified,
		StageClosedWon,
		StageClosedLost,
		StageFrozen,
	}
}

// ParseStage maps a raw string onto a known stage.
func ParseStage(value string) (Stage, bool) {
	stage := Stage(value)
	if _, ok := transitions[stage]; !ok {
		return "", false
	}
	return stage, true
}

// IsLegalTransition reports whether from -> to is an edge of the graph.
// Self transitions are not edges.
func IsLegalTransition(from, to Stage) bool {
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// CheckTransition wraps IsLegalTransition with a typed error for callers
// that want to propagate the rejection.
func CheckTransition(from, to Stage) error {
	if !IsLegalTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}

// Component caps for the qualification breakdown. They sum to the 100 point
// ceiling of the model.
const (
	CapBusinessSize      = 20
	CapDigitalPresence   = 25
	CapCompetitorGaps    = 20
	CapLocation          = 15
	CapIndustry          = 10
	CapRevenueIndicators = 10

	// ScoreTolerance is the allowed drift between a stored total and the
	// recomputed breakdown sum.
	ScoreTolerance = 1
)

// Breakdown holds the six weighted sub-scores of a qualification score.
type Breakdown struct {
	BusinessSize      float64 `yaml:"businessSize" json:"businessSize"`
	DigitalPresence   float64 `yaml:"digitalPresence" json:"digitalPresence"`
	CompetitorGaps    float64 `yaml:"competitorGaps" json:"competitorGaps"`
	Location          float64 `yaml:"location" json:"location"`
	Industry          float64 `yaml:"industry" json:"industry"`
	RevenueIndicators float64 `yaml:"revenueIndicators" json:"revenueIndicators"`
}

// Total sums the six components.
func (b Breakdown) Total() float64 {
	return b.BusinessSize + b.DigitalPresence + b.CompetitorGaps +
		b.Location + b.Industry + b.RevenueIndicators
}

// components pairs each sub-score with its cap for validation.
func (b Breakdown) components() []struct {
	name  string
	value float64
	cap   float64
} {
	return []struct {
		name  string
		value float64
		cap   float64
	}{
		{"businessSize", b.BusinessSize, CapBusinessSize},
		{"digitalPresence", b.DigitalPresence, CapDigitalPresence},
		{"competitorGaps", b.CompetitorGaps, CapCompetitorGaps},
		{"location", b.Location, CapLocation},
		{"industry", b.Industry, CapIndustry},
		{"revenueIndicators", b.RevenueIndicators, CapRevenueIndicators},
	}
}

// ValidateBreakdown checks that no component is negative or above its cap
// and that the sum stays inside [0,100].
func ValidateBreakdown(b Breakdown) error {
	for _, c := range b.components() {
		if c.value < 0 {
			return fmt.Errorf("pipeline: %s is negative (%.1f)", c.name, c.value)
		}
		if c.value > c.cap {
			return fmt.Errorf("pipeline: %s %.1f exceeds cap %.0f", c.name, c.value, c.cap)
		}
	}
	if total := b.Total(); total < 0 || total > 100 {
		return fmt.Errorf("pipeline: breakdown sum %.1f outside [0,100]", total)
	}
	return nil
}

// ValidateScore reports whether the stored total matches the breakdown sum
// within tolerance and the breakdown itself is legal.
func ValidateScore(total float64, b Breakdown) bool {
	if err := ValidateBreakdown(b); err != nil {
		return false
	}
	return math.Abs(total-b.Total()) <= ScoreTolerance
}

// Level bands a total score into a coarse qualification grade.
type Level string

const (
	LevelHigh         Level = "high"
	LevelMedium       Level = "medium"
	LevelLow          Level = "low"
	LevelDisqualified Level = "disqualified"
)

// Bands holds the configurable cut points between qualification levels.
// Totals at or above High band high, at or above Medium band medium, and so
// on; anything below Low is disqualified.
type Bands struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
	Low    float64 `yaml:"low"`
}

// DefaultBands are the stock cut points. They are policy, not contract, and
// can be overridden via configuration.
func DefaultBands() Bands {
	return Bands{High: 80, Medium: 60, Low: 30}
}

// Level bands the total. Invalid band configurations (non-decreasing cut
// points) fall back to the defaults so a bad config can never invert the
// ordering of grades.
func (bands Bands) Level(total float64) Level {
	if !(bands.High > bands.Medium && bands.Medium > bands.Low) {
		bands = DefaultBands()
	}
	switch {
	case total >= bands.High:
		return LevelHigh
	case total >= bands.Medium:
		return LevelMedium
	case total >= bands.Low:
		return LevelLow
	default:
		return LevelDisqualified
	}
}
