package domain

import "time"

// Pool is one of the three classification buckets a symbol occupies
// per tick.
type Pool string

// Pool constants.
const (
	PoolFiring  Pool = "firing"  // current verdict is pass
	PoolFading  Pool = "fading"  // passed earlier this session, fails now
	PoolPending Pool = "pending" // full monitored universe
)

// Row tags attached by the classifier itself. Strength and derivative
// tags come from the signal evaluator.
const (
	TagWaiting        = "waiting"         // not yet traded this session
	TagWeakeningWatch = "weakening-watch" // fading with no other tags
)

// ClassificationRow is the display-oriented record rebuilt every tick.
// Never persisted.
type ClassificationRow struct {
	Time          time.Time
	Code          string
	Name          string
	Price         float64
	GapPct        float64 // (open - prevClose) / prevClose; NaN when unknown
	GapKnown      bool    // false when no usable previous close exists
	PositionRatio float64
	Bias          float64
	VolumeLots    float64
	Tags          []string
}
