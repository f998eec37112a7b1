// Package signal implements the pure momentum-gap criteria check.
package signal

import "gap-monitor/internal/domain"

// Threshold constants for the momentum-gap test.
const (
	// GapMargin is the multiplier the open must clear above the
	// previous day high.
	GapMargin = 1.01

	// PositionRatioThreshold is the minimum close position within the
	// day range for a pass.
	PositionRatioThreshold = 0.5

	// MinVolumeLots is the minimum cumulative volume, in round lots.
	MinVolumeLots = 500

	// MinAmount is the minimum cumulative traded amount in base
	// currency units.
	MinAmount = 10_000_000

	// rangeEpsilon guards the position-ratio division on near-flat bars.
	rangeEpsilon = 0.00001
)

// Tags attached by the evaluator.
const (
	TagHasDerivative = "has-derivative"
	TagExtreme       = "extreme"  // position ratio >= 0.95
	TagBreakout      = "breakout" // position ratio >= 0.80
)

// Verdict is the result of evaluating one quote against the criteria.
type Verdict struct {
	Passed          bool
	Tags            []string
	PositionRatio   float64
	GapConditionMet bool
}

// Evaluate applies the momentum-gap criteria to a single quote.
//
// A quote with close == 0 has not traded yet and yields a neutral
// verdict. The gap condition is strict: the session low must never have
// dipped to or below the previous day high, and the open must clear it
// by more than 1%.
func Evaluate(q domain.Quote, prevHigh float64, hasDerivative bool) Verdict {
	if q.Close == 0 {
		return Verdict{}
	}

	gapMet := q.Low >= prevHigh && q.Open > prevHigh*GapMargin

	// Flat bar: the range is exactly zero, the close sits nowhere.
	var positionRatio float64
	if q.High == q.Low {
		positionRatio = 0.0
	} else {
		positionRatio = (q.Close - q.Low) / (q.High - q.Low + rangeEpsilon)
	}

	volumeOK := q.VolumeLots >= MinVolumeLots && q.Amount >= MinAmount

	passed := gapMet && positionRatio > PositionRatioThreshold && volumeOK

	var tags []string
	if hasDerivative {
		tags = append(tags, TagHasDerivative)
	}
	switch {
	case positionRatio >= 0.95:
		tags = append(tags, TagExtreme)
	case positionRatio >= 0.80:
		tags = append(tags, TagBreakout)
	}

	return Verdict{
		Passed:          passed,
		Tags:            tags,
		PositionRatio:   positionRatio,
		GapConditionMet: gapMet,
	}
}
