package domain

import "time"

// Quote is the canonical intraday snapshot for one symbol.
// Any external feed shape is adapted into this type once, at the
// quote-source boundary.
type Quote struct {
	Code       string    // bare symbol code, e.g. "2330"
	Open       float64   // session open price
	High       float64   // session high so far
	Low        float64   // session low so far
	Close      float64   // last traded price; 0 means not yet traded today
	VolumeLots float64   // cumulative volume in round lots
	Amount     float64   // cumulative traded amount in base currency
	Change     float64   // close minus previous settlement price
	Timestamp  time.Time // exchange timestamp of the snapshot
}

// Traded reports whether the symbol has traded this session.
// A zero close is a neutral "waiting" observation, never a failure.
func (q Quote) Traded() bool {
	return q.Close != 0
}
