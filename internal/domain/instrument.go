package domain

// Venue identifies the exchange namespace a symbol is listed on.
type Venue string

// Venue constants. TSE is tried first during resolution, OTC second.
const (
	VenueTSE Venue = "TSE"
	VenueOTC Venue = "OTC"
)

// Symbol returns the venue-qualified lookup symbol, e.g. "TSE2330".
func (v Venue) Symbol(code string) string {
	return string(v) + code
}

// InstrumentHandle is an opaque reference to a tradable symbol at a
// specific venue. Created once per symbol by the resolver; immutable.
type InstrumentHandle struct {
	Code   string
	Venue  Venue
	Symbol string // venue-qualified symbol used by the quote source
}

// InstrumentInfo carries the static per-symbol facts captured at
// resolution time. Immutable for the remainder of the session.
type InstrumentInfo struct {
	Code          string
	DisplayName   string
	Reference     float64 // previous settlement price; 0 means unknown
	HasDerivative bool    // single-stock futures listed for this symbol
}
