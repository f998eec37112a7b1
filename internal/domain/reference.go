package domain

// CandidateRow is one row of the daily candidate table produced by the
// nightly selection job. Corresponds to daily_candidates in PostgreSQL;
// also loadable from CSV.
type CandidateRow struct {
	StockCode   string  // bare symbol code
	Bias        float64 // moving-average deviation score
	PrevHigh    float64 // previous day high; 0 means column absent
	StrategyTag string  // selection strategy label, e.g. "bias|ma_conv"
	DataDate    string  // ISO date the row was computed for
}

// SessionReference holds the per-code static inputs for one session.
// Read-only after the session starts.
type SessionReference struct {
	PrevHigh    float64
	Bias        float64
	StrategyTag string
}
