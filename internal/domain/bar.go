package domain

// MinuteBar is one recorded 1-minute bar for after-hours replay.
// Corresponds to minute_bars table in ClickHouse.
type MinuteBar struct {
	Code        string
	TimestampMs int64   // bar end time, Unix milliseconds
	Open        float64
	High        float64
	Low         float64
	Close       float64
	VolumeLots  float64 // volume within this bar, in round lots
	Amount      float64 // traded amount within this bar
}
