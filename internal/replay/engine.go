// Package replay reconstructs intraday session snapshots from recorded
// 1-minute bars and drives them through a tick consumer after hours.
package replay

import (
	"context"
	"time"

	"gap-monitor/internal/domain"
)

// Tick is one reconstructed refresh: every monitored code's cumulative
// session snapshot as of one bar timestamp.
type Tick struct {
	Time   time.Time
	Quotes []domain.Quote
}

// Engine consumes reconstructed ticks in chronological order.
type Engine interface {
	// OnTick is called once per bar timestamp with the cumulative
	// snapshots of every code seen so far.
	OnTick(ctx context.Context, tick Tick) error
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, tick Tick) error

// OnTick calls f.
func (f EngineFunc) OnTick(ctx context.Context, tick Tick) error {
	return f(ctx, tick)
}
