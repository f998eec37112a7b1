package classify

import (
	"sync"
	"time"
)

// NotificationGate enforces at most one notification per symbol per
// calendar day. The sent-set is cleared the first time any call observes
// that the wall-clock date has advanced past the date recorded at the
// last clear.
//
// The clock is injected so tests can drive date rollover explicitly.
type NotificationGate struct {
	mu        sync.Mutex
	now       func() time.Time
	sentToday map[string]struct{}
	lastReset time.Time // midnight of the day the set was last cleared
}

// NewNotificationGate creates a gate using the given clock. A nil clock
// defaults to time.Now.
func NewNotificationGate(now func() time.Time) *NotificationGate {
	if now == nil {
		now = time.Now
	}
	g := &NotificationGate{
		now:       now,
		sentToday: make(map[string]struct{}),
	}
	g.lastReset = dateOf(g.now())
	return g
}

// ShouldNotify reports whether a notification for code may still fire
// today. It does not mark the code as sent.
func (g *NotificationGate) ShouldNotify(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfNewDay()
	_, sent := g.sentToday[code]
	return !sent
}

// MarkSent records that a notification for code fired today.
func (g *NotificationGate) MarkSent(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetIfNewDay()
	g.sentToday[code] = struct{}{}
}

// resetIfNewDay clears the sent-set on date rollover. Callers must hold
// the mutex.
func (g *NotificationGate) resetIfNewDay() {
	today := dateOf(g.now())
	if today.After(g.lastReset) {
		g.sentToday = make(map[string]struct{})
		g.lastReset = today
	}
}

// dateOf truncates a time to midnight in its own location.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
