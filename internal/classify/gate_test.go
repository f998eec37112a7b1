package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock returns a controllable clock function.
func fakeClock(start time.Time) (func() time.Time, func(time.Time)) {
	current := start
	return func() time.Time { return current }, func(t time.Time) { current = t }
}

func TestGate_OncePerDay(t *testing.T) {
	now, _ := fakeClock(time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC))
	gate := NewNotificationGate(now)

	assert.True(t, gate.ShouldNotify("2330"))
	gate.MarkSent("2330")

	// Ten more ticks within the same day: never again.
	for i := 0; i < 10; i++ {
		assert.False(t, gate.ShouldNotify("2330"))
	}
	assert.True(t, gate.ShouldNotify("8069"), "other codes unaffected")
}

func TestGate_DateRollover(t *testing.T) {
	now, advance := fakeClock(time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC))
	gate := NewNotificationGate(now)

	gate.MarkSent("2330")
	assert.False(t, gate.ShouldNotify("2330"))

	// Later the same day: still blocked.
	advance(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC))
	assert.False(t, gate.ShouldNotify("2330"))

	// Next calendar day clears the sent-set.
	advance(time.Date(2024, 3, 2, 8, 45, 0, 0, time.UTC))
	assert.True(t, gate.ShouldNotify("2330"))
}

func TestGate_RolloverObservedByMarkSent(t *testing.T) {
	now, advance := fakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	gate := NewNotificationGate(now)

	gate.MarkSent("2330")
	advance(time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC))

	// MarkSent also triggers the reset before recording.
	gate.MarkSent("8069")
	assert.False(t, gate.ShouldNotify("8069"))
	assert.True(t, gate.ShouldNotify("2330"))
}
