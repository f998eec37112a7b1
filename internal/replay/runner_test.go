package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gap-monitor/internal/classify"
	"gap-monitor/internal/domain"
	"gap-monitor/internal/storage/memory"
)

func seedBars(t *testing.T) *memory.BarStore {
	t.Helper()
	store := memory.NewBarStore()
	err := store.InsertBulk(context.Background(), []*domain.MinuteBar{
		{Code: "2330", TimestampMs: 1000, Open: 102, High: 103, Low: 101.5, Close: 102.5, VolumeLots: 400, Amount: 4e7},
		{Code: "2330", TimestampMs: 2000, Open: 102.5, High: 104, Low: 102.5, Close: 103.8, VolumeLots: 300, Amount: 3e7},
		{Code: "2330", TimestampMs: 3000, Open: 103.8, High: 104, Low: 103, Close: 103.5, VolumeLots: 100, Amount: 1e7},
	})
	require.NoError(t, err)
	return store
}

func TestRunner_Run(t *testing.T) {
	runner := NewRunner(seedBars(t), map[string]float64{"2330": 100}, nil)

	var ticks []Tick
	err := runner.Run(context.Background(), 0, 10000, EngineFunc(func(_ context.Context, tick Tick) error {
		ticks = append(ticks, tick)
		return nil
	}))
	require.NoError(t, err)
	require.Len(t, ticks, 3)

	assert.Equal(t, 102.0, ticks[2].Quotes[0].Open)
	assert.Equal(t, 800.0, ticks[2].Quotes[0].VolumeLots)
	assert.InDelta(t, 3.5, ticks[2].Quotes[0].Change, 1e-9)
}

func TestRunner_RangeLimitsTicks(t *testing.T) {
	runner := NewRunner(seedBars(t), nil, nil)

	var count int
	err := runner.Run(context.Background(), 1000, 2000, EngineFunc(func(_ context.Context, _ Tick) error {
		count++
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRunner_EngineErrorAborts(t *testing.T) {
	runner := NewRunner(seedBars(t), nil, nil)

	boom := errors.New("boom")
	var count int
	err := runner.Run(context.Background(), 0, 10000, EngineFunc(func(_ context.Context, _ Tick) error {
		count++
		return boom
	}))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count)
}

func TestRunner_ContextCancelled(t *testing.T) {
	runner := NewRunner(seedBars(t), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var count int
	err := runner.Run(ctx, 0, 10000, EngineFunc(func(_ context.Context, _ Tick) error {
		count++
		cancel()
		return nil
	}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, count)
}

// Replaying recorded bars through the live classifier must reproduce
// the firing transition.
func TestRunner_DrivesClassifier(t *testing.T) {
	runner := NewRunner(seedBars(t), map[string]float64{"2330": 100}, nil)

	clf := classify.New(
		[]string{"2330"},
		map[string]domain.InstrumentInfo{"2330": {Code: "2330", DisplayName: "TSMC", Reference: 100}},
		map[string]domain.SessionReference{"2330": {PrevHigh: 100, Bias: "long"}},
		classify.Options{},
	)

	var fired bool
	err := runner.Run(context.Background(), 0, 10000, EngineFunc(func(_ context.Context, tick Tick) error {
		result := clf.ProcessTick(tick.Time, tick.Quotes)
		if len(result.Firing) > 0 {
			fired = true
		}
		return nil
	}))
	require.NoError(t, err)

	// Session: open 102 > 100*1.01, low 101.5 >= 100, and by the second
	// tick volume 700 lots / 7e7 amount with close near the high.
	assert.True(t, fired)
}
