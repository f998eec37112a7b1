package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/storage"
)

func testBars() []*domain.MinuteBar {
	return []*domain.MinuteBar{
		{Code: "2330", TimestampMs: 2000, Open: 100.5, High: 102, Low: 100.5, Close: 102, VolumeLots: 410, Amount: 4.1e7},
		{Code: "2330", TimestampMs: 1000, Open: 100, High: 101, Low: 99.5, Close: 100.5, VolumeLots: 320, Amount: 3.2e7},
		{Code: "8069", TimestampMs: 1000, Open: 200, High: 201, Low: 200, Close: 200.5, VolumeLots: 55, Amount: 1.1e7},
	}
}

func TestBarStore_InsertAndGetByCode(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, testBars()))

	bars, err := store.GetByCode(ctx, "2330", 0, 10000)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// Ordered by timestamp ASC regardless of insert order.
	assert.Equal(t, int64(1000), bars[0].TimestampMs)
	assert.Equal(t, int64(2000), bars[1].TimestampMs)
}

func TestBarStore_GetByCodeRangeInclusive(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, testBars()))

	bars, err := store.GetByCode(ctx, "2330", 1000, 2000)
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	bars, err = store.GetByCode(ctx, "2330", 1001, 1999)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, testBars()))

	bars, err := store.GetByTimeRange(ctx, 1000, 1000)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// Ordered by timestamp ASC then code ASC.
	assert.Equal(t, "2330", bars[0].Code)
	assert.Equal(t, "8069", bars[1].Code)
}

func TestBarStore_InsertDuplicate(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := testBars()[:1]
	require.NoError(t, store.InsertBulk(ctx, bars))

	err := store.InsertBulk(ctx, bars)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestBarStore_IntraBatchDuplicateAtomic(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.MinuteBar{
		{Code: "2330", TimestampMs: 1000, Close: 100},
		{Code: "2330", TimestampMs: 1000, Close: 101},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	bars, err := store.GetByCode(ctx, "2330", 0, 10000)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestBarStore_InvalidInput(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.MinuteBar{{Code: "", TimestampMs: 1000}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertBulk(ctx, []*domain.MinuteBar{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestBarStore_ReturnsCopies(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, testBars()[:1]))

	bars, err := store.GetByCode(ctx, "2330", 0, 10000)
	require.NoError(t, err)
	bars[0].Close = 0

	again, err := store.GetByCode(ctx, "2330", 0, 10000)
	require.NoError(t, err)
	assert.Equal(t, 102.0, again[0].Close)
}
