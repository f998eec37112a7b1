package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/storage"
)

func TestCandidateStore_InsertAndGetByDate(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.CandidateRow{
		{StockCode: "8069", Bias: "long", PrevHigh: 210.5, StrategyTag: "momentum-gap", DataDate: "2026-08-28"},
		{StockCode: "2330", Bias: "long", PrevHigh: 985, StrategyTag: "momentum-gap", DataDate: "2026-08-28"},
		{StockCode: "2330", Bias: "long", PrevHigh: 970, StrategyTag: "momentum-gap", DataDate: "2026-08-27"},
	})
	require.NoError(t, err)

	rows, err := store.GetByDate(ctx, "2026-08-28")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Ordered by stock_code ASC.
	assert.Equal(t, "2330", rows[0].StockCode)
	assert.Equal(t, 985.0, rows[0].PrevHigh)
	assert.Equal(t, "8069", rows[1].StockCode)
}

func TestCandidateStore_InsertDuplicate(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	row := &domain.CandidateRow{StockCode: "2330", Bias: "long", DataDate: "2026-08-28"}
	require.NoError(t, store.InsertBulk(ctx, []*domain.CandidateRow{row}))

	err := store.InsertBulk(ctx, []*domain.CandidateRow{row})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestCandidateStore_IntraBatchDuplicateAtomic(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.CandidateRow{
		{StockCode: "3231", Bias: "long", DataDate: "2026-08-28"},
		{StockCode: "3231", Bias: "long", DataDate: "2026-08-28"},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Nothing from the failed batch may be visible.
	rows, err := store.GetByDate(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCandidateStore_InvalidInput(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.CandidateRow{{StockCode: "", DataDate: "2026-08-28"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertBulk(ctx, []*domain.CandidateRow{{StockCode: "2330", DataDate: ""}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertBulk(ctx, []*domain.CandidateRow{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestCandidateStore_LatestDate(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	_, err := store.LatestDate(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.InsertBulk(ctx, []*domain.CandidateRow{
		{StockCode: "2330", Bias: "long", DataDate: "2026-08-27"},
		{StockCode: "8069", Bias: "long", DataDate: "2026-08-28"},
	}))

	latest, err := store.LatestDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", latest)
}

func TestCandidateStore_ReturnsCopies(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.CandidateRow{
		{StockCode: "2330", Bias: "long", PrevHigh: 985, DataDate: "2026-08-28"},
	}))

	rows, err := store.GetByDate(ctx, "2026-08-28")
	require.NoError(t, err)
	rows[0].PrevHigh = 0

	again, err := store.GetByDate(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 985.0, again[0].PrevHigh)
}
