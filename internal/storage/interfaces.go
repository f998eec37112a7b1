package storage

import (
	"context"

	"gap-monitor/internal/domain"
)

// CandidateStore provides access to the daily candidate table produced
// by the nightly selection job. The monitor only reads it.
type CandidateStore interface {
	// InsertBulk adds the rows for one day atomically. Returns
	// ErrDuplicateKey if any (stock_code, data_date) already exists.
	InsertBulk(ctx context.Context, rows []*domain.CandidateRow) error

	// GetByDate retrieves all rows for an ISO date, ordered by
	// stock_code ASC. An unknown date yields an empty slice.
	GetByDate(ctx context.Context, date string) ([]*domain.CandidateRow, error)

	// LatestDate returns the most recent data_date present. Returns
	// ErrNotFound when the table is empty.
	LatestDate(ctx context.Context) (string, error)
}

// BarStore provides access to recorded 1-minute bars used by the
// after-hours replay driver.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails the entire batch on a
	// duplicate (code, timestamp_ms).
	InsertBulk(ctx context.Context, bars []*domain.MinuteBar) error

	// GetByCode retrieves bars for one code within [from, to]
	// (inclusive, Unix milliseconds), ordered by timestamp ASC.
	GetByCode(ctx context.Context, code string, from, to int64) ([]*domain.MinuteBar, error)

	// GetByTimeRange retrieves bars for all codes within [from, to],
	// ordered by timestamp ASC then code ASC.
	GetByTimeRange(ctx context.Context, from, to int64) ([]*domain.MinuteBar, error)
}
