package clickhouse

import (
	"context"
	"fmt"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails the entire batch on a duplicate
// (code, timestamp_ms).
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.MinuteBar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		code        string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Code == "" {
			return storage.ErrInvalidInput
		}
		k := key{b.Code, b.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, b := range bars {
		exists, err := s.exists(ctx, b.Code, b.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO minute_bars (
			code, timestamp_ms, open, high, low, close, volume_lots, amount
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Code, uint64(b.TimestampMs),
			b.Open, b.High, b.Low, b.Close,
			b.VolumeLots, b.Amount,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByCode retrieves bars for one code within [from, to] (inclusive),
// ordered by timestamp ASC.
func (s *BarStore) GetByCode(ctx context.Context, code string, from, to int64) ([]*domain.MinuteBar, error) {
	query := `
		SELECT code, timestamp_ms, open, high, low, close, volume_lots, amount
		FROM minute_bars
		WHERE code = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, code, uint64(from), uint64(to))
	if err != nil {
		return nil, fmt.Errorf("query bars by code: %w", err)
	}
	defer rows.Close()

	return scanMinuteBars(rows)
}

// GetByTimeRange retrieves bars for all codes within [from, to],
// ordered by timestamp ASC then code ASC.
func (s *BarStore) GetByTimeRange(ctx context.Context, from, to int64) ([]*domain.MinuteBar, error) {
	query := `
		SELECT code, timestamp_ms, open, high, low, close, volume_lots, amount
		FROM minute_bars
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, code ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(from), uint64(to))
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanMinuteBars(rows)
}

// exists checks if a bar with the given key exists.
func (s *BarStore) exists(ctx context.Context, code string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM minute_bars
		WHERE code = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, code, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanMinuteBars scans multiple rows.
func scanMinuteBars(rows chRows) ([]*domain.MinuteBar, error) {
	var bars []*domain.MinuteBar

	for rows.Next() {
		var b domain.MinuteBar
		var timestampMs uint64

		err := rows.Scan(
			&b.Code, &timestampMs,
			&b.Open, &b.High, &b.Low, &b.Close,
			&b.VolumeLots, &b.Amount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan minute bar row: %w", err)
		}

		b.TimestampMs = int64(timestampMs)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate minute bar rows: %w", err)
	}

	return bars, nil
}
