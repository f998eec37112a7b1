package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/storage"
)

// CandidateStore implements storage.CandidateStore using PostgreSQL.
type CandidateStore struct {
	pool *Pool
}

// NewCandidateStore creates a new CandidateStore.
func NewCandidateStore(pool *Pool) *CandidateStore {
	return &CandidateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CandidateStore = (*CandidateStore)(nil)

// InsertBulk adds one day's candidate rows atomically. Returns
// ErrDuplicateKey if any (stock_code, data_date) already exists.
func (s *CandidateStore) InsertBulk(ctx context.Context, rows []*domain.CandidateRow) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r == nil || r.StockCode == "" || r.DataDate == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO daily_candidates (
			stock_code, bias, prev_high, strategy_tag, data_date
		) VALUES ($1, $2, $3, $4, $5)
	`

	for _, r := range rows {
		if _, err := tx.Exec(ctx, query,
			r.StockCode,
			r.Bias,
			r.PrevHigh,
			r.StrategyTag,
			r.DataDate,
		); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert candidate row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByDate retrieves all rows for an ISO date, ordered by stock_code.
func (s *CandidateStore) GetByDate(ctx context.Context, date string) ([]*domain.CandidateRow, error) {
	query := `
		SELECT stock_code, bias, prev_high, strategy_tag, data_date
		FROM daily_candidates
		WHERE data_date = $1
		ORDER BY stock_code ASC
	`

	rows, err := s.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("get candidates by date: %w", err)
	}
	defer rows.Close()

	return scanCandidateRows(rows)
}

// LatestDate returns the most recent data_date present.
func (s *CandidateStore) LatestDate(ctx context.Context) (string, error) {
	query := `SELECT max(data_date) FROM daily_candidates`

	var date *string
	if err := s.pool.QueryRow(ctx, query).Scan(&date); err != nil {
		return "", fmt.Errorf("get latest candidate date: %w", err)
	}
	if date == nil {
		return "", storage.ErrNotFound
	}
	return *date, nil
}

// scanCandidateRows collects all rows from a query result.
func scanCandidateRows(rows pgx.Rows) ([]*domain.CandidateRow, error) {
	var out []*domain.CandidateRow
	for rows.Next() {
		var r domain.CandidateRow
		if err := rows.Scan(&r.StockCode, &r.Bias, &r.PrevHigh, &r.StrategyTag, &r.DataDate); err != nil {
			return nil, fmt.Errorf("scan candidate row: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate rows: %w", err)
	}
	return out, nil
}
