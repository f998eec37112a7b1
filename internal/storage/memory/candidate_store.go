// Package memory provides in-memory store implementations for tests
// and for running the monitor without external databases.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/storage"
)

// CandidateStore is an in-memory implementation of storage.CandidateStore.
type CandidateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CandidateRow // keyed by (stock_code, data_date)
}

// NewCandidateStore creates a new in-memory candidate store.
func NewCandidateStore() *CandidateStore {
	return &CandidateStore{
		data: make(map[string]*domain.CandidateRow),
	}
}

// candidateKey generates a unique key for a candidate row.
func candidateKey(stockCode, dataDate string) string {
	return fmt.Sprintf("%s|%s", stockCode, dataDate)
}

// InsertBulk adds one day's rows. Fails the entire batch on duplicate.
func (s *CandidateStore) InsertBulk(_ context.Context, rows []*domain.CandidateRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(rows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range rows {
		if r == nil || r.StockCode == "" || r.DataDate == "" {
			return storage.ErrInvalidInput
		}
		key := candidateKey(r.StockCode, r.DataDate)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range rows {
		rowCopy := *r
		s.data[candidateKey(r.StockCode, r.DataDate)] = &rowCopy
	}

	return nil
}

// GetByDate retrieves all rows for an ISO date, ordered by stock_code ASC.
func (s *CandidateStore) GetByDate(_ context.Context, date string) ([]*domain.CandidateRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CandidateRow
	for _, r := range s.data {
		if r.DataDate == date {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StockCode < result[j].StockCode
	})

	return result, nil
}

// LatestDate returns the most recent data_date present.
func (s *CandidateStore) LatestDate(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest string
	for _, r := range s.data {
		if r.DataDate > latest {
			latest = r.DataDate
		}
	}
	if latest == "" {
		return "", storage.ErrNotFound
	}
	return latest, nil
}

// Verify interface compliance at compile time.
var _ storage.CandidateStore = (*CandidateStore)(nil)
