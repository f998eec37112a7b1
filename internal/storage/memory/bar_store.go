package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MinuteBar // keyed by (code, timestamp_ms)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.MinuteBar),
	}
}

// barKey generates a unique key for a bar.
func barKey(code string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", code, timestampMs)
}

// InsertBulk adds multiple bars. Fails the entire batch on duplicate.
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.MinuteBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(bars))

	for _, b := range bars {
		if b == nil || b.Code == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Code, b.TimestampMs)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		barCopy := *b
		s.data[barKey(b.Code, b.TimestampMs)] = &barCopy
	}

	return nil
}

// GetByCode retrieves bars for one code within [from, to] (inclusive),
// ordered by timestamp ASC.
func (s *BarStore) GetByCode(_ context.Context, code string, from, to int64) ([]*domain.MinuteBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MinuteBar
	for _, b := range s.data {
		if b.Code == code && b.TimestampMs >= from && b.TimestampMs <= to {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})

	return result, nil
}

// GetByTimeRange retrieves bars for all codes within [from, to],
// ordered by timestamp ASC then code ASC.
func (s *BarStore) GetByTimeRange(_ context.Context, from, to int64) ([]*domain.MinuteBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MinuteBar
	for _, b := range s.data {
		if b.TimestampMs >= from && b.TimestampMs <= to {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].Code < result[j].Code
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BarStore = (*BarStore)(nil)
