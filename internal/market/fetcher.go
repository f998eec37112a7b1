package market

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gap-monitor/internal/domain"
)

// QuoteSource is the quote collaborator: one batched snapshot request
// for a set of instrument handles. Any returned error is treated as
// transient and retryable.
type QuoteSource interface {
	Snapshots(ctx context.Context, handles []domain.InstrumentHandle) ([]domain.Quote, error)
}

// FetchConfig holds the retry and fan-out policy for one fetch pass.
type FetchConfig struct {
	// BatchSize is the number of handles per snapshot request.
	BatchSize int
	// Concurrency bounds the number of in-flight batch requests.
	Concurrency int
	// MaxAttempts is the per-batch attempt budget.
	MaxAttempts int
	// AttemptTimeout bounds a single snapshot request. The legacy
	// design had none, which risked wedging the whole tick.
	AttemptTimeout time.Duration
	// RetryBackoff is slept between failed attempts of one batch.
	RetryBackoff time.Duration
}

// DefaultFetchConfig returns the production defaults.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		BatchSize:      300,
		Concurrency:    2,
		MaxAttempts:    3,
		AttemptTimeout: 12 * time.Second,
		RetryBackoff:   500 * time.Millisecond,
	}
}

// normalize fills zero fields with defaults.
func (c FetchConfig) normalize() FetchConfig {
	d := DefaultFetchConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = d.AttemptTimeout
	}
	return c
}

// Fetcher retrieves one current quote per handle, batching the handle
// list and fetching batches concurrently with per-batch retry. It owns
// no state between calls and is safe to invoke on every tick
// indefinitely.
type Fetcher struct {
	source QuoteSource
	cfg    FetchConfig
	log    *logrus.Entry
}

// NewFetcher creates a fetcher over the given source.
func NewFetcher(source QuoteSource, cfg FetchConfig, log *logrus.Entry) *Fetcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Fetcher{source: source, cfg: cfg.normalize(), log: log}
}

// Fetch partitions handles into contiguous batches and gathers the
// snapshot results by unordered completion. A batch that exhausts its
// attempts contributes zero quotes: the caller observes fewer quotes
// than handles and treats missing codes as "no update this tick".
func (f *Fetcher) Fetch(ctx context.Context, handles []domain.InstrumentHandle) []domain.Quote {
	if len(handles) == 0 {
		return nil
	}

	batches := partition(handles, f.cfg.BatchSize)

	jobs := make(chan []domain.InstrumentHandle, len(batches))
	for _, b := range batches {
		jobs <- b
	}
	close(jobs)

	var (
		mu     sync.Mutex
		quotes []domain.Quote
		wg     sync.WaitGroup
	)

	workers := f.cfg.Concurrency
	if workers > len(batches) {
		workers = len(batches)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				got := f.fetchBatch(ctx, batch)
				if len(got) == 0 {
					continue
				}
				mu.Lock()
				quotes = append(quotes, got...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return quotes
}

// fetchBatch runs one batch through the retry policy. Exhausting the
// attempt budget is a partial-data condition, not an error.
func (f *Fetcher) fetchBatch(ctx context.Context, batch []domain.InstrumentHandle) []domain.Quote {
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
		quotes, err := f.source.Snapshots(attemptCtx, batch)
		cancel()

		if err == nil {
			return quotes
		}

		f.log.WithFields(logrus.Fields{
			"batch_size": len(batch),
			"attempt":    attempt,
		}).Warnf("snapshot batch failed: %v", err)

		if ctx.Err() != nil {
			return nil
		}
		if attempt < f.cfg.MaxAttempts && f.cfg.RetryBackoff > 0 {
			select {
			case <-time.After(f.cfg.RetryBackoff):
			case <-ctx.Done():
				return nil
			}
		}
	}

	f.log.WithField("batch_size", len(batch)).
		Errorf("snapshot batch dropped after %d attempts", f.cfg.MaxAttempts)
	return nil
}

// partition splits handles into contiguous slices of at most size.
func partition(handles []domain.InstrumentHandle, size int) [][]domain.InstrumentHandle {
	var out [][]domain.InstrumentHandle
	for start := 0; start < len(handles); start += size {
		end := start + size
		if end > len(handles) {
			end = len(handles)
		}
		out = append(out, handles[start:end])
	}
	return out
}
