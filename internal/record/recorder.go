// Package record aggregates live snapshots into 1-minute bars and
// persists completed minutes, so a session can later be replayed from
// storage.
package record

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/observability"
	"gap-monitor/internal/storage"
)

// barState accumulates one code's activity within the current minute.
type barState struct {
	open  float64
	high  float64
	low   float64
	close float64
	vol   float64
	amt   float64
}

// cumulative remembers a code's last seen session totals, so per-minute
// volume and amount come out as deltas.
type cumulative struct {
	vol float64
	amt float64
}

// Recorder turns periodic snapshots into minute bars. Bars for a minute
// are flushed when the first snapshot of the next minute arrives, and
// on Flush. Not safe for concurrent use; the session driver serializes
// ticks.
type Recorder struct {
	store storage.BarStore
	log   *logrus.Entry

	minuteMs int64
	open     map[string]*barState
	prev     map[string]cumulative
}

// New creates a recorder writing to the given bar store.
func New(store storage.BarStore, log *logrus.Entry) *Recorder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Recorder{
		store: store,
		log:   log,
		open:  make(map[string]*barState),
		prev:  make(map[string]cumulative),
	}
}

// Record folds one round of snapshots into the current minute. Crossing
// a minute boundary flushes the finished minute first. Untraded quotes
// are skipped.
func (r *Recorder) Record(ctx context.Context, now time.Time, quotes []domain.Quote) error {
	bucket := now.Truncate(time.Minute).UnixMilli()
	if r.minuteMs != 0 && bucket > r.minuteMs {
		if err := r.Flush(ctx); err != nil {
			return err
		}
	}
	r.minuteMs = bucket

	for _, q := range quotes {
		if !q.Traded() {
			continue
		}

		last, seen := r.prev[q.Code]
		if !seen {
			// First sight of the code this session. The cumulative
			// baseline starts here, so the first minute carries no
			// volume rather than the whole session's.
			last = cumulative{vol: q.VolumeLots, amt: q.Amount}
		}
		dVol := q.VolumeLots - last.vol
		dAmt := q.Amount - last.amt
		if dVol < 0 {
			dVol = 0
		}
		if dAmt < 0 {
			dAmt = 0
		}
		r.prev[q.Code] = cumulative{vol: q.VolumeLots, amt: q.Amount}

		bar, ok := r.open[q.Code]
		if !ok {
			bar = &barState{open: q.Close, high: q.Close, low: q.Close}
			r.open[q.Code] = bar
		}
		if q.Close > bar.high {
			bar.high = q.Close
		}
		if q.Close < bar.low {
			bar.low = q.Close
		}
		bar.close = q.Close
		bar.vol += dVol
		bar.amt += dAmt
	}

	return nil
}

// Flush persists the in-progress minute and resets the accumulator.
// Called on minute rollover and at session shutdown.
func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.open) == 0 {
		return nil
	}

	bars := make([]*domain.MinuteBar, 0, len(r.open))
	for code, st := range r.open {
		bars = append(bars, &domain.MinuteBar{
			Code:        code,
			TimestampMs: r.minuteMs,
			Open:        st.open,
			High:        st.high,
			Low:         st.low,
			Close:       st.close,
			VolumeLots:  st.vol,
			Amount:      st.amt,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Code < bars[j].Code })

	err := r.store.InsertBulk(ctx, bars)
	observability.RecordBarFlush(len(bars), err)
	if err != nil {
		return fmt.Errorf("flush minute bars: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"minute_ms": r.minuteMs,
		"bars":      len(bars),
	}).Debug("minute bars flushed")

	r.open = make(map[string]*barState)
	return nil
}
