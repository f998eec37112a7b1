package replay

import (
	"sort"
	"time"

	"gap-monitor/internal/domain"
)

// sessionState accumulates one code's bars into a session snapshot.
type sessionState struct {
	seen       bool
	open       float64
	high       float64
	low        float64
	close_     float64
	volumeLots float64
	amount     float64
}

func (s *sessionState) apply(b *domain.MinuteBar) {
	if !s.seen {
		s.seen = true
		s.open = b.Open
		s.high = b.High
		s.low = b.Low
	} else {
		if b.High > s.high {
			s.high = b.High
		}
		if b.Low < s.low {
			s.low = b.Low
		}
	}
	s.close_ = b.Close
	s.volumeLots += b.VolumeLots
	s.amount += b.Amount
}

// BuildTicks folds minute bars into one cumulative session snapshot per
// code per bar timestamp. The session open is the first bar's open,
// high/low are running extremes, close is the latest bar close, volume
// and amount are running sums. Change is derived from the reference
// price when one is known; without it the change stays zero and the
// gap renders as unknown downstream.
//
// Bars may arrive in any order; ticks come out in chronological order
// with quotes sorted by code. A code without a bar at some timestamp
// still appears with its prior cumulative snapshot, the same way a live
// snapshot round reports every subscribed code.
func BuildTicks(bars []*domain.MinuteBar, refs map[string]float64) []Tick {
	if len(bars) == 0 {
		return nil
	}

	sorted := append([]*domain.MinuteBar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TimestampMs != sorted[j].TimestampMs {
			return sorted[i].TimestampMs < sorted[j].TimestampMs
		}
		return sorted[i].Code < sorted[j].Code
	})

	states := make(map[string]*sessionState)
	var codes []string

	var ticks []Tick
	for i := 0; i < len(sorted); {
		ts := sorted[i].TimestampMs
		for ; i < len(sorted) && sorted[i].TimestampMs == ts; i++ {
			b := sorted[i]
			st, ok := states[b.Code]
			if !ok {
				st = &sessionState{}
				states[b.Code] = st
				codes = append(codes, b.Code)
			}
			st.apply(b)
		}

		now := time.UnixMilli(ts)
		quotes := make([]domain.Quote, 0, len(codes))
		for _, code := range codes {
			st := states[code]
			q := domain.Quote{
				Code:       code,
				Open:       st.open,
				High:       st.high,
				Low:        st.low,
				Close:      st.close_,
				VolumeLots: st.volumeLots,
				Amount:     st.amount,
				Timestamp:  now,
			}
			if ref := refs[code]; ref > 0 {
				q.Change = q.Close - ref
			}
			quotes = append(quotes, q)
		}
		sort.Slice(quotes, func(a, b int) bool { return quotes[a].Code < quotes[b].Code })

		ticks = append(ticks, Tick{Time: now, Quotes: quotes})
	}

	return ticks
}
