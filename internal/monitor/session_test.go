package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gap-monitor/internal/classify"
	"gap-monitor/internal/domain"
	"gap-monitor/internal/notify"
)

type scriptedFetcher struct {
	rounds  [][]domain.Quote
	calls   int
	handles [][]domain.InstrumentHandle
}

func (f *scriptedFetcher) Fetch(_ context.Context, handles []domain.InstrumentHandle) []domain.Quote {
	f.handles = append(f.handles, handles)
	if f.calls >= len(f.rounds) {
		f.calls++
		return nil
	}
	quotes := f.rounds[f.calls]
	f.calls++
	return quotes
}

type recordingSink struct {
	notified []classify.Notification
	err      error
}

func (s *recordingSink) Notify(_ context.Context, n classify.Notification) error {
	s.notified = append(s.notified, n)
	return s.err
}

func testClassifier(mode classify.Mode) *classify.Classifier {
	return classify.New(
		[]string{"2330"},
		map[string]domain.InstrumentInfo{"2330": {Code: "2330", DisplayName: "TSMC", Reference: 100}},
		map[string]domain.SessionReference{"2330": {PrevHigh: 100, Bias: "long"}},
		classify.Options{Mode: mode, Gate: classify.NewNotificationGate(nil)},
	)
}

func firingQuote() domain.Quote {
	return domain.Quote{
		Code: "2330", Open: 102, High: 104, Low: 101.5, Close: 103.8,
		VolumeLots: 700, Amount: 7e7, Change: 3.8,
	}
}

func handlesFor(codes ...string) map[string]domain.InstrumentHandle {
	m := make(map[string]domain.InstrumentHandle, len(codes))
	for _, code := range codes {
		m[code] = domain.InstrumentHandle{Code: code, Venue: domain.VenueTSE, Symbol: "TSE" + code}
	}
	return m
}

func TestSession_TickNotifies(t *testing.T) {
	fetcher := &scriptedFetcher{rounds: [][]domain.Quote{{firingQuote()}}}
	sink := &recordingSink{}

	session := New(Options{
		Fetcher:    fetcher,
		Classifier: testClassifier(classify.ModeNoDiscard),
		Handles:    handlesFor("2330"),
		Sinks:      []notify.Sink{sink},
	})

	summary := session.Tick(context.Background(), time.Now())

	require.Len(t, summary.Result.Firing, 1)
	require.Len(t, sink.notified, 1)
	assert.Equal(t, "2330", sink.notified[0].Code)
	assert.False(t, summary.Escalated)
	assert.Equal(t, 1, summary.QuoteCount)
}

func TestSession_NotifiesOncePerDay(t *testing.T) {
	fetcher := &scriptedFetcher{rounds: [][]domain.Quote{
		{firingQuote()}, {firingQuote()}, {firingQuote()},
	}}
	sink := &recordingSink{}

	session := New(Options{
		Fetcher:    fetcher,
		Classifier: testClassifier(classify.ModeNoDiscard),
		Handles:    handlesFor("2330"),
		Sinks:      []notify.Sink{sink},
	})

	now := time.Now()
	for i := 0; i < 3; i++ {
		session.Tick(context.Background(), now.Add(time.Duration(i)*time.Minute))
	}

	assert.Len(t, sink.notified, 1)
}

func TestSession_SinkFailureIsNotFatal(t *testing.T) {
	fetcher := &scriptedFetcher{rounds: [][]domain.Quote{{firingQuote()}}}
	sink := &recordingSink{err: errors.New("push rejected")}

	session := New(Options{
		Fetcher:    fetcher,
		Classifier: testClassifier(classify.ModeNoDiscard),
		Handles:    handlesFor("2330"),
		Sinks:      []notify.Sink{sink},
	})

	summary := session.Tick(context.Background(), time.Now())
	assert.Len(t, summary.Result.Firing, 1)
	assert.Len(t, sink.notified, 1)
}

type capturingRecorder struct {
	rounds [][]domain.Quote
	err    error
}

func (r *capturingRecorder) Record(_ context.Context, _ time.Time, quotes []domain.Quote) error {
	r.rounds = append(r.rounds, quotes)
	return r.err
}

func TestSession_RecorderSeesEveryRound(t *testing.T) {
	fetcher := &scriptedFetcher{rounds: [][]domain.Quote{{firingQuote()}, nil}}
	rec := &capturingRecorder{}

	session := New(Options{
		Fetcher:    fetcher,
		Classifier: testClassifier(classify.ModeNoDiscard),
		Handles:    handlesFor("2330"),
		Recorder:   rec,
	})

	now := time.Now()
	session.Tick(context.Background(), now)
	session.Tick(context.Background(), now.Add(time.Minute))

	require.Len(t, rec.rounds, 2)
	assert.Len(t, rec.rounds[0], 1)
	assert.Empty(t, rec.rounds[1])
}

func TestSession_RecorderFailureIsNotFatal(t *testing.T) {
	fetcher := &scriptedFetcher{rounds: [][]domain.Quote{{firingQuote()}}}
	rec := &capturingRecorder{err: errors.New("clickhouse down")}

	session := New(Options{
		Fetcher:    fetcher,
		Classifier: testClassifier(classify.ModeNoDiscard),
		Handles:    handlesFor("2330"),
		Recorder:   rec,
	})

	summary := session.Tick(context.Background(), time.Now())
	assert.Len(t, summary.Result.Firing, 1)
}

func TestSession_ZeroQuoteEscalation(t *testing.T) {
	fetcher := &scriptedFetcher{} // every round empty

	session := New(Options{
		Fetcher:       fetcher,
		Classifier:    testClassifier(classify.ModeNoDiscard),
		Handles:       handlesFor("2330"),
		EscalateAfter: 3,
	})

	now := time.Now()
	for i := 0; i < 2; i++ {
		summary := session.Tick(context.Background(), now)
		assert.False(t, summary.Escalated, "tick %d", i)
	}

	summary := session.Tick(context.Background(), now)
	assert.True(t, summary.Escalated)
}

func TestSession_EscalationStreakResets(t *testing.T) {
	fetcher := &scriptedFetcher{rounds: [][]domain.Quote{
		nil, nil, {firingQuote()}, nil, nil,
	}}

	session := New(Options{
		Fetcher:       fetcher,
		Classifier:    testClassifier(classify.ModeNoDiscard),
		Handles:       handlesFor("2330"),
		EscalateAfter: 3,
	})

	now := time.Now()
	var escalations int
	for i := 0; i < 5; i++ {
		if session.Tick(context.Background(), now).Escalated {
			escalations++
		}
	}

	// The successful third round resets the streak, so two trailing
	// empty rounds stay below the threshold.
	assert.Zero(t, escalations)
}

func TestSession_SkipsDiscardedCodes(t *testing.T) {
	clf := classify.New(
		[]string{"2330"},
		map[string]domain.InstrumentInfo{"2330": {Code: "2330", Reference: 100}},
		map[string]domain.SessionReference{"2330": {PrevHigh: 100}},
		classify.Options{Mode: classify.ModeStrictDiscard, DiscardAfter: 1},
	)

	// Opened below the gap threshold: one strike discards immediately.
	flat := domain.Quote{Code: "2330", Open: 100, High: 100.5, Low: 99.5, Close: 100, VolumeLots: 100, Amount: 1e7}
	fetcher := &scriptedFetcher{rounds: [][]domain.Quote{{flat}, nil}}

	session := New(Options{
		Fetcher:    fetcher,
		Classifier: clf,
		Handles:    handlesFor("2330"),
	})

	now := time.Now()
	summary := session.Tick(context.Background(), now)
	assert.Equal(t, []string{"2330"}, summary.Result.Discarded)

	// Next tick fetches nothing because the universe is empty, and an
	// empty universe never escalates.
	summary = session.Tick(context.Background(), now.Add(time.Minute))
	assert.Empty(t, fetcher.handles[1])
	assert.False(t, summary.Escalated)
}
