// Package monitor drives one trading session: each tick fetches fresh
// snapshots for the remaining universe, classifies them and pushes any
// gated notifications.
package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"gap-monitor/internal/classify"
	"gap-monitor/internal/domain"
	"gap-monitor/internal/notify"
	"gap-monitor/internal/observability"
)

// DefaultEscalateAfter is how many consecutive empty snapshot rounds
// are tolerated before the session reports an escalation.
const DefaultEscalateAfter = 5

// QuoteFetcher is the snapshot retrieval collaborator.
type QuoteFetcher interface {
	Fetch(ctx context.Context, handles []domain.InstrumentHandle) []domain.Quote
}

// BarRecorder persists fetched snapshots as minute bars for later
// replay. Optional.
type BarRecorder interface {
	Record(ctx context.Context, now time.Time, quotes []domain.Quote) error
}

// Options for creating a Session.
type Options struct {
	// Required collaborators.
	Fetcher    QuoteFetcher
	Classifier *classify.Classifier

	// Handles of the resolved universe, keyed by code. Codes the
	// classifier discards stop being fetched.
	Handles map[string]domain.InstrumentHandle

	// Sinks receive notifications. Delivery failure is logged, never
	// fatal, and does not reclaim the per-day notification slot.
	Sinks []notify.Sink

	// Recorder, when set, receives every fetch round for minute-bar
	// persistence. Recording failure is logged, never fatal.
	Recorder BarRecorder

	// EscalateAfter overrides the empty-round threshold. Defaults to
	// DefaultEscalateAfter.
	EscalateAfter int

	Logger *logrus.Entry
}

// TickSummary reports what one tick did.
type TickSummary struct {
	Result classify.TickResult

	// QuoteCount is how many snapshots the fetch round returned.
	QuoteCount int

	// Escalated is set when the zero-quote streak has reached the
	// threshold. The feed is likely down; the operator should look.
	Escalated bool
}

// Session is the per-tick driver. Not safe for concurrent ticks; the
// scheduler must serialize calls.
type Session struct {
	fetcher    QuoteFetcher
	classifier *classify.Classifier
	handles    map[string]domain.InstrumentHandle
	sinks      []notify.Sink
	recorder   BarRecorder

	escalateAfter   int
	zeroQuoteStreak int

	log *logrus.Entry
}

// New creates a session driver.
func New(opts Options) *Session {
	if opts.EscalateAfter <= 0 {
		opts.EscalateAfter = DefaultEscalateAfter
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Session{
		fetcher:       opts.Fetcher,
		classifier:    opts.Classifier,
		handles:       opts.Handles,
		sinks:         opts.Sinks,
		recorder:      opts.Recorder,
		escalateAfter: opts.EscalateAfter,
		log:           opts.Logger,
	}
}

// Tick runs one resolve-fetch-classify-notify round at the given time.
func (s *Session) Tick(ctx context.Context, now time.Time) TickSummary {
	universe := s.classifier.Universe()

	handles := make([]domain.InstrumentHandle, 0, len(universe))
	for _, code := range universe {
		if h, ok := s.handles[code]; ok {
			handles = append(handles, h)
		}
	}

	quotes := s.fetcher.Fetch(ctx, handles)

	summary := TickSummary{QuoteCount: len(quotes)}
	if len(quotes) == 0 && len(handles) > 0 {
		s.zeroQuoteStreak++
		if s.zeroQuoteStreak >= s.escalateAfter {
			summary.Escalated = true
			observability.RecordEscalation()
			s.log.WithField("streak", s.zeroQuoteStreak).
				Error("no quotes for consecutive ticks, feed may be down")
		}
	} else {
		s.zeroQuoteStreak = 0
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, now, quotes); err != nil {
			s.log.Errorf("record minute bars: %v", err)
		}
	}

	summary.Result = s.classifier.ProcessTick(now, quotes)
	observability.RecordTick(summary.QuoteCount,
		len(summary.Result.Firing), len(summary.Result.Fading), len(summary.Result.Pending))
	observability.RecordDiscards(len(summary.Result.Discarded))

	for _, n := range summary.Result.Notifications {
		s.dispatch(ctx, n)
	}

	s.log.WithFields(logrus.Fields{
		"quotes":  summary.QuoteCount,
		"firing":  len(summary.Result.Firing),
		"fading":  len(summary.Result.Fading),
		"pending": len(summary.Result.Pending),
	}).Info("tick processed")

	return summary
}

// dispatch fans one notification out to every sink.
func (s *Session) dispatch(ctx context.Context, n classify.Notification) {
	for _, sink := range s.sinks {
		err := sink.Notify(ctx, n)
		observability.RecordNotification(err)
		if err != nil {
			s.log.WithField("code", n.Code).Errorf("notification delivery failed: %v", err)
		}
	}
}
