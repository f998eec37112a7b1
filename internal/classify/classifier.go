// Package classify implements the stateful three-pool session
// classifier and the one-notification-per-day gate.
package classify

import (
	"time"

	"github.com/sirupsen/logrus"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/signal"
)

// Mode selects the discard policy applied ahead of full evaluation.
type Mode string

// Discard modes. The legacy system carried both behaviors; the choice
// is explicit here rather than merged.
const (
	// ModeNoDiscard keeps every resolved code monitored for the whole
	// session.
	ModeNoDiscard Mode = "no-discard"

	// ModeStrictDiscard prunes a code after N consecutive ticks in
	// which it has opened but fails the basic gap test.
	ModeStrictDiscard Mode = "strict-discard"
)

// DefaultDiscardAfter is the consecutive-failure threshold for
// ModeStrictDiscard.
const DefaultDiscardAfter = 3

// Notification is a request emitted at most once per code per day when
// a symbol enters the firing pool. The sink owns formatting, delivery
// and retry.
type Notification struct {
	Code          string
	Name          string
	Price         float64
	GapRatio      float64
	PositionRatio float64
	VolumeLots    float64
	Amount        float64
	HasDerivative bool
}

// TickResult is the outcome of processing one quote batch.
// Firing and Fading rows always also appear in Pending.
type TickResult struct {
	Firing        []domain.ClassificationRow
	Fading        []domain.ClassificationRow
	Pending       []domain.ClassificationRow
	Discarded     []string // codes pruned from the universe this tick
	Notifications []Notification
}

// Options configures a Classifier.
type Options struct {
	// Mode selects the discard policy. Defaults to ModeNoDiscard.
	Mode Mode

	// DiscardAfter overrides the strike threshold in
	// ModeStrictDiscard. Defaults to DefaultDiscardAfter.
	DiscardAfter int

	// Gate enforces the one-notification-per-day rule. When nil no
	// notifications are emitted.
	Gate *NotificationGate

	// Logger receives per-code processing failures. Defaults to the
	// standard logrus logger.
	Logger *logrus.Entry
}

// Classifier consumes one quote batch per refresh tick and maintains
// the three-pool membership plus the discard and notify bookkeeping
// across ticks.
//
// All state belongs to exactly one classifier per session and is only
// mutated inside ProcessTick; the driver must not call ProcessTick
// concurrently.
type Classifier struct {
	universe []string // resolved order, fixed at construction
	info     map[string]domain.InstrumentInfo
	refs     map[string]domain.SessionReference

	mode         Mode
	discardAfter int
	gate         *NotificationGate
	log          *logrus.Entry

	everFired   map[string]struct{}
	retryCounts map[string]int
	discarded   map[string]struct{}

	// last known row and primary pool per code, carried forward when a
	// tick brings no quote for the code
	lastRow  map[string]domain.ClassificationRow
	lastPool map[string]domain.Pool
}

// New creates a classifier over the resolved universe. The universe
// order fixes the output ordering of every tick.
func New(universe []string, info map[string]domain.InstrumentInfo, refs map[string]domain.SessionReference, opts Options) *Classifier {
	if opts.Mode == "" {
		opts.Mode = ModeNoDiscard
	}
	if opts.DiscardAfter <= 0 {
		opts.DiscardAfter = DefaultDiscardAfter
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Classifier{
		universe:     append([]string(nil), universe...),
		info:         info,
		refs:         refs,
		mode:         opts.Mode,
		discardAfter: opts.DiscardAfter,
		gate:         opts.Gate,
		log:          opts.Logger,
		everFired:    make(map[string]struct{}),
		retryCounts:  make(map[string]int),
		discarded:    make(map[string]struct{}),
		lastRow:      make(map[string]domain.ClassificationRow),
		lastPool:     make(map[string]domain.Pool),
	}
}

// Universe returns the codes still monitored, in resolution order.
// Discarded codes stop receiving quote requests.
func (c *Classifier) Universe() []string {
	out := make([]string, 0, len(c.universe))
	for _, code := range c.universe {
		if _, gone := c.discarded[code]; !gone {
			out = append(out, code)
		}
	}
	return out
}

// DiscardedCount returns how many codes have been pruned this session.
func (c *Classifier) DiscardedCount() int {
	return len(c.discarded)
}

// ProcessTick classifies one fresh quote batch. Quote order is
// irrelevant; output rows follow universe order. A failure while
// processing one code is logged and the code keeps its last-known
// membership.
func (c *Classifier) ProcessTick(now time.Time, quotes []domain.Quote) TickResult {
	byCode := make(map[string]domain.Quote, len(quotes))
	for _, q := range quotes {
		byCode[q.Code] = q
	}

	var result TickResult
	for _, code := range c.universe {
		if _, gone := c.discarded[code]; gone {
			continue
		}

		q, ok := byCode[code]
		if !ok {
			// No update this tick: the code stays in whatever pool it
			// already occupies.
			c.carryForward(code, &result)
			continue
		}

		c.processQuote(now, code, q, &result)
	}

	return result
}

// carryForward re-emits the last known row into its last pool.
func (c *Classifier) carryForward(code string, result *TickResult) {
	row, seen := c.lastRow[code]
	if !seen {
		return
	}

	result.Pending = append(result.Pending, row)
	switch c.lastPool[code] {
	case domain.PoolFiring:
		result.Firing = append(result.Firing, row)
	case domain.PoolFading:
		result.Fading = append(result.Fading, row)
	}
}

// processQuote classifies a single code. Panics are contained so one
// bad quote cannot abort the tick.
func (c *Classifier) processQuote(now time.Time, code string, q domain.Quote, result *TickResult) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("code", code).Errorf("quote processing failed: %v", r)
			c.carryForward(code, result)
		}
	}()

	info := c.info[code]
	ref := c.refs[code]

	name := info.DisplayName
	if name == "" {
		name = code
	}

	if q.Close == 0 {
		// Not yet traded: neutral observation, retry counter untouched.
		row := domain.ClassificationRow{
			Time: now,
			Code: code,
			Name: name,
			Tags: []string{domain.TagWaiting},
		}
		c.remember(code, row, domain.PoolPending)
		result.Pending = append(result.Pending, row)
		return
	}

	// Previous close: static reference when known, otherwise derived
	// from the day change. Both zero leaves the gap unknown.
	prevClose := info.Reference
	if prevClose <= 0 {
		prevClose = q.Close - q.Change
	}

	// Previous day high falls back to the previous close when the
	// candidate table had no prev_high column.
	prevHigh := ref.PrevHigh
	if prevHigh <= 0 {
		prevHigh = prevClose
	}

	if c.mode == ModeStrictDiscard && c.prefilter(code, q, prevHigh, name, now, result) {
		return
	}

	verdict := signal.Evaluate(q, prevHigh, info.HasDerivative)

	row := domain.ClassificationRow{
		Time:          now,
		Code:          code,
		Name:          name,
		Price:         q.Close,
		PositionRatio: verdict.PositionRatio,
		Bias:          ref.Bias,
		VolumeLots:    q.VolumeLots,
		Tags:          verdict.Tags,
	}
	if prevClose > 0 {
		row.GapPct = (q.Open - prevClose) / prevClose
		row.GapKnown = true
	}

	switch {
	case verdict.Passed:
		c.everFired[code] = struct{}{}
		if c.gate != nil && c.gate.ShouldNotify(code) {
			result.Notifications = append(result.Notifications, Notification{
				Code:          code,
				Name:          name,
				Price:         q.Close,
				GapRatio:      row.GapPct,
				PositionRatio: verdict.PositionRatio,
				VolumeLots:    q.VolumeLots,
				Amount:        q.Amount,
				HasDerivative: info.HasDerivative,
			})
			c.gate.MarkSent(code)
		}
		result.Firing = append(result.Firing, row)
		c.remember(code, row, domain.PoolFiring)

	case c.hasFired(code):
		if len(row.Tags) == 0 {
			row.Tags = []string{domain.TagWeakeningWatch}
		}
		result.Fading = append(result.Fading, row)
		c.remember(code, row, domain.PoolFading)

	default:
		c.remember(code, row, domain.PoolPending)
	}

	result.Pending = append(result.Pending, row)
}

// prefilter applies the legacy strict-gap pre-stage. Returns true when
// the code is fully handled for this tick (kept pending or discarded).
func (c *Classifier) prefilter(code string, q domain.Quote, prevHigh float64, name string, now time.Time, result *TickResult) bool {
	if q.VolumeLots <= 0 {
		// Not opened yet: exempt, full evaluation handles it.
		return false
	}
	if q.Open > prevHigh*signal.GapMargin {
		return false
	}
	if q.Open <= 0 {
		// Bad or incomplete tick data: no strike, keep waiting.
		row := c.pendingOnlyRow(code, q, name, now)
		c.remember(code, row, domain.PoolPending)
		result.Pending = append(result.Pending, row)
		return true
	}

	c.retryCounts[code]++
	if c.retryCounts[code] >= c.discardAfter {
		c.discarded[code] = struct{}{}
		delete(c.retryCounts, code)
		delete(c.lastRow, code)
		delete(c.lastPool, code)
		result.Discarded = append(result.Discarded, code)
		c.log.WithFields(logrus.Fields{"code": code, "strikes": c.discardAfter}).
			Info("discarding non-gapping symbol")
		return true
	}

	row := c.pendingOnlyRow(code, q, name, now)
	c.remember(code, row, domain.PoolPending)
	result.Pending = append(result.Pending, row)
	return true
}

// pendingOnlyRow builds a bare row for codes held back by the prefilter.
func (c *Classifier) pendingOnlyRow(code string, q domain.Quote, name string, now time.Time) domain.ClassificationRow {
	return domain.ClassificationRow{
		Time:       now,
		Code:       code,
		Name:       name,
		Price:      q.Close,
		Bias:       c.refs[code].Bias,
		VolumeLots: q.VolumeLots,
	}
}

func (c *Classifier) remember(code string, row domain.ClassificationRow, pool domain.Pool) {
	c.lastRow[code] = row
	c.lastPool[code] = pool
}

func (c *Classifier) hasFired(code string) bool {
	_, ok := c.everFired[code]
	return ok
}
