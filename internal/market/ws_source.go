package market

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gap-monitor/internal/domain"
)

// WSConfig configures the websocket quote source.
type WSConfig struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// DefaultWSConfig returns default websocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// wire message shapes for the feed protocol.
type wsRequest struct {
	ID      uint64   `json:"id"`
	Op      string   `json:"op"`
	Symbols []string `json:"symbols,omitempty"`
}

type wsResponse struct {
	ID        uint64         `json:"id"`
	Error     string         `json:"error,omitempty"`
	Quotes    []wireQuote    `json:"quotes,omitempty"`
	Contracts []wireContract `json:"contracts,omitempty"`
}

// wireQuote is the feed's snapshot record. It is adapted into
// domain.Quote here, at the boundary, and nowhere else.
type wireQuote struct {
	Code        string  `json:"code"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	TotalVolume float64 `json:"total_volume"`
	TotalAmount float64 `json:"total_amount"`
	ChangePrice float64 `json:"change_price"`
	TS          int64   `json:"ts"` // Unix nanoseconds
}

type wireContract struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Exchange  string  `json:"exchange"`
	Reference float64 `json:"reference"`
}

// WSQuoteSource implements QuoteSource over a websocket feed that
// answers batched snapshot and contract-listing requests.
//
// Requests are serialized on the single connection: concurrent callers
// (the fetcher's workers) queue on the connection mutex.
type WSQuoteSource struct {
	endpoint string
	cfg      WSConfig

	connMu    sync.Mutex
	conn      *websocket.Conn
	requestID atomic.Uint64
}

// NewWSQuoteSource dials the feed endpoint.
func NewWSQuoteSource(ctx context.Context, endpoint string, config *WSConfig) (*WSQuoteSource, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	return &WSQuoteSource{endpoint: endpoint, cfg: cfg, conn: conn}, nil
}

// Snapshots implements QuoteSource.
func (s *WSQuoteSource) Snapshots(ctx context.Context, handles []domain.InstrumentHandle) ([]domain.Quote, error) {
	symbols := make([]string, len(handles))
	for i, h := range handles {
		symbols[i] = h.Symbol
	}

	resp, err := s.roundTrip(ctx, wsRequest{Op: "snapshots", Symbols: symbols})
	if err != nil {
		return nil, err
	}

	quotes := make([]domain.Quote, 0, len(resp.Quotes))
	for _, w := range resp.Quotes {
		quotes = append(quotes, domain.Quote{
			Code:       w.Code,
			Open:       w.Open,
			High:       w.High,
			Low:        w.Low,
			Close:      w.Close,
			VolumeLots: w.TotalVolume,
			Amount:     w.TotalAmount,
			Change:     w.ChangePrice,
			Timestamp:  time.Unix(0, w.TS),
		})
	}
	return quotes, nil
}

// Contracts downloads the full contract listing for building a
// StaticDirectory at session start.
func (s *WSQuoteSource) Contracts(ctx context.Context) ([]Contract, error) {
	resp, err := s.roundTrip(ctx, wsRequest{Op: "contracts"})
	if err != nil {
		return nil, err
	}

	contracts := make([]Contract, 0, len(resp.Contracts))
	for _, w := range resp.Contracts {
		contracts = append(contracts, Contract{
			Code:      w.Code,
			Name:      w.Name,
			Venue:     domain.Venue(w.Exchange),
			Reference: w.Reference,
		})
	}
	return contracts, nil
}

// Close shuts the connection down.
func (s *WSQuoteSource) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn.Close()
}

// roundTrip sends one request and reads frames until the matching
// response arrives.
func (s *WSQuoteSource) roundTrip(ctx context.Context, req wsRequest) (*wsResponse, error) {
	req.ID = s.requestID.Add(1)

	s.connMu.Lock()
	defer s.connMu.Unlock()

	deadline := time.Now().Add(s.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	readDeadline := time.Now().Add(s.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(readDeadline) {
		readDeadline = d
	}
	if err := s.conn.SetReadDeadline(readDeadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	for {
		var resp wsResponse
		if err := s.conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.ID != req.ID {
			// Stale frame from an abandoned request; skip it.
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("feed error: %s", resp.Error)
		}
		return &resp, nil
	}
}
