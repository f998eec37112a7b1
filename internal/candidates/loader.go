// Package candidates loads the nightly selection job's output, either
// from a CSV export or from the candidate store.
package candidates

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gap-monitor/internal/domain"
	"gap-monitor/internal/storage"
)

// LoadCSV reads candidate rows from a CSV export with a header line.
// Required column: stock_code. Optional columns: bias, prev_high,
// strategy_tag, data_date.
func LoadCSV(path string) ([]*domain.CandidateRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candidate csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read candidate csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("candidate csv %s: %w", path, storage.ErrInvalidInput)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := cols["stock_code"]; !ok {
		return nil, fmt.Errorf("candidate csv %s missing stock_code column: %w", path, storage.ErrInvalidInput)
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []*domain.CandidateRow
	for n, record := range records[1:] {
		code := field(record, "stock_code")
		if code == "" {
			continue
		}

		row := &domain.CandidateRow{
			StockCode:   code,
			Bias:        field(record, "bias"),
			StrategyTag: field(record, "strategy_tag"),
			DataDate:    field(record, "data_date"),
		}

		if raw := field(record, "prev_high"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("candidate csv %s line %d: bad prev_high %q: %w", path, n+2, raw, err)
			}
			row.PrevHigh = v
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// LoadStore reads candidate rows for a date from the store. An empty
// date loads the most recent day present.
func LoadStore(ctx context.Context, store storage.CandidateStore, date string) ([]*domain.CandidateRow, error) {
	if date == "" {
		latest, err := store.LatestDate(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve latest candidate date: %w", err)
		}
		date = latest
	}

	rows, err := store.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load candidates for %s: %w", date, err)
	}
	return rows, nil
}

// WarnIfStale logs a warning when the candidate table was produced for
// a day other than today. A stale table still runs; the operator
// decides whether yesterday's working set is acceptable.
func WarnIfStale(rows []*domain.CandidateRow, today time.Time, log *logrus.Entry) bool {
	if len(rows) == 0 || log == nil {
		return false
	}

	want := today.Format("2006-01-02")
	stale := false
	for _, r := range rows {
		if r.DataDate != "" && r.DataDate != want {
			stale = true
			log.WithFields(logrus.Fields{
				"data_date": r.DataDate,
				"today":     want,
			}).Warn("candidate table is stale")
			break
		}
	}
	return stale
}

// Codes returns the unique stock codes in first-seen order.
func Codes(rows []*domain.CandidateRow) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.StockCode]; dup {
			continue
		}
		seen[r.StockCode] = struct{}{}
		out = append(out, r.StockCode)
	}
	return out
}

// References builds the per-code session reference map consumed by the
// classifier.
func References(rows []*domain.CandidateRow) map[string]domain.SessionReference {
	refs := make(map[string]domain.SessionReference, len(rows))
	for _, r := range rows {
		refs[r.StockCode] = domain.SessionReference{
			PrevHigh:    r.PrevHigh,
			Bias:        r.Bias,
			StrategyTag: r.StrategyTag,
		}
	}
	return refs
}
