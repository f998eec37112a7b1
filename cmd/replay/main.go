// Command replay drives recorded 1-minute bars through the session
// classifier after hours, reproducing the intraday pool transitions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gap-monitor/internal/candidates"
	"gap-monitor/internal/classify"
	"gap-monitor/internal/config"
	"gap-monitor/internal/domain"
	"gap-monitor/internal/logging"
	"gap-monitor/internal/replay"
	chstore "gap-monitor/internal/storage/clickhouse"
	"gap-monitor/internal/storage/migrations"
	pgstore "gap-monitor/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	fromTime := flag.String("from-time", "", "Start time (RFC3339, required)")
	toTime := flag.String("to-time", "", "End time (RFC3339, required)")
	interval := flag.Duration("interval", 0, "Pause between ticks (0 replays at full speed)")
	outputJSON := flag.Bool("json", false, "Output summary as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		logrus.Fatalf("init logging: %v", err)
	}
	log := logger.WithField("component", "replay")

	if *fromTime == "" || *toTime == "" {
		log.Fatal("--from-time and --to-time are required")
	}
	from, err := time.Parse(time.RFC3339, *fromTime)
	if err != nil {
		log.Fatalf("parse from-time: %v", err)
	}
	to, err := time.Parse(time.RFC3339, *toTime)
	if err != nil {
		log.Fatalf("parse to-time: %v", err)
	}

	if cfg.Storage.ClickhouseDSN == "" {
		log.Fatal("storage.clickhouseDSN is required (or set GAPMON_CLICKHOUSE_DSN)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, stopping replay", sig)
		cancel()
	}()

	rows, err := loadCandidates(ctx, cfg)
	if err != nil {
		log.Fatalf("load candidates: %v", err)
	}
	if len(rows) == 0 {
		log.Fatal("candidate table is empty")
	}

	conn, err := migrations.EnsureClickhouse(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		log.Fatalf("connect clickhouse: %v", err)
	}
	defer conn.Close()

	universe := candidates.Codes(rows)
	info := make(map[string]domain.InstrumentInfo, len(universe))
	for _, code := range universe {
		info[code] = domain.InstrumentInfo{Code: code, DisplayName: code}
	}

	classifier := classify.New(universe, info, candidates.References(rows), classify.Options{
		Mode:         classify.Mode(cfg.Monitor.Mode),
		DiscardAfter: cfg.Monitor.DiscardAfter,
		Gate:         classify.NewNotificationGate(nil),
		Logger:       logger.WithField("component", "classifier"),
	})

	engine := newClassifyEngine(classifier, log)

	runner := replay.NewRunner(chstore.NewBarStore(conn), nil, log)
	runner.Interval = *interval

	if err := runner.Run(ctx, from.UnixMilli(), to.UnixMilli(), engine); err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	stats := engine.stats
	if *outputJSON {
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Printf("\n=== Replay Summary ===\n")
	fmt.Printf("Ticks:         %d\n", stats.Ticks)
	fmt.Printf("Fired codes:   %v\n", stats.FiredCodes)
	fmt.Printf("Discarded:     %v\n", stats.Discarded)
	fmt.Printf("Notifications: %d\n", stats.Notifications)
}

// replayStats summarizes one replay pass.
type replayStats struct {
	Ticks         int      `json:"ticks"`
	FiredCodes    []string `json:"fired_codes"`
	Discarded     []string `json:"discarded"`
	Notifications int      `json:"notifications"`
}

// classifyEngine feeds reconstructed ticks into the classifier and
// accumulates summary statistics.
type classifyEngine struct {
	classifier *classify.Classifier
	log        *logrus.Entry

	fired map[string]struct{}
	stats replayStats
}

func newClassifyEngine(classifier *classify.Classifier, log *logrus.Entry) *classifyEngine {
	return &classifyEngine{
		classifier: classifier,
		log:        log,
		fired:      make(map[string]struct{}),
	}
}

// OnTick implements replay.Engine.
func (e *classifyEngine) OnTick(_ context.Context, tick replay.Tick) error {
	result := e.classifier.ProcessTick(tick.Time, tick.Quotes)

	e.stats.Ticks++
	e.stats.Notifications += len(result.Notifications)
	e.stats.Discarded = append(e.stats.Discarded, result.Discarded...)
	for _, row := range result.Firing {
		if _, seen := e.fired[row.Code]; !seen {
			e.fired[row.Code] = struct{}{}
			e.stats.FiredCodes = append(e.stats.FiredCodes, row.Code)
		}
	}

	e.log.WithFields(logrus.Fields{
		"time":    tick.Time.Format("15:04"),
		"firing":  len(result.Firing),
		"fading":  len(result.Fading),
		"pending": len(result.Pending),
	}).Debug("replay tick")

	return nil
}

func loadCandidates(ctx context.Context, cfg *config.Config) ([]*domain.CandidateRow, error) {
	if cfg.Candidates.Source == "postgres" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		if err := migrations.EnsurePostgres(ctx, pool); err != nil {
			return nil, err
		}
		return candidates.LoadStore(ctx, pgstore.NewCandidateStore(pool), cfg.Candidates.Date)
	}
	return candidates.LoadCSV(cfg.Candidates.CSVPath)
}
