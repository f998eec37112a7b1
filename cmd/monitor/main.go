package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"gap-monitor/internal/candidates"
	"gap-monitor/internal/classify"
	"gap-monitor/internal/config"
	"gap-monitor/internal/domain"
	"gap-monitor/internal/logging"
	"gap-monitor/internal/market"
	"gap-monitor/internal/monitor"
	"gap-monitor/internal/notify"
	"gap-monitor/internal/observability"
	"gap-monitor/internal/record"
	chstore "gap-monitor/internal/storage/clickhouse"
	"gap-monitor/internal/storage/migrations"
	pgstore "gap-monitor/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	csvPath := flag.String("candidates", "", "Override candidate CSV path")
	mode := flag.String("mode", "", "Override discard mode (no-discard | strict-discard)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if *csvPath != "" {
		cfg.Candidates.Source = "csv"
		cfg.Candidates.CSVPath = *csvPath
	}
	if *mode != "" {
		cfg.Monitor.Mode = *mode
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		logrus.Fatalf("init logging: %v", err)
	}
	log := logger.WithField("component", "monitor")

	if cfg.Feed.URL == "" {
		log.Fatal("feed.url is required (or set GAPMON_FEED_URL)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("received signal %v, shutting down", sig)
		cancel()
	}()

	rows, err := loadCandidates(ctx, cfg)
	if err != nil {
		log.Fatalf("load candidates: %v", err)
	}
	if len(rows) == 0 {
		log.Fatal("candidate table is empty")
	}
	candidates.WarnIfStale(rows, time.Now(), log)

	source, err := market.NewWSQuoteSource(ctx, cfg.Feed.URL, nil)
	if err != nil {
		log.Fatalf("connect quote feed: %v", err)
	}
	defer source.Close()

	contracts, err := source.Contracts(ctx)
	if err != nil {
		log.Fatalf("download contracts: %v", err)
	}
	directory := market.NewStaticDirectory(contracts)

	resolver := market.NewResolver(directory, market.ResolverOptions{
		Logger: logger.WithField("component", "resolver"),
	})
	resolution := resolver.Resolve(candidates.Codes(rows))
	log.WithFields(logrus.Fields{
		"requested": resolution.Requested,
		"resolved":  resolution.Resolved(),
	}).Info("universe resolved")
	if resolution.Resolved() == 0 {
		log.Fatal("no candidate resolved at either venue")
	}

	universe := make([]string, 0, resolution.Resolved())
	handles := make(map[string]domain.InstrumentHandle, resolution.Resolved())
	for _, h := range resolution.Handles {
		universe = append(universe, h.Code)
		handles[h.Code] = h
	}

	classifier := classify.New(universe, resolution.Info, candidates.References(rows), classify.Options{
		Mode:         classify.Mode(cfg.Monitor.Mode),
		DiscardAfter: cfg.Monitor.DiscardAfter,
		Gate:         classify.NewNotificationGate(nil),
		Logger:       logger.WithField("component", "classifier"),
	})

	fetcher := market.NewFetcher(source, market.FetchConfig{
		BatchSize:      cfg.Fetch.BatchSize,
		Concurrency:    cfg.Fetch.Concurrency,
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		AttemptTimeout: time.Duration(cfg.Fetch.AttemptTimeoutSeconds) * time.Second,
		RetryBackoff:   time.Duration(cfg.Fetch.RetryBackoffMs) * time.Millisecond,
	}, logger.WithField("component", "fetcher"))

	var sinks []notify.Sink
	if cfg.Notify.Enabled {
		sinks = append(sinks, notify.NewLineSink(cfg.Notify.LineToken, cfg.Notify.LineTo))
	} else {
		sinks = append(sinks, notify.NewLogSink(logger.WithField("component", "notify")))
	}

	var recorder *record.Recorder
	if cfg.Monitor.RecordBars {
		conn, err := migrations.EnsureClickhouse(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			log.Fatalf("connect clickhouse: %v", err)
		}
		defer conn.Close()
		recorder = record.New(chstore.NewBarStore(conn), logger.WithField("component", "record"))
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Errorf("metrics endpoint: %v", err)
			}
		}()
		log.WithField("addr", cfg.Metrics.Addr).Info("metrics endpoint up")
	}

	opts := monitor.Options{
		Fetcher:       fetcher,
		Classifier:    classifier,
		Handles:       handles,
		Sinks:         sinks,
		EscalateAfter: cfg.Monitor.EscalateAfter,
		Logger:        log,
	}
	if recorder != nil {
		opts.Recorder = recorder
	}
	session := monitor.New(opts)

	scheduler := gocron.NewScheduler(time.Local)
	_, err = scheduler.Every(cfg.Monitor.IntervalSeconds).Seconds().Do(func() {
		session.Tick(ctx, time.Now())
	})
	if err != nil {
		log.Fatalf("schedule tick: %v", err)
	}
	scheduler.StartAsync()
	log.WithField("interval_s", cfg.Monitor.IntervalSeconds).Info("monitor started")

	<-ctx.Done()
	scheduler.Stop()
	if recorder != nil {
		if err := recorder.Flush(context.Background()); err != nil {
			log.Errorf("flush minute bars on shutdown: %v", err)
		}
	}
	log.Info("monitor stopped")
}

// loadCandidates reads the daily working set from the configured source.
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
