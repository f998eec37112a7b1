// Command gapfilter runs one snapshot round over the candidate list and
// prints the codes that opened above the gap threshold. Intended for a
// quick screen right after the open.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gap-monitor/internal/candidates"
	"gap-monitor/internal/config"
	"gap-monitor/internal/domain"
	"gap-monitor/internal/logging"
	"gap-monitor/internal/market"
	"gap-monitor/internal/storage/migrations"
	pgstore "gap-monitor/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	threshold := flag.Float64("threshold", 0.01, "Minimum open gap ratio")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		logrus.Fatalf("init logging: %v", err)
	}
	log := logger.WithField("component", "gapfilter")

	if cfg.Feed.URL == "" {
		log.Fatal("feed.url is required (or set GAPMON_FEED_URL)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rows, err := loadCandidates(ctx, cfg)
	if err != nil {
		log.Fatalf("load candidates: %v", err)
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

	resolver := market.NewResolver(market.NewStaticDirectory(contracts), market.ResolverOptions{Logger: log})
	resolution := resolver.Resolve(candidates.Codes(rows))

	fetcher := market.NewFetcher(source, market.DefaultFetchConfig(), log)
	quotes := fetcher.Fetch(ctx, resolution.Handles)

	var gappers int
	for _, q := range quotes {
		info := resolution.Info[q.Code]
		if info.Reference <= 0 || q.Open <= 0 {
			continue
		}
		gap := (q.Open - info.Reference) / info.Reference
		if gap >= *threshold {
			gappers++
			fmt.Printf("%s %s open=%.2f ref=%.2f gap=+%.2f%%\n",
				q.Code, info.DisplayName, q.Open, info.Reference, gap*100)
		}
	}

	log.WithFields(logrus.Fields{
		"candidates": len(rows),
		"quotes":     len(quotes),
		"gappers":    gappers,
	}).Info("gap screen complete")
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
