package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"solana-batch-trader/internal/config"
	"solana-batch-trader/internal/feed"
	"solana-batch-trader/internal/publish"
	"solana-batch-trader/internal/storage"
	chstore "solana-batch-trader/internal/storage/clickhouse"
	"solana-batch-trader/internal/storage/memory"
	"solana-batch-trader/internal/storage/migrations"
	pgstore "solana-batch-trader/internal/storage/postgres"
)

// sinkSet holds the configured trade log sinks and the run store.
type sinkSet struct {
	feedSinks []feed.Sink
	runs      storage.RunStore
}

// openSinks connects the configured stores. Postgres backs the trade log and
// run summaries when set, otherwise both stay in memory. ClickHouse and Redis
// are added only when configured.
func openSinks(ctx context.Context, cfg config.Storage, logger zerolog.Logger) (*sinkSet, func(), error) {
	set := &sinkSet{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, func() {}, err
		}
		closers = append(closers, pool.Close)

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info().Strs("migrations", applied).Msg("postgres ready")

		set.feedSinks = append(set.feedSinks, storage.NewTradeLogSink("postgres", pgstore.NewTradeLogStore(pool)))
		set.runs = pgstore.NewRunStore(pool)
	} else {
		set.feedSinks = append(set.feedSinks, storage.NewTradeLogSink("memory", memory.NewTradeLogStore()))
		set.runs = memory.NewRunStore()
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		logger.Info().Msg("clickhouse ready")

		set.feedSinks = append(set.feedSinks, storage.NewVolumeSink("clickhouse", chstore.NewVolumeStore(conn)))
	}

	if cfg.RedisURL != "" {
		client, err := publish.NewClient(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, func() { client.Close() })

		set.feedSinks = append(set.feedSinks, publish.NewStreamPublisher(client, publish.Options{Stream: cfg.RedisStream}))
	}

	return set, cleanup, nil
}
