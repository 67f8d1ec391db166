package main

import (
	"context"
	"errors"
	"time"

	"github.com/joripage/makerbot/config"
	"github.com/joripage/makerbot/pkg/bot"
	postgres_wrapper "github.com/joripage/makerbot/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/makerbot/pkg/infra/redis"
	"github.com/joripage/makerbot/pkg/journal"
	eventstore "github.com/joripage/makerbot/pkg/journal/event_store"
	"github.com/joripage/makerbot/pkg/journal/repo"
	kafkawrapper "github.com/joripage/makerbot/pkg/kafka_wrapper"
	"github.com/joripage/makerbot/pkg/logging"
	"github.com/joripage/makerbot/pkg/metrics"
	"github.com/joripage/makerbot/pkg/statestore"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// wire builds the optional journal sinks, status store and metrics server
// from the config sections that are present.
func wire(ctx context.Context, cfg *config.AppConfig, market string) ([]bot.Option, func(), error) {
	logger := logging.GetLogger(ctx)
	var (
		sinks   []journal.Sink
		closers []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn(ctx, "close failed", zap.Error(err))
			}
		}
	}
	fail := func(err error) ([]bot.Option, func(), error) {
		closeAll()
		return nil, func() {}, err
	}

	if cfg.JournalDB != nil {
		db, err := postgres_wrapper.InitPostgresWithBackoff(cfg.JournalDB)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, journal.NewRepoSink(repo.NewRepo(db).ActionEvent()))
	}

	if cfg.Kafka != nil {
		if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "" {
			return fail(&config.ConfigError{Key: "kafka", Err: errors.New("brokers and topic are required")})
		}
		producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: time.Duration(cfg.Kafka.FlushIntervalMs) * time.Millisecond,
		})
		sinks = append(sinks, journal.NewKafkaSink(producer, cfg.Kafka.Topic))
	}

	if cfg.NATS != nil {
		url := cfg.NATS.URL
		if url == "" {
			url = nats.DefaultURL
		}
		nc, err := nats.Connect(url, nats.Name("makerbot-"+market))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, nc.Drain)
		js, err := nc.JetStream()
		if err != nil {
			return fail(err)
		}
		if err := journal.EnsureStream(js, cfg.NATS.Stream, cfg.NATS.Subject); err != nil {
			return fail(err)
		}
		sinks = append(sinks, journal.NewNATSSink(js, cfg.NATS.Subject))
	}

	j := journal.New(eventstore.NewInMemoryEventStore(), sinks...)
	closers = append(closers, j.Close)
	opts := []bot.Option{bot.WithJournal(j)}

	if cfg.Redis != nil {
		client, err := redis_wrapper.InitRedis(ctx, cfg.Redis)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, client.Close)
		ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
		opts = append(opts, bot.WithStateStore(statestore.NewRedisStore(client, cfg.Redis.KeyPrefix, ttl)))
	}

	m := metrics.New(market)
	opts = append(opts, bot.WithMetrics(m))
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error(ctx, "metrics server stopped", zap.Error(err))
			}
		}()
	}

	return opts, closeAll, nil
}
