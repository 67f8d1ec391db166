package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/makerbot/config"
	"github.com/joripage/makerbot/pkg/infra"
	"github.com/joripage/makerbot/pkg/journal"
	"github.com/joripage/makerbot/pkg/journal/repo"
	"github.com/joripage/makerbot/pkg/journal/worker"
	kafkawrapper "github.com/joripage/makerbot/pkg/kafka_wrapper"
	"github.com/joripage/makerbot/pkg/logging"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	var configFile, source string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", "nats", "Event source: nats or kafka")
	flag.Parse()

	logger := logging.NewLogger(logging.INFO)
	zap.ReplaceGlobals(logger.Zap())

	cfg, err := config.Load(configFile, "")
	if err != nil {
		zap.S().Fatalf("load config: %v", err)
	}
	if cfg.JournalDB == nil {
		zap.S().Fatal("journal_db section is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.GetMigrateTool().ConnectAndMigrate(cfg.JournalDB, infra.DefaultMigrationSource)
	if err != nil {
		zap.S().Fatalf("init db fail with err: %v", err)
	}
	w := worker.NewWorker(repo.NewRepo(db))

	switch source {
	case "nats":
		err = consumeNATS(ctx, w, cfg.NATS)
	case "kafka":
		err = consumeKafka(ctx, w, cfg.Kafka)
	default:
		zap.S().Fatalf("unknown source %q", source)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		zap.S().Errorf("worker stopped: %v", err)
		os.Exit(1)
	}
	zap.S().Info("worker exited cleanly")
}

func consumeNATS(ctx context.Context, w *worker.Worker, cfg *config.NATSConfig) error {
	if cfg == nil {
		return &config.ConfigError{Key: "nats", Err: errors.New("section is required")}
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("makerbot-worker"))
	if err != nil {
		return err
	}
	defer nc.Drain() // nolint

	js, err := nc.JetStream()
	if err != nil {
		return err
	}
	if err := journal.EnsureStream(js, cfg.Stream, cfg.Subject); err != nil {
		return err
	}
	zap.S().Infof("consuming %s as %s", cfg.Subject, cfg.Durable)
	return w.StartConsumer(ctx, js, cfg.Subject, cfg.Durable)
}

func consumeKafka(ctx context.Context, w *worker.Worker, cfg *config.KafkaConfig) error {
	if cfg == nil {
		return &config.ConfigError{Key: "kafka", Err: errors.New("section is required")}
	}
	cg, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers:   cfg.Brokers,
		GroupID:   cfg.GroupID,
		Topic:     cfg.Topic,
		BatchSize: cfg.BatchSize,
		DLQTopic:  cfg.Topic + ".dlq",
	})
	if err != nil {
		return err
	}
	defer cg.Close() // nolint

	zap.S().Infof("consuming %s in group %s", cfg.Topic, cfg.GroupID)
	return cg.Run(ctx, w.HandleKafkaBatch)
}
