package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradefeed/internal/application"
	"tradefeed/internal/config"
	"tradefeed/internal/infrastructure/farcaster"
	"tradefeed/internal/infrastructure/goldrush"
	"tradefeed/internal/infrastructure/kafka"
	"tradefeed/internal/infrastructure/logging"
	"tradefeed/internal/infrastructure/mysql"
	"tradefeed/internal/infrastructure/sqlite"
	"tradefeed/internal/infrastructure/telemetry"
	"tradefeed/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// identityStore is what main needs from either store backend.
type identityStore interface {
	application.IdentityStore
	httpapi.StorePinger
	Close() error
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logWriter, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}
	defer func() { _ = logWriter.Close() }()
	logger := slog.Default()

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "tradefeed", cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("tracing init failed", "error", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				logger.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer func() { _ = store.Close() }()

	chainClient, err := goldrush.NewClient(goldrush.Config{
		BaseURL:  cfg.GoldRushBaseURL,
		APIKey:   cfg.GoldRushAPIKey,
		PageSize: cfg.TxPageSize,
	})
	if err != nil {
		log.Fatalf("chain data client error: %v", err)
	}

	graphClient, err := farcaster.NewClient(farcaster.Config{
		BaseURL:  cfg.NeynarBaseURL,
		APIKey:   cfg.NeynarAPIKey,
		PageSize: cfg.FollowPageSize,
	})
	if err != nil {
		log.Fatalf("social graph client error: %v", err)
	}

	classifier := application.NewClassifier(cfg.MinUSDValue, cfg.MinGasQuote)
	fetcher, err := application.NewClassifyingFetcher(chainClient, classifier, logger)
	if err != nil {
		log.Fatalf("fetcher error: %v", err)
	}

	var publisher application.TradePublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			log.Fatalf("kafka producer error: %v", err)
		}
		defer func() { _ = producer.Close() }()
		publisher = producer
		logger.Info("trade firehose enabled", "brokers", cfg.KafkaBrokers, "topic_prefix", cfg.KafkaTopicPrefix)
	}

	metrics := httpapi.NewMetrics()
	aggregator, err := application.NewAggregator(
		fetcher,
		graphClient,
		store,
		application.NewTokenBucket(cfg.ProviderRate, cfg.ProviderBurst),
		publisher,
		metrics,
		logger,
		application.AggregatorConfig{
			Chains:         cfg.Chains,
			FollowPageSize: cfg.FollowPageSize,
		},
	)
	if err != nil {
		log.Fatalf("aggregator error: %v", err)
	}

	syncer, err := application.NewFollowSync(graphClient, store, logger)
	if err != nil {
		log.Fatalf("follow sync error: %v", err)
	}

	httpServer, err := httpapi.NewServer(cfg, aggregator, syncer, store, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		log.Fatalf("http server error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("http server listening", "addr", cfg.HTTPAddr, "chains", cfg.Chains)
	if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("http server error: %v", err)
	}
}

// openStore picks the store backend: SQLite when SQLITE_PATH is set (single
// node, zero setup), otherwise MySQL fronted by the Redis owner cache.
func openStore(cfg config.Config, logger *slog.Logger) (identityStore, error) {
	if cfg.SQLitePath != "" {
		logger.Info("using sqlite store", "path", cfg.SQLitePath)
		return sqlite.NewRepository(cfg.SQLitePath)
	}

	baseRepo, err := mysql.NewRepository(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	cachedRepo, err := mysql.NewCachedRepository(baseRepo, mysql.CacheConfig{
		Addr: cfg.RedisAddr,
		TTL:  cfg.CacheTTL,
	})
	if err != nil {
		logger.Warn("redis cache disabled", "error", err)
		return baseRepo, nil
	}
	return cachedRepo, nil
}
