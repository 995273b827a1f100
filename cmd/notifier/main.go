package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/app"
	"github.com/ariefcatur/go-service-orders/internal/config"
	"github.com/ariefcatur/go-service-orders/internal/confirmation"
	kafkax "github.com/ariefcatur/go-service-orders/internal/kafka"
	"github.com/ariefcatur/go-service-orders/internal/observability"
	"github.com/ariefcatur/go-service-orders/internal/orders"
	"github.com/ariefcatur/go-service-orders/internal/postgres"
	"github.com/ariefcatur/go-service-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFile, cfg.ServiceName+"-notifier")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: cfg.PostgresMaxConns}, logger.Named("postgres"))
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer db.Close()

	// Redis carries both the event dedup and the invoice lock.
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Fatal("redis", zap.Error(err))
	}

	comps, err := app.Build(ctx, cfg, db, rdb, logger)
	if err != nil {
		logger.Fatal("wire", zap.Error(err))
	}

	consumer := &confirmation.Consumer{
		Orchestrator: comps.Orchestrator,
		Dedup:        &redisx.Dedup{Client: rdb, Service: "notifier"},
		Logger:       logger.Named("consumer"),
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicPaymentConfirmed, cfg.NotifierWorkers, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("notifier consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.String("topic", orders.TopicPaymentConfirmed),
			zap.Int("workers", cfg.NotifierWorkers),
		)
		if err := cons.Start(ctx, consumer.HandleMessage); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done
}
