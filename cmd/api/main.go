package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/app"
	"github.com/ariefcatur/go-service-orders/internal/config"
	"github.com/ariefcatur/go-service-orders/internal/confirmation"
	"github.com/ariefcatur/go-service-orders/internal/export"
	"github.com/ariefcatur/go-service-orders/internal/httpx"
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
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFile, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !orders.KnownSentinel(cfg.PaymentConfirmedStatus) {
		logger.Warn("payment confirmed status is not a known sentinel, matching is exact",
			zap.String("status", cfg.PaymentConfirmedStatus),
			zap.Strings("known", []string{orders.SentinelPaid, orders.SentinelPaymentConfirmed}),
		)
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: cfg.PostgresMaxConns}, logger.Named("postgres"))
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.RunMigrations(ctx, db, logger.Named("migrate")); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: without it the invoice lock stays process-local.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			logger.Warn("redis unavailable, invoice lock disabled", zap.Error(err))
			rdb = nil
		}
	}

	comps, err := app.Build(ctx, cfg, db, rdb, logger)
	if err != nil {
		logger.Fatal("wire", zap.Error(err))
	}

	// Confirmation side effects
	var (
		effects orders.EffectRunner
		inline  *confirmation.InlineRunner
		prod    *kafkax.Producer
	)
	switch cfg.ConfirmationDispatch {
	case config.DispatchKafka:
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentConfirmed, 1024, logger)
		prod.Start(ctx)
		effects = &confirmation.KafkaRunner{
			Producer:    prod,
			ServiceName: cfg.ServiceName,
			Sentinel:    cfg.PaymentConfirmedStatus,
			Logger:      logger,
		}
	default:
		inline = &confirmation.InlineRunner{
			Orchestrator: comps.Orchestrator,
			Timeout:      cfg.ConfirmationTimeout,
			Logger:       logger,
		}
		effects = inline
	}

	svc := &orders.Service{
		Repo:             comps.Repo,
		Customers:        &orders.CustomerResolver{Store: comps.Repo},
		Allocator:        app.NewAllocator(cfg, comps.Repo),
		Sentinel:         cfg.PaymentConfirmedStatus,
		Effects:          effects,
		Invoices:         comps.Invoices,
		RegenerateOnEdit: cfg.InvoiceRegenerateOnEdit,
		Logger:           logger.Named("orders"),
	}

	// HTTP
	validate := validator.New()
	router := httpx.NewRouter(logger.Named("http"))
	(&httpx.OrdersHandler{Service: svc, Validate: validate, Logger: logger}).Register(router)
	(&httpx.InvoiceHandler{
		Orders:   svc,
		Invoices: comps.Invoices,
		Notifier: comps.Notifier,
		Audit:    comps.Audit,
		Logger:   logger,
	}).Register(router)
	(&httpx.ExportHandler{
		Exporter: &export.Exporter{Repo: comps.Repo, Location: cfg.ExportLocation(), Logger: logger.Named("export")},
		Logger:   logger,
	}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("order_id_strategy", cfg.OrderIDStrategy),
			zap.String("confirmation_dispatch", cfg.ConfirmationDispatch),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if inline != nil {
		inline.Wait()
	}
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}
