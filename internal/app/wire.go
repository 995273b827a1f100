// Package app assembles the components shared by the api and notifier binaries.
package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/audit"
	"github.com/ariefcatur/go-service-orders/internal/config"
	"github.com/ariefcatur/go-service-orders/internal/confirmation"
	"github.com/ariefcatur/go-service-orders/internal/invoice"
	"github.com/ariefcatur/go-service-orders/internal/notify"
	"github.com/ariefcatur/go-service-orders/internal/orders"
	"github.com/ariefcatur/go-service-orders/internal/redisx"
)

// Components are the pieces both binaries share.
type Components struct {
	Repo         *orders.Repo
	Audit        *audit.Log
	Invoices     *invoice.Generator
	Notifier     *notify.Dispatcher
	Orchestrator *confirmation.Orchestrator
}

func Build(ctx context.Context, cfg config.Config, db *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) (*Components, error) {
	repo := &orders.Repo{DB: db}
	rec := &audit.Log{DB: db, Logger: logger.Named("audit")}

	gen := &invoice.Generator{
		Dir:           cfg.InvoiceDir,
		Renderer:      invoice.PDFRenderer{Brand: cfg.BrandName},
		Audit:         rec,
		Sentinel:      cfg.PaymentConfirmedStatus,
		RenderTimeout: cfg.InvoiceRenderTimeout,
		Logger:        logger.Named("invoice"),
	}
	if rdb != nil && cfg.InvoiceLockTTL > 0 {
		gen.Locker = &redisx.Locker{Client: rdb, TTL: cfg.InvoiceLockTTL, Logger: logger}
	}

	transport, err := NewTransport(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	disp := &notify.Dispatcher{
		Transport:   transport,
		From:        cfg.EmailFrom,
		OpsAddress:  cfg.EmailOpsAddress,
		BaseURL:     cfg.PublicBaseURL,
		Brand:       cfg.BrandName,
		Mode:        notify.Mode(cfg.EmailMode),
		SendTimeout: cfg.EmailSendTimeout,
		Audit:       rec,
		Logger:      logger.Named("notify"),
	}

	return &Components{
		Repo:     repo,
		Audit:    rec,
		Invoices: gen,
		Notifier: disp,
		Orchestrator: &confirmation.Orchestrator{
			Orders:   repo,
			Invoices: gen,
			Notifier: disp,
			Logger:   logger.Named("confirmation"),
		},
	}, nil
}

func NewTransport(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Transport, error) {
	switch cfg.EmailTransport {
	case config.TransportSES:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		return notify.NewSESTransport(awsCfg), nil
	case config.TransportSMTP:
		return notify.NewSMTPTransport(notify.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			RequireTLS: cfg.SMTPRequireTLS,
		})
	default:
		return &notify.LogTransport{Logger: logger.Named("mail")}, nil
	}
}

// NewAllocator picks the order id strategy. Exactly one is active per deployment.
func NewAllocator(cfg config.Config, repo *orders.Repo) orders.IDAllocator {
	switch cfg.OrderIDStrategy {
	case config.StrategyOpaque:
		return orders.OpaqueAllocator{}
	case config.StrategySequential:
		return &orders.SequentialAllocator{Repo: repo, Prefix: cfg.OrderIDPrefix, Seed: cfg.OrderIDSeed}
	default:
		return &orders.CounterAllocator{Counters: repo, Prefix: cfg.OrderIDPrefix, Seed: cfg.OrderIDSeed}
	}
}
