package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "init_customers_and_packages",
		SQL: `
CREATE TABLE IF NOT EXISTS customers (
    id           UUID PRIMARY KEY,
    full_name    TEXT NOT NULL DEFAULT '',
    email        TEXT NOT NULL DEFAULT '',
    phone        TEXT NOT NULL,
    country_code TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT customers_phone_country_key UNIQUE (phone, country_code)
);

CREATE TABLE IF NOT EXISTS packages (
    id            UUID PRIMARY KEY,
    title         TEXT,
    type          TEXT,
    position      TEXT,
    currency_code TEXT
);
`,
	},
	{
		Version: 2,
		Name:    "init_orders",
		SQL: `
CREATE TABLE IF NOT EXISTS orders (
    id                    UUID PRIMARY KEY,
    order_id              TEXT NOT NULL,
    customer_id           UUID REFERENCES customers(id),
    customer_full_name    TEXT NOT NULL DEFAULT '',
    customer_email        TEXT NOT NULL DEFAULT '',
    customer_phone        TEXT NOT NULL DEFAULT '',
    customer_country_code TEXT NOT NULL DEFAULT '',
    package_id            UUID REFERENCES packages(id),
    location_address      TEXT,
    location_area         TEXT,
    location_city         TEXT,
    location_country      TEXT,
    service_date          DATE,
    service_time          TEXT NOT NULL DEFAULT '',
    hours                 INT NOT NULL DEFAULT 0,
    no_of_days            INT NOT NULL DEFAULT 0,
    no_of_nannies         INT NOT NULL DEFAULT 0,
    child_age_groups      TEXT[] NOT NULL DEFAULT '{}',
    day_of_week           TEXT[] NOT NULL DEFAULT '{}',
    assigned_staff        TEXT NOT NULL DEFAULT '',
    price                 NUMERIC(12,2) NOT NULL DEFAULT 0,
    total                 NUMERIC(12,2) NOT NULL DEFAULT 0,
    currency_code         TEXT NOT NULL DEFAULT '',
    payment_status        TEXT NOT NULL DEFAULT 'pending',
    payment_id            TEXT NOT NULL DEFAULT '',
    response_id           TEXT NOT NULL DEFAULT '',
    locale                TEXT NOT NULL DEFAULT 'en',
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT orders_order_id_key UNIQUE (order_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_customer_email ON orders(customer_email);
CREATE INDEX IF NOT EXISTS idx_orders_customer_phone ON orders(customer_phone);
`,
	},
	{
		Version: 3,
		Name:    "init_order_counters",
		SQL: `
CREATE TABLE IF NOT EXISTS order_counters (
    name       TEXT PRIMARY KEY,
    value      BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`,
	},
	{
		Version: 4,
		Name:    "init_invoice_events",
		SQL: `
CREATE TABLE IF NOT EXISTS invoice_events (
    id          BIGSERIAL PRIMARY KEY,
    order_id    TEXT NOT NULL,
    event_type  TEXT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    metadata    JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_invoice_events_order ON invoice_events(order_id, occurred_at);
`,
	},
}

// Migrations returns the ordered schema migrations.
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// RunMigrations applies every migration not yet recorded in schema_migrations, each in its
// own transaction. An advisory lock keeps concurrent starts from racing.
func RunMigrations(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	const lockID = 7_240_101
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for _, v := range versions {
		applied[int(v)] = true
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		logger.Info("migration applied", zap.Int("version", m.Version), zap.String("name", m.Name))
	}
	return nil
}
