package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	orderIDConstraint = "orders_order_id_key"
)

// Repo is the Postgres implementation of Repository, CustomerStore and CounterStore.
type Repo struct{ DB *pgxpool.Pool }

var (
	_ Repository    = (*Repo)(nil)
	_ CustomerStore = (*Repo)(nil)
	_ CounterStore  = (*Repo)(nil)
)

const selectOrder = `
	SELECT o.id::text, o.order_id, COALESCE(o.customer_id::text, ''),
	       o.customer_full_name, o.customer_email, o.customer_phone, o.customer_country_code,
	       p.id::text, COALESCE(p.title, ''), COALESCE(p.type, ''), COALESCE(p.position, ''), COALESCE(p.currency_code, ''),
	       o.location_address, o.location_area, o.location_city, o.location_country,
	       o.service_date, o.service_time, o.hours, o.no_of_days, o.no_of_nannies,
	       o.child_age_groups, o.day_of_week, o.assigned_staff,
	       o.price::text, o.total::text, o.currency_code, o.payment_status, o.payment_id, o.response_id,
	       o.locale, o.created_at, o.updated_at
	FROM orders o
	LEFT JOIN packages p ON p.id = o.package_id`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                         Order
		snap                      CustomerSnapshot
		pkgID                     *string
		pkg                       Package
		addr, area, city, country *string
		price, total              string
	)
	err := row.Scan(
		&o.ID, &o.OrderID, &o.CustomerID,
		&snap.FullName, &snap.Email, &snap.Phone, &snap.CountryCode,
		&pkgID, &pkg.Title, &pkg.Type, &pkg.Position, &pkg.CurrencyCode,
		&addr, &area, &city, &country,
		&o.Date, &o.Time, &o.Hours, &o.NoOfDays, &o.NoOfNannies,
		&o.ChildAgeGroups, &o.DayOfWeek, &o.AssignedStaff,
		&price, &total, &o.CurrencyCode, &o.PaymentStatus, &o.PaymentID, &o.ResponseID,
		&o.Locale, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	o.Customer = &snap
	if pkgID != nil {
		pkg.ID = *pkgID
		o.Package = &pkg
	}
	if addr != nil || area != nil || city != nil || country != nil {
		o.Location = &Location{Address: deref(addr), Area: deref(area), City: deref(city), Country: deref(country)}
	}
	if o.Price, err = decimal.NewFromString(price); err != nil {
		return Order{}, fmt.Errorf("decode price: %w", err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return Order{}, fmt.Errorf("decode total: %w", err)
	}
	return o, nil
}

func (r *Repo) CreateOrder(ctx context.Context, o Order) (Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	var snap CustomerSnapshot
	if o.Customer != nil {
		snap = *o.Customer
	}
	var pkgID *string
	if o.Package != nil && o.Package.ID != "" {
		pkgID = &o.Package.ID
	}
	addr, area, city, country := locationColumns(o.Location)

	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(
			id, order_id, customer_id,
			customer_full_name, customer_email, customer_phone, customer_country_code,
			package_id, location_address, location_area, location_city, location_country,
			service_date, service_time, hours, no_of_days, no_of_nannies,
			child_age_groups, day_of_week, assigned_staff,
			price, total, currency_code, payment_status, payment_id, response_id,
			locale, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid,
			$4, $5, $6, $7,
			$8::uuid, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20,
			$21::numeric, $22::numeric, $23, $24, $25, $26,
			$27, $28, $29)`,
		o.ID, o.OrderID, o.CustomerID,
		snap.FullName, snap.Email, snap.Phone, snap.CountryCode,
		pkgID, addr, area, city, country,
		o.Date, o.Time, o.Hours, o.NoOfDays, o.NoOfNannies,
		nonNil(o.ChildAgeGroups), nonNil(o.DayOfWeek), o.AssignedStaff,
		o.Price.String(), o.Total.String(), o.CurrencyCode, o.PaymentStatus, o.PaymentID, o.ResponseID,
		o.Locale, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return Order{}, mapWriteError(err)
	}
	return r.GetOrder(ctx, o.ID)
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, err
}

func (r *Repo) GetOrderByOrderID(ctx context.Context, orderID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE o.order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return o, err
}

// UpdateOrder locks the row with SELECT ... FOR UPDATE, applies fn to the locked state and
// writes the result in the same transaction. Concurrent updates of one order are
// serialized, so each sees the state the previous one committed.
func (r *Repo) UpdateOrder(ctx context.Context, id string, fn OrderUpdate) (Order, Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, Order{}, err
	}
	defer tx.Rollback(ctx)

	before, err := scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE o.id = $1 FOR UPDATE OF o`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Order{}, Order{}, err
	}
	o, err := fn(before)
	if err != nil {
		return Order{}, Order{}, err
	}

	addr, area, city, country := locationColumns(o.Location)
	_, err = tx.Exec(ctx, `
		UPDATE orders SET
			location_address = $2, location_area = $3, location_city = $4, location_country = $5,
			service_date = $6, service_time = $7, hours = $8, assigned_staff = $9,
			price = $10::numeric, total = $11::numeric, currency_code = $12,
			payment_status = $13, payment_id = $14, response_id = $15, locale = $16,
			updated_at = $17
		WHERE id = $1`,
		before.ID, addr, area, city, country,
		o.Date, o.Time, o.Hours, o.AssignedStaff,
		o.Price.String(), o.Total.String(), o.CurrencyCode,
		o.PaymentStatus, o.PaymentID, o.ResponseID, o.Locale,
		o.UpdatedAt,
	)
	if err != nil {
		return Order{}, Order{}, mapWriteError(err)
	}
	after, err := scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE o.id = $1`, id))
	if err != nil {
		return Order{}, Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, Order{}, err
	}
	return before, after, nil
}

func (r *Repo) LatestOrderID(ctx context.Context, prefix string) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx, `
		SELECT order_id FROM orders
		WHERE starts_with(order_id, $1)
		ORDER BY created_at DESC, order_id DESC
		LIMIT 1`, prefix).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (r *Repo) SearchOrders(ctx context.Context, query string, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, selectOrder+`
		WHERE o.order_id = $1 OR o.customer_email = $1 OR o.customer_phone = $1
		ORDER BY o.created_at DESC
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (r *Repo) ListOrders(ctx context.Context, dr DateRange) ([]Order, error) {
	rows, err := r.DB.Query(ctx, selectOrder+`
		WHERE ($1::timestamptz IS NULL OR o.created_at >= $1)
		  AND ($2::timestamptz IS NULL OR o.created_at <= $2)
		ORDER BY o.created_at DESC`, dr.From, dr.To)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) FindCustomers(ctx context.Context, phone, countryCode string) ([]Customer, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id::text, full_name, email, phone, country_code, created_at, updated_at
		FROM customers
		WHERE phone = $1 AND country_code = $2
		ORDER BY created_at`, phone, countryCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.CountryCode, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCustomer inserts c, or refreshes the email of the customer already holding
// (phone, country_code) when a concurrent booking created it first.
func (r *Repo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	err := r.DB.QueryRow(ctx, `
		INSERT INTO customers(id, full_name, email, phone, country_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT ON CONSTRAINT customers_phone_country_key
		DO UPDATE SET email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
		RETURNING id::text, full_name, email, phone, country_code, created_at, updated_at`,
		c.ID, c.FullName, c.Email, c.Phone, c.CountryCode, now,
	).Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.CountryCode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, mapWriteError(err)
	}
	return c, nil
}

func (r *Repo) UpdateCustomerEmail(ctx context.Context, customerID, email string) (Customer, error) {
	var c Customer
	err := r.DB.QueryRow(ctx, `
		UPDATE customers SET email = $2, updated_at = now()
		WHERE id = $1
		RETURNING id::text, full_name, email, phone, country_code, created_at, updated_at`,
		customerID, email,
	).Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.CountryCode, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	return c, err
}

// NextValue increments the named counter in a single statement; the row lock taken by the
// upsert serialises concurrent callers.
func (r *Repo) NextValue(ctx context.Context, name string, seed int64) (int64, error) {
	var v int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO order_counters(name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET value = order_counters.value + 1, updated_at = now()
		RETURNING value`, name, seed).Scan(&v)
	return v, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == orderIDConstraint {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderID, pgErr.Detail)
		}
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrValidation, pgErr.Detail)
	}
	return err
}

func locationColumns(l *Location) (addr, area, city, country *string) {
	if l == nil || l.IsZero() {
		return nil, nil, nil, nil
	}
	return &l.Address, &l.Area, &l.City, &l.Country
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
