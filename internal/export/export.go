// Package export flattens orders into the reporting CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-service-orders/internal/orders"
)

// Columns is the fixed header row of the export.
var Columns = []string{
	"orderId",
	"package_type",
	"package_currencyCode",
	"package_position",
	"price",
	"total",
	"paymentStatus",
	"paymentId",
	"responseId",
	"currencyCode",
	"locales",
	"customer_fullName",
	"customer_email",
	"customer_countryCode",
	"customer_phone",
	"location_address",
	"location_city",
	"location_area",
	"location_country",
	"createdAt",
	"updatedAt",
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Lister interface {
	ListOrders(ctx context.Context, r orders.DateRange) ([]orders.Order, error)
}

type Exporter struct {
	Repo Lister
	// Location is where day boundaries are computed. Defaults to UTC.
	Location *time.Location
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Range parses the optional YYYY-MM-DD (or RFC 3339) bounds and widens them to whole days:
// start at 00:00:00.000, end at 23:59:59.999. An empty string leaves that side open.
func (e *Exporter) Range(startDate, endDate string) (orders.DateRange, error) {
	var r orders.DateRange
	if startDate != "" {
		d, err := e.parseDay(startDate)
		if err != nil {
			return r, fmt.Errorf("%w: startDate: %v", orders.ErrValidation, err)
		}
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, e.loc())
		r.From = &start
	}
	if endDate != "" {
		d, err := e.parseDay(endDate)
		if err != nil {
			return r, fmt.Errorf("%w: endDate: %v", orders.ErrValidation, err)
		}
		end := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), e.loc())
		r.To = &end
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return r, fmt.Errorf("%w: endDate before startDate", orders.ErrValidation)
	}
	return r, nil
}

// Collect returns the orders in r, newest first, with duplicate rows collapsed by row id.
func (e *Exporter) Collect(ctx context.Context, r orders.DateRange) ([]orders.Order, error) {
	list, err := e.Repo.ListOrders(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]orders.Order, 0, len(list))
	for _, o := range list {
		if _, dup := seen[o.ID]; dup {
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	if dropped := len(list) - len(out); dropped > 0 {
		e.log().Warn("export dropped duplicate rows", zap.Int("dropped", dropped))
	}
	return out, nil
}

// Filename is the download name for an export taken now.
func (e *Exporter) Filename() string {
	now := time.Now()
	if e.Clock != nil {
		now = e.Clock()
	}
	return "orders-" + now.In(e.loc()).Format("2006-01-02-15:04:05") + ".csv"
}

// WriteCSV writes the header and one row per order. Quoting follows RFC 4180.
func WriteCSV(w io.Writer, list []orders.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, o := range list {
		if err := cw.Write(Row(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row flattens one order in Columns order. Missing values are empty strings.
func Row(o orders.Order) []string {
	var pkg orders.Package
	if o.Package != nil {
		pkg = *o.Package
	}
	var c orders.CustomerSnapshot
	if o.Customer != nil {
		c = *o.Customer
	}
	var l orders.Location
	if o.Location != nil {
		l = *o.Location
	}
	return []string{
		o.OrderID,
		pkg.Type,
		pkg.CurrencyCode,
		pkg.Position,
		o.Price.StringFixed(2),
		o.Total.StringFixed(2),
		o.PaymentStatus,
		o.PaymentID,
		o.ResponseID,
		o.CurrencyCode,
		o.Locale,
		c.FullName,
		c.Email,
		c.CountryCode,
		c.Phone,
		l.Address,
		l.City,
		l.Area,
		l.Country,
		timestamp(o.CreatedAt),
		timestamp(o.UpdatedAt),
	}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func (e *Exporter) parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation("2006-01-02", s, e.loc()); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.In(e.loc()), nil
}

func (e *Exporter) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e *Exporter) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
