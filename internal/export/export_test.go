package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-service-orders/internal/orders"
	"github.com/ariefcatur/go-service-orders/internal/orders/orderstest"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func seeded() *orderstest.Store {
	s := orderstest.New()
	s.Seed(orders.Order{OrderID: "BS-001", CreatedAt: day(2025, 1, 1)})
	s.Seed(orders.Order{OrderID: "BS-002", CreatedAt: day(2025, 1, 15)})
	s.Seed(orders.Order{OrderID: "BS-003", CreatedAt: day(2025, 2, 1)})
	return s
}

func orderIDs(list []orders.Order) []string {
	out := make([]string, len(list))
	for i, o := range list {
		out[i] = o.OrderID
	}
	return out
}

func TestExporter_RangeIsInclusiveWholeDays(t *testing.T) {
	e := &Exporter{Repo: seeded()}
	ctx := context.Background()

	r, err := e.Range("2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *r.From)
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 999_000_000, time.UTC), *r.To)

	list, err := e.Collect(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"BS-002", "BS-001"}, orderIDs(list))
}

func TestExporter_SingleDay(t *testing.T) {
	e := &Exporter{Repo: seeded()}
	r, err := e.Range("2025-01-15", "2025-01-15")
	require.NoError(t, err)

	list, err := e.Collect(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []string{"BS-002"}, orderIDs(list))
}

func TestExporter_OpenBounds(t *testing.T) {
	e := &Exporter{Repo: seeded()}
	ctx := context.Background()

	r, err := e.Range("", "")
	require.NoError(t, err)
	list, err := e.Collect(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"BS-003", "BS-002", "BS-001"}, orderIDs(list))

	r, err = e.Range("2025-01-10", "")
	require.NoError(t, err)
	assert.Nil(t, r.To)
	list, err = e.Collect(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"BS-003", "BS-002"}, orderIDs(list))

	r, err = e.Range("", "2025-01-10")
	require.NoError(t, err)
	assert.Nil(t, r.From)
	list, err = e.Collect(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"BS-001"}, orderIDs(list))
}

func TestExporter_RangeInLocation(t *testing.T) {
	dubai := time.FixedZone("GST", 4*60*60)
	e := &Exporter{Location: dubai}

	r, err := e.Range("2025-01-01", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC), r.From.UTC())
}

func TestExporter_RangeRejectsBadInput(t *testing.T) {
	e := &Exporter{}
	_, err := e.Range("01/02/2025", "")
	assert.ErrorIs(t, err, orders.ErrValidation)
	_, err = e.Range("", "yesterday")
	assert.ErrorIs(t, err, orders.ErrValidation)
	_, err = e.Range("2025-02-01", "2025-01-01")
	assert.ErrorIs(t, err, orders.ErrValidation)
}

func TestExporter_CollectDropsDuplicateRows(t *testing.T) {
	s := seeded()
	s.Duplicates = 3
	e := &Exporter{Repo: s}

	list, err := e.Collect(context.Background(), orders.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []string{"BS-003", "BS-002", "BS-001"}, orderIDs(list))
}

func TestExporter_Filename(t *testing.T) {
	e := &Exporter{Clock: func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }}
	assert.Equal(t, "orders-2025-03-04-05:06:07.csv", e.Filename())
}

func TestWriteCSV(t *testing.T) {
	created := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	o := orders.Order{
		OrderID:       "BS-002",
		Package:       &orders.Package{Type: "nanny", CurrencyCode: "AED", Position: "1"},
		Price:         decimal.RequireFromString("150"),
		Total:         decimal.RequireFromString("157.5"),
		PaymentStatus: "paid",
		Locale:        "ar",
		Customer:      &orders.CustomerSnapshot{FullName: `Layla "L" Hassan`, Email: "layla@example.com", CountryCode: "+971", Phone: "501234567"},
		Location:      &orders.Location{Address: "Dubai, Marina", City: "Dubai"},
		CreatedAt:     created,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []orders.Order{o, {OrderID: "BS-001"}}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])

	row := map[string]string{}
	for i, col := range Columns {
		row[col] = rows[1][i]
	}
	assert.Equal(t, "BS-002", row["orderId"])
	assert.Equal(t, "nanny", row["package_type"])
	assert.Equal(t, "150.00", row["price"])
	assert.Equal(t, "157.50", row["total"])
	assert.Equal(t, `Layla "L" Hassan`, row["customer_fullName"])
	assert.Equal(t, "Dubai, Marina", row["location_address"])
	assert.Equal(t, "2025-01-15T08:30:00.000Z", row["createdAt"])
	assert.Equal(t, "", row["updatedAt"])

	assert.Len(t, rows[2], len(Columns))
	assert.Equal(t, "", rows[2][1], "missing package leaves the cell empty")
}

func TestWriteCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{Columns}, rows)
}
