package invoice

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-service-orders/internal/orders"
)

const notAvailable = "N/A"

// Document is the fully formatted content of one invoice. Every field is printable; missing
// relations degrade to "N/A".
type Document struct {
	OrderID       string
	InvoiceDate   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Location      string
	Package       string
	ServiceDate   string
	ServiceTime   string
	Hours         string
	Price         string
	Total         string
	PaymentStatus string
	Paid          bool
	// GeneratedAt pins the PDF metadata dates so a render is reproducible.
	GeneratedAt time.Time
}

func NewDocument(o orders.Order, sentinel string, now time.Time) Document {
	d := Document{
		OrderID:       orElse(o.OrderID, notAvailable),
		InvoiceDate:   FormatDate(timePtr(o.CreatedAt)),
		CustomerName:  notAvailable,
		CustomerEmail: notAvailable,
		CustomerPhone: notAvailable,
		Location:      notAvailable + ", " + notAvailable,
		Package:       o.Package.Label(),
		ServiceDate:   FormatDate(o.Date),
		ServiceTime:   orElse(o.Time, notAvailable),
		Hours:         strconv.Itoa(o.Hours),
		Price:         FormatCurrency(o.Price, o.CurrencyCode),
		Total:         FormatCurrency(o.Total, o.CurrencyCode),
		PaymentStatus: orElse(o.PaymentStatus, "Pending"),
		GeneratedAt:   now,
	}
	if c := o.Customer; c != nil {
		d.CustomerName = orElse(c.FullName, notAvailable)
		d.CustomerEmail = orElse(c.Email, notAvailable)
		d.CustomerPhone = orElse(strings.TrimSpace(c.CountryCode+" "+c.Phone), notAvailable)
	}
	if l := o.Location; l != nil {
		d.Location = orElse(l.Address, notAvailable) + ", " + orElse(l.City, notAvailable)
	}
	if sentinel != "" && o.PaymentStatus == sentinel {
		d.Paid = true
		d.PaymentStatus = "Paid"
	}
	if !o.CreatedAt.IsZero() {
		d.GeneratedAt = o.CreatedAt
	}
	return d
}

// FormatCurrency renders "{currency} {amount:.2f}", defaulting the currency to AED.
func FormatCurrency(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = orders.DefaultCurrency
	}
	return currency + " " + amount.StringFixed(2)
}

// FormatDate renders the long form, e.g. "January 5, 2025".
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return notAvailable
	}
	return t.UTC().Format("January 2, 2006")
}

func orElse(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
