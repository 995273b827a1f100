package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LocaleEN = "en"
	LocaleAR = "ar"

	DefaultCurrency = "AED"
)

type Customer struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	CountryCode string    `json:"countryCode"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CustomerSnapshot is the copy of the customer owned by an order at creation time.
type CustomerSnapshot struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

type Package struct {
	ID           string `json:"id"`
	Title        string `json:"title,omitempty"`
	Type         string `json:"type,omitempty"`
	Position     string `json:"position,omitempty"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// Label is the human readable name used in search results and emails.
func (p *Package) Label() string {
	if p == nil {
		return "N/A"
	}
	if p.Title != "" {
		return p.Title
	}
	if p.Type != "" {
		return p.Type
	}
	return "N/A"
}

type Location struct {
	Address string `json:"address,omitempty"`
	Area    string `json:"area,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

func (l Location) IsZero() bool {
	return l == Location{}
}

type Order struct {
	ID             string            `json:"id"` // row id, also used as the document id in links
	OrderID        string            `json:"orderId"`
	CustomerID     string            `json:"customerId"`
	Customer       *CustomerSnapshot `json:"customer,omitempty"`
	Package        *Package          `json:"package,omitempty"`
	Location       *Location         `json:"location,omitempty"`
	Date           *time.Time        `json:"date,omitempty"`
	Time           string            `json:"time,omitempty"`
	Hours          int               `json:"hours"`
	NoOfDays       int               `json:"noOfDays"`
	NoOfNannies    int               `json:"noOfNannies"`
	ChildAgeGroups []string          `json:"childAgeGroups"`
	DayOfWeek      []string          `json:"dayOfWeek"`
	AssignedStaff  string            `json:"assignedStaff,omitempty"`
	Price          decimal.Decimal   `json:"price"`
	Total          decimal.Decimal   `json:"total"`
	CurrencyCode   string            `json:"currencyCode,omitempty"`
	PaymentStatus  string            `json:"paymentStatus"`
	PaymentID      string            `json:"paymentId,omitempty"`
	ResponseID     string            `json:"responseId,omitempty"`
	Locale         string            `json:"locales"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// EffectiveLocale returns the stored locale, falling back to English.
func (o Order) EffectiveLocale() string {
	switch o.Locale {
	case LocaleAR:
		return LocaleAR
	default:
		return LocaleEN
	}
}

// Currency returns the order currency, falling back to AED.
func (o Order) Currency() string {
	if o.CurrencyCode != "" {
		return o.CurrencyCode
	}
	return DefaultCurrency
}

type SearchResult struct {
	OrderID       string    `json:"orderId"`
	Package       string    `json:"package"`
	CreatedAt     time.Time `json:"createdAt"`
	PaymentStatus string    `json:"paymentStatus"`
}

// DateRange bounds an export query on created_at. Nil sides are unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}
