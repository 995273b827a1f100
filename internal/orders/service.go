package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	SearchMinLength = 3
	SearchLimit     = 50
)

// EffectRunner executes side effects of an order mutation. Run must not block the caller on
// the effect itself and must swallow (log) every failure.
type EffectRunner interface {
	Run(ctx context.Context, e Effect)
}

// InvoiceCache is the part of the invoice generator the service touches when cached
// artifacts have to be dropped after an edit.
type InvoiceCache interface {
	Invalidate(orderID string) error
}

type CreateOrderInput struct {
	Customer       CustomerInput   `json:"customer" validate:"required"`
	PackageID      string          `json:"package,omitempty"`
	Location       *Location       `json:"location,omitempty"`
	Date           string          `json:"date,omitempty"`
	Time           string          `json:"time,omitempty"`
	Hours          int             `json:"hours" validate:"gte=0"`
	NoOfDays       int             `json:"noOfDays" validate:"gte=0"`
	NoOfNannies    int             `json:"noOfNannies" validate:"gte=0"`
	ChildAgeGroups []string        `json:"childAgeGroups"`
	DayOfWeek      []string        `json:"dayOfWeek"`
	Price          decimal.Decimal `json:"price"`
	Total          decimal.Decimal `json:"total"`
	CurrencyCode   string          `json:"currencyCode,omitempty"`
	PaymentStatus  string          `json:"paymentStatus,omitempty"`
	PaymentID      string          `json:"paymentId,omitempty"`
	ResponseID     string          `json:"responseId,omitempty"`
	Locale         string          `json:"locales,omitempty" validate:"omitempty,oneof=en ar"`
}

// OrderPatch carries the mutable fields of an order. Nil fields are left untouched.
type OrderPatch struct {
	PaymentStatus *string          `json:"paymentStatus,omitempty"`
	PaymentID     *string          `json:"paymentId,omitempty"`
	ResponseID    *string          `json:"responseId,omitempty"`
	Date          *string          `json:"date,omitempty"`
	Time          *string          `json:"time,omitempty"`
	Hours         *int             `json:"hours,omitempty" validate:"omitempty,gte=0"`
	Location      *Location        `json:"location,omitempty"`
	AssignedStaff *string          `json:"assignedStaff,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	CurrencyCode  *string          `json:"currencyCode,omitempty"`
	Locale        *string          `json:"locales,omitempty" validate:"omitempty,oneof=en ar"`
}

type Service struct {
	Repo      Repository
	Customers *CustomerResolver
	Allocator IDAllocator
	// Sentinel is the paymentStatus value that marks an order as paid.
	Sentinel string
	Effects  EffectRunner
	Invoices InvoiceCache
	// RegenerateOnEdit drops the cached invoice when an edit touches invoice fields.
	RegenerateOnEdit bool
	Clock            func() time.Time
	Logger           *zap.Logger
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) Create(ctx context.Context, in CreateOrderInput) (Order, error) {
	if strings.TrimSpace(in.Customer.Phone) == "" || strings.TrimSpace(in.Customer.CountryCode) == "" {
		return Order{}, fmt.Errorf("%w: customer phone and countryCode are required", ErrValidation)
	}
	if in.Locale != "" && in.Locale != LocaleEN && in.Locale != LocaleAR {
		return Order{}, fmt.Errorf("%w: unsupported locale %q", ErrValidation, in.Locale)
	}
	date, err := ParseServiceDate(in.Date)
	if err != nil {
		return Order{}, err
	}

	customer, err := s.Customers.Resolve(ctx, in.Customer)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	o := Order{
		CustomerID: customer.ID,
		Customer: &CustomerSnapshot{
			FullName:    customer.FullName,
			Email:       customer.Email,
			Phone:       customer.Phone,
			CountryCode: customer.CountryCode,
		},
		Location:       in.Location,
		Date:           date,
		Time:           in.Time,
		Hours:          in.Hours,
		NoOfDays:       in.NoOfDays,
		NoOfNannies:    in.NoOfNannies,
		ChildAgeGroups: in.ChildAgeGroups,
		DayOfWeek:      in.DayOfWeek,
		Price:          in.Price,
		Total:          in.Total,
		CurrencyCode:   in.CurrencyCode,
		PaymentStatus:  in.PaymentStatus,
		PaymentID:      in.PaymentID,
		ResponseID:     in.ResponseID,
		Locale:         in.Locale,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.PackageID != "" {
		o.Package = &Package{ID: in.PackageID}
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = StatusPending
	}
	if o.Locale == "" {
		o.Locale = LocaleEN
	}

	var created Order
	_, err = WithAllocatedID(ctx, s.Allocator, MaxAllocationAttempts, func(ctx context.Context, id string) error {
		o.OrderID = id
		var cerr error
		created, cerr = s.Repo.CreateOrder(ctx, o)
		if errors.Is(cerr, ErrDuplicateOrderID) {
			s.log().Warn("order id collision, retrying", zap.String("order_id", id))
		}
		return cerr
	})
	if err != nil {
		return Order{}, err
	}

	s.log().Info("order created",
		zap.String("order_id", created.OrderID),
		zap.String("id", created.ID),
		zap.String("customer_id", created.CustomerID),
	)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.Repo.GetOrder(ctx, id)
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (Order, error) {
	return s.Repo.GetOrderByOrderID(ctx, orderID)
}

// UpdateOrder applies the patch, persists it and then evaluates the payment-status
// transition. The patch is applied to the state read under the store's row lock, so of
// several concurrent updates to the sentinel only the first observes the transition.
// The returned error only ever reflects validation and persistence; side effects run
// through Effects and cannot fail the update.
func (s *Service) UpdateOrder(ctx context.Context, id string, patch OrderPatch) (Order, error) {
	before, saved, err := s.Repo.UpdateOrder(ctx, id, func(cur Order) (Order, error) {
		next, err := patch.Apply(cur)
		if err != nil {
			return Order{}, err
		}
		next.UpdatedAt = s.now()
		return next, nil
	})
	if err != nil {
		return Order{}, err
	}

	if s.RegenerateOnEdit && s.Invoices != nil && invoiceFieldsChanged(before, saved) {
		if err := s.Invoices.Invalidate(saved.OrderID); err != nil {
			s.log().Error("invalidate invoice", zap.String("order_id", saved.OrderID), zap.Error(err))
		}
	}

	kind := OnPaymentStatusChanged(before.PaymentStatus, saved.PaymentStatus, s.Sentinel)
	if kind != EffectNone && s.Effects != nil {
		s.log().Info("payment status transition",
			zap.String("order_id", saved.OrderID),
			zap.String("from", before.PaymentStatus),
			zap.String("to", saved.PaymentStatus),
		)
		s.Effects.Run(ctx, Effect{Kind: kind, DocumentID: saved.ID, OrderID: saved.OrderID})
	}
	return saved, nil
}

func (s *Service) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < SearchMinLength {
		return nil, fmt.Errorf("%w: search query must be at least %d characters", ErrValidation, SearchMinLength)
	}
	found, err := s.Repo.SearchOrders(ctx, q, SearchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]SearchResult, 0, len(found))
	for _, o := range found {
		out = append(out, SearchResult{
			OrderID:       o.OrderID,
			Package:       o.Package.Label(),
			CreatedAt:     o.CreatedAt,
			PaymentStatus: o.PaymentStatus,
		})
	}
	return out, nil
}

// Apply returns a copy of o with the patch applied.
func (p OrderPatch) Apply(o Order) (Order, error) {
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentID != nil {
		o.PaymentID = *p.PaymentID
	}
	if p.ResponseID != nil {
		o.ResponseID = *p.ResponseID
	}
	if p.Date != nil {
		d, err := ParseServiceDate(*p.Date)
		if err != nil {
			return Order{}, err
		}
		o.Date = d
	}
	if p.Time != nil {
		o.Time = *p.Time
	}
	if p.Hours != nil {
		if *p.Hours < 0 {
			return Order{}, fmt.Errorf("%w: hours must not be negative", ErrValidation)
		}
		o.Hours = *p.Hours
	}
	if p.Location != nil {
		loc := *p.Location
		o.Location = &loc
	}
	if p.AssignedStaff != nil {
		o.AssignedStaff = *p.AssignedStaff
	}
	if p.Price != nil {
		o.Price = *p.Price
	}
	if p.Total != nil {
		o.Total = *p.Total
	}
	if p.CurrencyCode != nil {
		o.CurrencyCode = *p.CurrencyCode
	}
	if p.Locale != nil {
		switch *p.Locale {
		case LocaleEN, LocaleAR:
			o.Locale = *p.Locale
		default:
			return Order{}, fmt.Errorf("%w: unsupported locale %q", ErrValidation, *p.Locale)
		}
	}
	return o, nil
}

func invoiceFieldsChanged(a, b Order) bool {
	if a.PaymentStatus != b.PaymentStatus || a.Time != b.Time || a.Hours != b.Hours ||
		a.CurrencyCode != b.CurrencyCode || !a.Price.Equal(b.Price) || !a.Total.Equal(b.Total) {
		return true
	}
	if !sameDate(a.Date, b.Date) {
		return true
	}
	var la, lb Location
	if a.Location != nil {
		la = *a.Location
	}
	if b.Location != nil {
		lb = *b.Location
	}
	return la != lb
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ParseServiceDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// The empty string means no date.
func ParseServiceDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
}
