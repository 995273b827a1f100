// Package orderstest provides an in-memory order store for tests. It enforces the same
// uniqueness rules as the Postgres schema.
package orderstest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-service-orders/internal/orders"
)

type Store struct {
	mu        sync.Mutex
	orders    map[string]orders.Order // by row id
	byOrderID map[string]string
	customers map[string]orders.Customer
	packages  map[string]orders.Package
	counters  map[string]int64

	// CreateHook, when set, runs before an order is stored; a non-nil error aborts the insert.
	CreateHook func(o orders.Order) error
	// Duplicates makes ListOrders return every row this many times, imitating joins that
	// fan out.
	Duplicates int

	CreateCalls int
	UpdateCalls int
}

var (
	_ orders.Repository    = (*Store)(nil)
	_ orders.CustomerStore = (*Store)(nil)
	_ orders.CounterStore  = (*Store)(nil)
)

func New() *Store {
	return &Store{
		orders:    map[string]orders.Order{},
		byOrderID: map[string]string{},
		customers: map[string]orders.Customer{},
		packages:  map[string]orders.Package{},
		counters:  map[string]int64{},
	}
}

func (s *Store) AddPackage(p orders.Package) orders.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.packages[p.ID] = p
	return p
}

// Seed stores o as is, bypassing allocation. Missing ids are generated.
func (s *Store) Seed(o orders.Order) orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.orders[o.ID] = o
	s.byOrderID[o.OrderID] = o.ID
	return s.hydrate(o)
}

func (s *Store) CreateOrder(_ context.Context, o orders.Order) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CreateCalls++
	if s.CreateHook != nil {
		if err := s.CreateHook(o); err != nil {
			return orders.Order{}, err
		}
	}
	if _, taken := s.byOrderID[o.OrderID]; taken {
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrDuplicateOrderID, o.OrderID)
	}
	if o.Package != nil && o.Package.ID != "" {
		if _, ok := s.packages[o.Package.ID]; !ok {
			return orders.Order{}, fmt.Errorf("%w: unknown package %s", orders.ErrValidation, o.Package.ID)
		}
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	s.orders[o.ID] = o
	s.byOrderID[o.OrderID] = o.ID
	return s.hydrate(o), nil
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	return s.hydrate(o), nil
}

func (s *Store) GetOrderByOrderID(_ context.Context, orderID string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byOrderID[orderID]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %s: %w", orderID, orders.ErrNotFound)
	}
	return s.hydrate(s.orders[id]), nil
}

// UpdateOrder runs fn while holding the store lock, like a row lock held across the
// read and the write.
func (s *Store) UpdateOrder(_ context.Context, id string, fn orders.OrderUpdate) (orders.Order, orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.Order{}, fmt.Errorf("order %s: %w", id, orders.ErrNotFound)
	}
	before := s.hydrate(cur)
	o, err := fn(before)
	if err != nil {
		return orders.Order{}, orders.Order{}, err
	}
	o.ID = cur.ID
	o.OrderID = cur.OrderID
	o.CreatedAt = cur.CreatedAt
	s.orders[id] = o
	s.UpdateCalls++
	return before, s.hydrate(o), nil
}

func (s *Store) LatestOrderID(_ context.Context, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *orders.Order
	for _, o := range s.orders {
		if !strings.HasPrefix(o.OrderID, prefix) {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) ||
			(o.CreatedAt.Equal(latest.CreatedAt) && o.OrderID > latest.OrderID) {
			cp := o
			latest = &cp
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.OrderID, nil
}

func (s *Store) SearchOrders(_ context.Context, query string, limit int) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.sorted() {
		c := o.Customer
		if o.OrderID == query || (c != nil && (c.Email == query || c.Phone == query)) {
			out = append(out, s.hydrate(o))
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListOrders(_ context.Context, r orders.DateRange) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.sorted() {
		if !r.Contains(o.CreatedAt) {
			continue
		}
		n := s.Duplicates
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, s.hydrate(o))
		}
	}
	return out, nil
}

func (s *Store) FindCustomers(_ context.Context, phone, countryCode string) ([]orders.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Customer
	for _, c := range s.customers {
		if c.Phone == phone && c.CountryCode == countryCode {
			out = append(out, c)
		}
	}
	return out, nil
}

// CreateCustomer upserts on (phone, country code) like the customers_phone_country_key
// conflict clause.
func (s *Store) CreateCustomer(_ context.Context, c orders.Customer) (orders.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for id, existing := range s.customers {
		if existing.Phone == c.Phone && existing.CountryCode == c.CountryCode {
			existing.Email = c.Email
			existing.UpdatedAt = now
			s.customers[id] = existing
			return existing, nil
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt, c.UpdatedAt = now, now
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCustomerEmail(_ context.Context, customerID, email string) (orders.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[customerID]
	if !ok {
		return orders.Customer{}, fmt.Errorf("customer %s: %w", customerID, orders.ErrNotFound)
	}
	c.Email = email
	c.UpdatedAt = time.Now().UTC()
	s.customers[customerID] = c
	return c, nil
}

func (s *Store) NextValue(_ context.Context, name string, seed int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.counters[name]
	if !ok {
		s.counters[name] = seed
		return seed, nil
	}
	s.counters[name] = v + 1
	return v + 1, nil
}

func (s *Store) Customers() []orders.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// sorted returns stored orders newest first. Callers hold mu.
func (s *Store) sorted() []orders.Order {
	out := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// hydrate resolves the package relation like the SQL join does. Callers hold mu.
func (s *Store) hydrate(o orders.Order) orders.Order {
	if o.Package != nil && o.Package.ID != "" {
		if p, ok := s.packages[o.Package.ID]; ok {
			o.Package = &p
		}
	}
	return o
}
