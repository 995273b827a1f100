package orders

import "context"

// CustomerStore is the subset of the entity store the customer resolver needs.
type CustomerStore interface {
	FindCustomers(ctx context.Context, phone, countryCode string) ([]Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomerEmail(ctx context.Context, customerID, email string) (Customer, error)
}

// Repository persists order aggregates. Implementations must enforce uniqueness of
// Order.OrderID and report violations as ErrDuplicateOrderID.
type Repository interface {
	CreateOrder(ctx context.Context, o Order) (Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	GetOrderByOrderID(ctx context.Context, orderID string) (Order, error)
	// UpdateOrder applies fn to the current state of order id and stores the result. The
	// read and the write are atomic with respect to other updates of the same order. It
	// returns the state fn saw and the stored result.
	UpdateOrder(ctx context.Context, id string, fn OrderUpdate) (before, after Order, err error)
	// LatestOrderID returns the identifier of the most recently created order whose id
	// starts with prefix, or "" when there is none.
	LatestOrderID(ctx context.Context, prefix string) (string, error)
	SearchOrders(ctx context.Context, query string, limit int) ([]Order, error)
	// ListOrders returns orders created within r, newest first.
	ListOrders(ctx context.Context, r DateRange) ([]Order, error)
}

// OrderUpdate derives the new state of an order from its current one.
type OrderUpdate func(current Order) (Order, error)

// CounterStore hands out strictly increasing values per counter name.
type CounterStore interface {
	NextValue(ctx context.Context, name string, seed int64) (int64, error)
}
