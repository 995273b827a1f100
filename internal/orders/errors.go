package orders

import "errors"

var (
	// ErrValidation marks malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when an order or customer does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateOrderID is returned by stores when the order identifier is already taken.
	ErrDuplicateOrderID = errors.New("order id already exists")
	// ErrAllocationExhausted is returned after every allocation attempt collided.
	ErrAllocationExhausted = errors.New("order id allocation exhausted")
)
