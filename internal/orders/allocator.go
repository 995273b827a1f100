package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	MaxAllocationAttempts = 3

	opaqueAlphabet = "1234567890abcdef"
	opaqueLength   = 10

	sequencePad = 3
)

// IDAllocator produces candidate order identifiers. Uniqueness is enforced by the store;
// see WithAllocatedID for the retry contract.
type IDAllocator interface {
	Next(ctx context.Context) (string, error)
}

// OpaqueAllocator draws a random hex token. No uniqueness check happens here.
type OpaqueAllocator struct{}

func (OpaqueAllocator) Next(context.Context) (string, error) {
	var b strings.Builder
	b.Grow(opaqueLength)
	base := big.NewInt(int64(len(opaqueAlphabet)))
	for i := 0; i < opaqueLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("opaque allocator: %w", err)
		}
		b.WriteByte(opaqueAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// SequentialAllocator reads the latest order id and increments its numeric suffix.
// It is read-then-write: two callers can compute the same candidate and only the store's
// unique constraint tells them apart.
type SequentialAllocator struct {
	Repo   Repository
	Prefix string
	Seed   int64
}

func (a *SequentialAllocator) Next(ctx context.Context) (string, error) {
	last, err := a.Repo.LatestOrderID(ctx, a.Prefix)
	if err != nil {
		return "", fmt.Errorf("sequential allocator: latest order: %w", err)
	}
	if last == "" {
		return FormatSequence(a.Prefix, a.Seed), nil
	}
	n, err := ParseSequence(a.Prefix, last)
	if err != nil {
		return "", fmt.Errorf("sequential allocator: %w", err)
	}
	return FormatSequence(a.Prefix, n+1), nil
}

// CounterAllocator takes the next value from an atomic counter row.
type CounterAllocator struct {
	Counters CounterStore
	Name     string
	Prefix   string
	Seed     int64
}

func (a *CounterAllocator) Next(ctx context.Context) (string, error) {
	name := a.Name
	if name == "" {
		name = "orders"
	}
	n, err := a.Counters.NextValue(ctx, name, a.Seed)
	if err != nil {
		return "", fmt.Errorf("counter allocator: %w", err)
	}
	return FormatSequence(a.Prefix, n), nil
}

func FormatSequence(prefix string, n int64) string {
	return fmt.Sprintf("%s%0*d", prefix, sequencePad, n)
}

func ParseSequence(prefix, id string) (int64, error) {
	if !strings.HasPrefix(id, prefix) {
		return 0, fmt.Errorf("order id %q does not start with %q", id, prefix)
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(id, prefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("order id %q: numeric suffix: %w", id, err)
	}
	return n, nil
}

// WithAllocatedID allocates an identifier and hands it to create. A create failing with
// ErrDuplicateOrderID is retried with a fresh identifier; after attempts collisions the
// call fails with ErrAllocationExhausted. Any other error is returned as is.
func WithAllocatedID(ctx context.Context, alloc IDAllocator, attempts int, create func(ctx context.Context, id string) error) (string, error) {
	if attempts <= 0 {
		attempts = MaxAllocationAttempts
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		id, err := alloc.Next(ctx)
		if err != nil {
			return "", err
		}
		err = create(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrDuplicateOrderID) {
			return "", err
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %v", ErrAllocationExhausted, attempts, lastErr)
}
