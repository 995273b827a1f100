package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids per consuming service.
type Dedup struct {
	Client  *redis.Client
	Service string
	TTL     time.Duration
}

func (d *Dedup) Claim(ctx context.Context, eventID string) (bool, error) {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = TTLDedup
	}
	return Claim(ctx, d.Client, fmt.Sprintf(KeyDedup, d.Service, eventID), ttl)
}

// Release forgets a claim so a failed event can be processed again on redelivery.
func (d *Dedup) Release(ctx context.Context, eventID string) error {
	return Release(ctx, d.Client, fmt.Sprintf(KeyDedup, d.Service, eventID))
}
