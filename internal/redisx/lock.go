package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockTimeout = errors.New("timed out waiting for lock")

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Locker is a single-instance Redis mutex (SET NX PX plus token-checked release).
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
	Wait   time.Duration
	Poll   time.Duration
	Logger *zap.Logger
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = TTLInvoiceLock
	}
	wait := l.Wait
	if wait <= 0 {
		wait = ttl
	}
	poll := l.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	k := fmt.Sprintf(KeyInvoiceLock, key)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	for {
		ok, err := l.Client.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", k, err)
		}
		if ok {
			return func() { l.release(ctx, k, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, k)
		}
		t := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *Locker) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, l.Client, []string{key}, token).Err(); err != nil && l.Logger != nil {
		l.Logger.Warn("release lock", zap.String("key", key), zap.Error(err))
	}
}
