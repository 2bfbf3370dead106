// Package replay deduplicates concurrent payment-verification callbacks for
// the same authority before they reach the database.
package replay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "verify:"

// releaseScript deletes the key only while it still holds the caller's token,
// so a holder whose key expired cannot drop a newer holder's key.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisGuard holds a short-lived SET NX key per authority. The database row
// lock remains the source of truth; the key only keeps a second callback from
// calling the gateway while the first is still in flight.
type RedisGuard struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	token func() string

	mu   sync.Mutex
	held map[string]string
}

func NewRedisGuard(rdb redis.Cmdable, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{rdb: rdb, ttl: ttl, token: uuid.NewString, held: map[string]string{}}
}

// Acquire reports whether the caller now owns the authority.
func (g *RedisGuard) Acquire(ctx context.Context, authority string) (bool, error) {
	tok := g.token()
	ok, err := g.rdb.SetNX(ctx, keyPrefix+authority, tok, g.ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	g.mu.Lock()
	g.held[authority] = tok
	g.mu.Unlock()
	return true, nil
}

// Release drops the key if it is still held with the token from Acquire.
func (g *RedisGuard) Release(ctx context.Context, authority string) error {
	g.mu.Lock()
	tok, ok := g.held[authority]
	delete(g.held, authority)
	g.mu.Unlock()
	if !ok {
		return nil
	}
	return g.rdb.Eval(ctx, releaseScript, []string{keyPrefix + authority}, tok).Err()
}

// Noop admits every caller.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string) error         { return nil }
