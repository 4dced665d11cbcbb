package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Revocation backends accepted in configuration.
const (
	DenylistNone   = "none"
	DenylistMemory = "memory"
	DenylistRedis  = "redis"
)

// Denylist remembers revoked token ids until the tokens would have expired
// anyway.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NewDenylist builds the backend named by kind. "none" and "" yield a nil
// Denylist, which disables revocation.
func NewDenylist(kind string, size int, ttl time.Duration, redisURL string) (Denylist, error) {
	switch kind {
	case DenylistNone, "":
		return nil, nil
	case DenylistMemory:
		return NewMemoryDenylist(size, ttl), nil
	case DenylistRedis:
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return NewRedisDenylist(redis.NewClient(opts)), nil
	default:
		return nil, fmt.Errorf("unknown revocation backend %q", kind)
	}
}

// MemoryDenylist keeps revoked ids in a process-local expiring LRU. Every
// entry lives for ttl, which should be at least the token validity. Entries
// evicted for size become valid again, so size must cover the number of
// logouts expected per validity window.
type MemoryDenylist struct {
	cache *expirable.LRU[string, time.Time]
	now   func() time.Time
}

func NewMemoryDenylist(size int, ttl time.Duration) *MemoryDenylist {
	if size <= 0 {
		size = 100_000
	}
	return &MemoryDenylist{
		cache: expirable.NewLRU[string, time.Time](size, nil, ttl),
		now:   time.Now,
	}
}

func (d *MemoryDenylist) Revoke(_ context.Context, jti string, until time.Time) error {
	if !until.After(d.now()) {
		return nil
	}
	d.cache.Add(jti, until)
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	until, ok := d.cache.Get(jti)
	if !ok {
		return false, nil
	}
	return until.After(d.now()), nil
}

// RedisDenylist shares revocations between server instances. Keys expire
// together with the token they block.
type RedisDenylist struct {
	client *redis.Client
	prefix string
}

func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: "linkkeeper:revoked:"}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.prefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Close releases the redis connection pool.
func (d *RedisDenylist) Close() error { return d.client.Close() }
