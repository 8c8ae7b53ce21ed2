package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/limitorder"
)

type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// SaltRegistry wraps a salt generator and rejects salts a maker has already
// used within ttl. Draws that collide are retried up to maxAttempts times.
type SaltRegistry struct {
	rdb         setNXer
	prefix      string
	base        limitorder.SaltGenerator
	ttl         time.Duration
	maxAttempts int
}

// NewSaltRegistry returns a registry drawing candidates from base.
func NewSaltRegistry(c *Client, base limitorder.SaltGenerator, ttl time.Duration, maxAttempts int) *SaltRegistry {
	return newSaltRegistry(c.Underlying(), c.prefix, base, ttl, maxAttempts)
}

func newSaltRegistry(rdb setNXer, prefix string, base limitorder.SaltGenerator, ttl time.Duration, maxAttempts int) *SaltRegistry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &SaltRegistry{rdb: rdb, prefix: prefix, base: base, ttl: ttl, maxAttempts: maxAttempts}
}

// GenerateSalt returns a salt not previously issued to maker.
func (r *SaltRegistry) GenerateSalt(ctx context.Context, maker string) (string, error) {
	maker = strings.ToLower(maker)
	for range r.maxAttempts {
		salt, err := r.base.GenerateSalt(ctx, maker)
		if err != nil {
			return "", err
		}
		fresh, err := r.rdb.SetNX(ctx, keyJoin(r.prefix, "salt", maker, salt), 1, r.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("redis: reserve salt: %w", err)
		}
		if fresh {
			return salt, nil
		}
	}
	return "", fmt.Errorf("redis: %d salts for %s already used: %w", r.maxAttempts, maker, domain.ErrSaltExhausted)
}

var _ limitorder.SaltGenerator = (*SaltRegistry)(nil)
