package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

type incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RFQIDs hands out RFQ order ids from a per-maker INCR counter. Ids start
// at 1 and never repeat while the key survives.
type RFQIDs struct {
	rdb    incrementer
	prefix string
}

// NewRFQIDs creates an allocator backed by c.
func NewRFQIDs(c *Client) *RFQIDs {
	return &RFQIDs{rdb: c.Underlying(), prefix: c.prefix}
}

// Next returns the next id for maker.
func (a *RFQIDs) Next(ctx context.Context, maker string) (uint64, error) {
	n, err := a.rdb.Incr(ctx, keyJoin(a.prefix, "rfq_id", strings.ToLower(maker))).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: next rfq id: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("redis: rfq id counter for %s is %d: %w", maker, n, domain.ErrInvalidRange)
	}
	return uint64(n), nil
}

var _ domain.IDAllocator = (*RFQIDs)(nil)
