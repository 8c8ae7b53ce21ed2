package domain

import (
	"context"
	"time"
)

// Event bus names for signed orders.
const (
	ChannelOrdersSigned = "orders.signed"
	StreamOrdersSigned  = "stream:orders.signed"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams. Signed orders are
// published on ChannelOrdersSigned and appended to StreamOrdersSigned.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
	StreamRecent(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}

// IDAllocator hands out monotonically increasing RFQ ids per maker.
type IDAllocator interface {
	Next(ctx context.Context, maker string) (uint64, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
