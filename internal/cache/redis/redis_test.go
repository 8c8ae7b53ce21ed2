package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitorder/internal/domain"
	"github.com/alanyoungcy/limitorder/internal/limitorder"
)

type fakeSetNX struct {
	seen map[string]bool
	ttl  time.Duration
	err  error
}

func (f *fakeSetNX) SetNX(_ context.Context, key string, _ any, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	f.ttl = ttl
	if f.seen[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.seen[key] = true
	return redis.NewBoolResult(true, nil)
}

func sequence(salts ...string) limitorder.SaltGenerator {
	i := 0
	return limitorder.SaltFunc(func() string {
		s := salts[i%len(salts)]
		i++
		return s
	})
}

func TestKeyJoin(t *testing.T) {
	c := Wrap(nil, "")
	assert.Equal(t, "limitorder:salt:0xabc:42", c.Key("salt", "0xabc", "42"))
	assert.Equal(t, "x:lock:batch", Wrap(nil, "x:").Key("lock", "batch"))
}

func TestSaltRegistrySkipsUsedSalts(t *testing.T) {
	store := &fakeSetNX{seen: map[string]bool{}}
	reg := newSaltRegistry(store, DefaultKeyPrefix, sequence("1", "1", "2"), time.Hour, 3)
	ctx := context.Background()

	s, err := reg.GenerateSalt(ctx, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, "1", s)

	s, err = reg.GenerateSalt(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "2", s)
	assert.Equal(t, time.Hour, store.ttl)
	assert.True(t, store.seen["limitorder:salt:0xabc:1"])
}

func TestSaltRegistryExhausted(t *testing.T) {
	store := &fakeSetNX{seen: map[string]bool{"limitorder:salt:0xabc:7": true}}
	reg := newSaltRegistry(store, DefaultKeyPrefix, sequence("7"), time.Hour, 4)

	_, err := reg.GenerateSalt(context.Background(), "0xabc")
	assert.ErrorIs(t, err, domain.ErrSaltExhausted)
}

func TestSaltRegistryPropagatesRedisError(t *testing.T) {
	boom := errors.New("connection refused")
	reg := newSaltRegistry(&fakeSetNX{err: boom}, DefaultKeyPrefix, sequence("1"), time.Hour, 2)

	_, err := reg.GenerateSalt(context.Background(), "0xabc")
	assert.ErrorIs(t, err, boom)
}

type fakeIncr struct{ counters map[string]int64 }

func (f *fakeIncr) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func TestRFQIDsPerMaker(t *testing.T) {
	store := &fakeIncr{counters: map[string]int64{}}
	ids := &RFQIDs{rdb: store, prefix: DefaultKeyPrefix}
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		got, err := ids.Next(ctx, "0xAbC")
		require.NoError(t, err)
		assert.Equal(t, want, got, strconv.FormatUint(want, 10))
	}
	got, err := ids.Next(ctx, "0xdef")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)
	assert.Equal(t, int64(3), store.counters["limitorder:rfq_id:0xabc"])
}
