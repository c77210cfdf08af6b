package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisKV_GetMissing(t *testing.T) {
	_, rdb := newTestRedis(t)
	kv := NewRedisKV(rdb)

	_, ok, err := kv.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
}

func TestRedisKV_PutGetWithPrefixAndTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	kv := NewRedisKV(rdb, WithKVPrefix("svc:"))
	ctx := context.Background()

	if err := kv.Put(ctx, "hex:blue sky", []byte(`{"value":"#87CEEB"}`), time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := kv.Get(ctx, "hex:blue sky")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(got) != `{"value":"#87CEEB"}` {
		t.Fatalf("unexpected value %q", got)
	}
	if !mr.Exists("svc:hex:blue sky") {
		t.Fatalf("expected prefixed key in redis")
	}
	if ttl := mr.TTL("svc:hex:blue sky"); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %s", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	if _, ok, _ := kv.Get(ctx, "hex:blue sky"); ok {
		t.Fatalf("expected key to expire physically")
	}
}

func TestRedisKV_PutWithoutTTLPersists(t *testing.T) {
	mr, rdb := newTestRedis(t)
	kv := NewRedisKV(rdb)

	if err := kv.Put(context.Background(), "pool:state", []byte("{}"), 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ttl := mr.TTL("inference:pool:state"); ttl != 0 {
		t.Fatalf("expected no ttl, got %s", ttl)
	}
}

func TestRedisKV_PingFailsWhenServerDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	kv := NewRedisKV(rdb)
	mr.Close()

	if err := kv.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestMemoryKV_ExpiresPhysically(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kv := NewMemoryKV(WithKVClock(func() time.Time { return now }), WithKVCleanupEvery(0))
	ctx := context.Background()

	_ = kv.Put(ctx, "a", []byte("1"), time.Minute)
	_ = kv.Put(ctx, "b", []byte("2"), 0)

	if _, ok, _ := kv.Get(ctx, "a"); !ok {
		t.Fatalf("expected a present")
	}

	now = now.Add(time.Minute)
	if _, ok, _ := kv.Get(ctx, "a"); ok {
		t.Fatalf("expected a expired")
	}
	if _, ok, _ := kv.Get(ctx, "b"); !ok {
		t.Fatalf("expected b without ttl to persist")
	}
}

func TestMemoryKV_CleanupRemovesExpired(t *testing.T) {
	now := time.Now()
	kv := NewMemoryKV(WithKVClock(func() time.Time { return now }))
	ctx := context.Background()

	_ = kv.Put(ctx, "a", []byte("1"), time.Millisecond)
	_ = kv.Put(ctx, "b", []byte("2"), time.Hour)
	now = now.Add(time.Second)

	kv.Cleanup()
	if kv.Len() != 1 {
		t.Fatalf("expected 1 entry after cleanup, got %d", kv.Len())
	}
}

func TestMemoryKV_GetReturnsCopy(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	_ = kv.Put(ctx, "a", []byte("abc"), 0)

	v, _, _ := kv.Get(ctx, "a")
	v[0] = 'x'
	again, _, _ := kv.Get(ctx, "a")
	if string(again) != "abc" {
		t.Fatalf("expected stored value untouched, got %q", again)
	}
}
