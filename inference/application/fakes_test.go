package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"inference-gateway/inference/domain"
	"inference-gateway/inference/infra"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeUpstream struct {
	mu       sync.Mutex
	calls    int
	creds    []domain.Credential
	classify func(ctx context.Context, cred domain.Credential, label string) (string, error)
	extract  func(ctx context.Context, cred domain.Credential, image []byte, mimeType string) (string, error)
}

func (f *fakeUpstream) Name() string { return "fake-model" }

func (f *fakeUpstream) Extract(ctx context.Context, cred domain.Credential, image []byte, mimeType string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.creds = append(f.creds, cred)
	f.mu.Unlock()
	if f.extract == nil {
		return "text", nil
	}
	return f.extract(ctx, cred, image, mimeType)
}

func (f *fakeUpstream) Classify(ctx context.Context, cred domain.Credential, label string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.creds = append(f.creds, cred)
	f.mu.Unlock()
	if f.classify == nil {
		return "#87CEEB", nil
	}
	return f.classify(ctx, cred, label)
}

func (f *fakeUpstream) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingKV struct{}

var errKVDown = errors.New("kv down")

func (failingKV) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errKVDown }
func (failingKV) Put(context.Context, string, []byte, time.Duration) error {
	return errKVDown
}
func (failingKV) Ping(context.Context) error { return errKVDown }

// stallingKV passa a travar até o ctx acabar quando a flag correspondente liga.
type stallingKV struct {
	*infra.MemoryKV
	stallGet atomic.Bool
	stallPut atomic.Bool
}

func (s *stallingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.stallGet.Load() {
		<-ctx.Done()
		return nil, false, ctx.Err()
	}
	return s.MemoryKV.Get(ctx, key)
}

func (s *stallingKV) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.stallPut.Load() {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.MemoryKV.Put(ctx, key, value, ttl)
}

// withStallingStore troca o store do pool e do cache por um que pode travar.
func (e *testEnv) withStallingStore() *stallingKV {
	kv := &stallingKV{MemoryKV: e.kv}
	e.pool.Store = infra.NewKVPoolStateStore(kv)
	e.svc.Pool = e.pool
	e.cache.KV = kv
	return kv
}

type testEnv struct {
	clock    *fakeClock
	kv       *infra.MemoryKV
	stats    *infra.MemoryStatsStore
	pool     CredentialPool
	upstream *fakeUpstream
	svc      UpstreamService
	cache    ResponseCache
}

func newTestEnv(creds ...domain.Credential) *testEnv {
	clock := newFakeClock()
	kv := infra.NewMemoryKV(infra.WithKVClock(clock.Now), infra.WithKVCleanupEvery(0))
	stats := infra.NewMemoryStatsStore()
	pool := CredentialPool{
		Credentials: creds,
		Store:       infra.NewKVPoolStateStore(kv),
		Stats:       stats,
		Now:         clock.Now,
	}
	up := &fakeUpstream{}
	cache, _ := NewResponseCache(kv, 0, 0)
	cache.Now = clock.Now
	cache.Stats = stats
	return &testEnv{
		clock:    clock,
		kv:       kv,
		stats:    stats,
		pool:     pool,
		upstream: up,
		svc: UpstreamService{
			Upstream: up,
			Pool:     pool,
			Timeout:  time.Second,
			Stats:    stats,
			Now:      clock.Now,
		},
		cache: cache,
	}
}

func (e *testEnv) state() domain.PoolState {
	st, err := e.pool.Store.Load(context.Background())
	if err != nil {
		panic(err)
	}
	return st
}
