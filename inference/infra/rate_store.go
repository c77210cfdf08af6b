package infra

import (
	"sync"
	"time"

	"inference-gateway/inference/domain"

	"golang.org/x/time/rate"
)

// RateStore é um token bucket por chamador (x/time/rate) com limpeza de
// chaves inativas. Protege o pool de credenciais de um único chamador
// que dispare requisições em rajada.
type RateStore struct {
	mu           sync.Mutex
	entries      map[string]*rateEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type rateEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type RateStoreOption func(*RateStore)

func WithIdleTTL(d time.Duration) RateStoreOption {
	return func(s *RateStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) RateStoreOption {
	return func(s *RateStore) { s.cleanupEvery = d }
}

func NewRateStore(rps float64, burst int, opts ...RateStoreOption) *RateStore {
	s := &RateStore{
		entries:      make(map[string]*rateEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RateStore) RPS() float64 { return float64(s.rps) }
func (s *RateStore) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *RateStore) Get(key domain.Key) domain.Limiter {
	k := string(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[k]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[k] = &rateEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *RateStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor limpa chaves inativas periodicamente até o ctx encerrar.
func (s *RateStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
