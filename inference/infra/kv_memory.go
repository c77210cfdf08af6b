package infra

import (
	"context"
	"sync"
	"time"
)

// MemoryKV é um domain.KVStore em memória com expiração física.
// Útil para testes e desenvolvimento (STORE_BACKEND=memory); não é
// compartilhado entre processos.
type MemoryKV struct {
	mu           sync.Mutex
	entries      map[string]kvEntry
	now          func() time.Time
	cleanupEvery time.Duration
}

type kvEntry struct {
	value     []byte
	expiresAt time.Time // zero = sem expiração
}

type MemoryKVOption func(*MemoryKV)

// WithKVClock troca o relógio (testes).
func WithKVClock(now func() time.Time) MemoryKVOption {
	return func(s *MemoryKV) { s.now = now }
}

func WithKVCleanupEvery(d time.Duration) MemoryKVOption {
	return func(s *MemoryKV) { s.cleanupEvery = d }
}

func NewMemoryKV(opts ...MemoryKVOption) *MemoryKV {
	s := &MemoryKV{
		entries:      make(map[string]kvEntry),
		now:          time.Now,
		cleanupEvery: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.expired(ent) {
		delete(s.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(ent.value))
	copy(out, ent.value)
	return out, true, nil
}

func (s *MemoryKV) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ent := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		ent.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = ent
	s.mu.Unlock()
	return nil
}

func (s *MemoryKV) Ping(context.Context) error { return nil }

func (s *MemoryKV) expired(ent kvEntry) bool {
	return !ent.expiresAt.IsZero() && !s.now().Before(ent.expiresAt)
}

// Cleanup remove entradas fisicamente expiradas.
func (s *MemoryKV) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if s.expired(ent) {
			delete(s.entries, k)
		}
	}
}

// Len devolve o número de entradas (inclui expiradas ainda não limpas).
func (s *MemoryKV) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor inicia uma goroutine que limpa entradas expiradas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryKV) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
