package infra

import (
	"context"
	"sync"

	"inference-gateway/inference/domain"
)

// MemoryStatsStore conta eventos em memória por "op:outcome".
// Útil para testes e desenvolvimento; não faz expiração.
type MemoryStatsStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	byStatus map[int]int64
	events   []domain.StatsEvent
	keep     int
}

type MemoryStatsOption func(*MemoryStatsStore)

// WithKeepEvents guarda os últimos n eventos (0 = nenhum).
func WithKeepEvents(n int) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.keep = n }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		counts:   make(map[string]int64),
		byStatus: make(map[int]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[ev.Op+":"+ev.Outcome]++
	if ev.StatusCode != 0 {
		s.byStatus[ev.StatusCode]++
	}
	if s.keep > 0 {
		s.events = append(s.events, ev)
		if len(s.events) > s.keep {
			s.events = s.events[len(s.events)-s.keep:]
		}
	}
	return nil
}

// Count devolve o contador de op/outcome.
func (s *MemoryStatsStore) Count(op, outcome string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op+":"+outcome]
}

func (s *MemoryStatsStore) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByStatus() map[int]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int64, len(s.byStatus))
	for k, v := range s.byStatus {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) Events() []domain.StatsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StatsEvent(nil), s.events...)
}
