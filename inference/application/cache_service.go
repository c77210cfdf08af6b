package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"inference-gateway/inference/domain"
)

var (
	// ErrNotCacheable: apenas códigos de cor validados são gravados.
	ErrNotCacheable = errors.New("value is not cacheable")
	// ErrStoreTTLTooShort: o TTL físico precisa exceder a expiração lógica.
	ErrStoreTTLTooShort = errors.New("store ttl must exceed logical ttl")
)

const cacheKeyPrefix = "hex:"

// cacheRecord é o formato persistido: { "value": "#...", "expiry": <unix ms> }.
type cacheRecord struct {
	Value  string `json:"value"`
	Expiry int64  `json:"expiry"`
}

// ResponseCache guarda classificações por chave canônica.
//
// Dois relógios independentes: a expiração lógica (gravada no registro e
// conferida aqui) é a fonte da verdade; o TTL do store é só limpeza e é
// sempre maior, então o registro nunca some antes da checagem lógica.
type ResponseCache struct {
	KV       domain.KVStore
	TTL      time.Duration
	StoreTTL time.Duration
	// OpTimeout limita cada Get/Put no store; padrão DefaultStoreTimeout.
	OpTimeout time.Duration
	Stats     domain.StatsStore
	Now       func() time.Time
}

// NewResponseCache valida a relação entre os dois TTLs.
// Zeros usam os padrões (30 e 31 dias).
func NewResponseCache(kv domain.KVStore, ttl, storeTTL time.Duration) (ResponseCache, error) {
	if ttl <= 0 {
		ttl = domain.DefaultCacheTTL
	}
	if storeTTL <= 0 {
		storeTTL = domain.DefaultCacheStoreTTL
	}
	if storeTTL <= ttl {
		return ResponseCache{}, fmt.Errorf("%w: store=%s logical=%s", ErrStoreTTLTooShort, storeTTL, ttl)
	}
	return ResponseCache{KV: kv, TTL: ttl, StoreTTL: storeTTL}, nil
}

// Lookup devolve (valor, true) apenas se a entrada existe e a expiração
// lógica é estritamente posterior a agora. Com bypass, sempre miss sem ler o store.
// Erros do store viram miss.
func (c ResponseCache) Lookup(ctx context.Context, key string, bypass bool) (string, bool) {
	if bypass {
		c.record(ctx, domain.OutcomeBypass)
		return "", false
	}
	if key == "" {
		return "", false
	}

	getCtx, cancel := context.WithTimeout(ctx, limitOr(c.OpTimeout, DefaultStoreTimeout))
	defer cancel()
	raw, ok, err := c.KV.Get(getCtx, cacheKeyPrefix+key)
	if err != nil {
		log.Printf("[ResponseCache] get %q failed: %v", key, err)
		c.record(ctx, domain.OutcomeError)
		return "", false
	}
	if !ok {
		c.record(ctx, domain.OutcomeMiss)
		return "", false
	}

	var rec cacheRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Printf("[ResponseCache] corrupt entry %q: %v", key, err)
		c.record(ctx, domain.OutcomeError)
		return "", false
	}

	entry := domain.CacheEntry{Value: rec.Value, Expiry: time.UnixMilli(rec.Expiry)}
	if !entry.Fresh(nowOr(c.Now)) {
		c.record(ctx, domain.OutcomeMiss)
		return "", false
	}
	c.record(ctx, domain.OutcomeHit)
	return entry.Value, true
}

// Store grava o valor com expiração lógica TTL e pede ao store que retenha
// o registro por StoreTTL.
func (c ResponseCache) Store(ctx context.Context, key, value string) error {
	if key == "" || !domain.ValidColorCode(value) {
		return ErrNotCacheable
	}
	ttl, storeTTL := c.TTL, c.StoreTTL
	if ttl <= 0 {
		ttl = domain.DefaultCacheTTL
	}
	if storeTTL <= ttl {
		storeTTL = ttl + 24*time.Hour
	}

	rec := cacheRecord{Value: value, Expiry: nowOr(c.Now).Add(ttl).UnixMilli()}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	putCtx, cancel := context.WithTimeout(ctx, limitOr(c.OpTimeout, DefaultStoreTimeout))
	defer cancel()
	if err := c.KV.Put(putCtx, cacheKeyPrefix+key, b, storeTTL); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

func (c ResponseCache) record(ctx context.Context, outcome string) {
	if c.Stats == nil {
		return
	}
	_ = c.Stats.Record(ctx, domain.StatsEvent{Op: domain.OpCache, Outcome: outcome, At: nowOr(c.Now)})
}
