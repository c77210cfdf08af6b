package domain

import (
	"context"
	"time"
)

// KVStore é o backing store externo: get/put por chave única, com TTL opcional.
//
// Não há compare-and-swap nem transações multi-chave; leituras podem estar
// desatualizadas em relação a escritores concorrentes.
type KVStore interface {
	// Get devolve (nil, false, nil) quando a chave não existe.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put grava o valor; ttl <= 0 significa sem expiração física.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// PoolStateStore persiste o agregado PoolState inteiro (read-modify-write).
//
// Observação: sem token de versão, dois escritores concorrentes podem perder
// atualizações (o último vence). Uma implementação com versão/etag entraria aqui.
type PoolStateStore interface {
	// Load devolve NewPoolState() quando ainda não existe estado persistido.
	Load(ctx context.Context) (PoolState, error)
	Save(ctx context.Context, s PoolState) error
}
