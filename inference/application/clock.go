package application

import (
	"context"
	"time"
)

// DefaultStoreTimeout limita cada operação isolada no backing store
// (leitura/escrita do cache, relato de falha ao pool).
const DefaultStoreTimeout = 2 * time.Second

func nowOr(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now()
}

func limitOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// detached ignora o cancelamento do chamador, mas nunca fica sem deadline.
func detached(ctx context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), limit)
}
