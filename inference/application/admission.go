package application

import (
	"context"
	"time"

	"inference-gateway/inference/domain"
)

// Admission concentra o controle de entrada dos chamadores: rate limit por
// chave e limite de requisições em andamento. Não sabe nada de HTTP.
type Admission struct {
	Limits     domain.LimiterStore
	RetryAfter time.Duration

	Slots          domain.SlotPool
	AcquireTimeout time.Duration
}

// Decide devolve allow/deny para a chave do chamador.
func (a Admission) Decide(key domain.Key) domain.Decision {
	if a.Limits == nil {
		return domain.Decision{Allowed: true}
	}
	retry := a.RetryAfter
	if retry <= 0 {
		retry = 1 * time.Second
	}

	lim := a.Limits.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}

// Acquire tenta adquirir uma vaga.
// - AcquireTimeout <= 0: espera até o ctx encerrar.
// - AcquireTimeout > 0: espera no máximo esse tempo.
func (a Admission) Acquire(ctx context.Context) (func(), bool) {
	if a.Slots == nil {
		return func() {}, true
	}
	if a.AcquireTimeout <= 0 {
		return a.Slots.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, a.AcquireTimeout)
	defer cancel()
	return a.Slots.Acquire(acqCtx)
}
