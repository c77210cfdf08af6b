package domain

// Contratos do controle de entrada (rate limit por chamador e concorrência).

import (
	"context"
	"time"
)

// Key identifica um chamador (IP, header etc).
type Key string

// Limiter decide se uma ação é permitida agora.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor para o header Retry-After quando bloquear.
	RetryAfter time.Duration
}

// SlotPool é um recurso de capacidade finita (requests em andamento, chamadas ao upstream).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar; o release
// devolvido deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
