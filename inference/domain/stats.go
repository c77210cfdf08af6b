package domain

import (
	"context"
	"time"
)

// Operações registradas em StatsEvent.Op.
const (
	OpExtract  = "extract"
	OpClassify = "classify"
	OpPool     = "pool"
	OpCache    = "cache"
	OpAdmit    = "admission"
)

// Resultados registrados em StatsEvent.Outcome.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeUpstreamErr  = "upstream_error"
	OutcomeTimeout      = "timeout"
	OutcomeNoCredential = "no_credential"
	OutcomeError        = "error"

	OutcomeCooldown  = "cooldown"
	OutcomePermanent = "permanent"
	OutcomeFallback  = "fallback"

	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeBypass = "bypass"

	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// StatsEvent é um evento do gateway (chamada ao upstream, transição do pool,
// resultado do cache).
//
// Observação: cuidado com cardinalidade; não colocar credenciais nem rótulos aqui.
type StatsEvent struct {
	Op         string
	Outcome    string
	StatusCode int
	Duration   time.Duration
	At         time.Time
}

// StatsStore é a estratégia de persistência de estatísticas.
//
// Implementações podem gravar em Redis, memória, OpenTelemetry etc.
// Quem chama trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

// MultiStats repassa o evento para vários stores e devolve o primeiro erro.
type MultiStats []StatsStore

func (m MultiStats) Record(ctx context.Context, ev StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
