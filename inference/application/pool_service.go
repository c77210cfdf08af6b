package application

import (
	"context"
	"fmt"
	"log"
	"time"

	"inference-gateway/inference/domain"
)

// CredentialPool seleciona credenciais e registra falhas fazendo
// read-modify-write do agregado inteiro no PoolStateStore.
//
// Não há compare-and-swap: dois processos concorrentes podem perder a
// atualização um do outro (o último a gravar vence). Isso é aceito em troca
// de latência; ver domain.PoolStateStore.
type CredentialPool struct {
	Credentials []domain.Credential
	Store       domain.PoolStateStore
	Stats       domain.StatsStore
	// Cooldown padrão: domain.DefaultCooldown (30 dias).
	Cooldown time.Duration
	Now      func() time.Time
}

// Select devolve a próxima credencial utilizável e persiste o ponteiro.
// Devolve domain.ErrNoCredential quando todas falharam permanentemente.
func (p CredentialPool) Select(ctx context.Context) (domain.Credential, error) {
	if len(p.Credentials) == 0 {
		return "", domain.ErrNoCredential
	}

	st, err := p.Store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("select credential: %w", err)
	}

	cred, sel := st.Select(p.Credentials, nowOr(p.Now))
	switch sel {
	case domain.SelectionNone:
		log.Printf("[CredentialPool] all %d credentials permanently failed", len(p.Credentials))
		p.record(ctx, domain.OutcomeNoCredential)
		return "", domain.ErrNoCredential
	case domain.SelectionFallback:
		log.Printf("[CredentialPool] all usable credentials cooling down, falling back to %s", cred.Redacted())
		p.record(ctx, domain.OutcomeFallback)
	}

	// a seleção já foi feita; falha ao persistir o ponteiro não impede a chamada
	if err := p.Store.Save(ctx, st); err != nil {
		log.Printf("[CredentialPool] failed to persist pointer: %v", err)
	}
	return cred, nil
}

// ReportFailure classifica o status HTTP e aplica a política de falhas.
func (p CredentialPool) ReportFailure(ctx context.Context, cred domain.Credential, status int) error {
	return p.ReportClass(ctx, cred, domain.ClassifyStatus(status))
}

// ReportClass aplica a política para uma classe já determinada.
func (p CredentialPool) ReportClass(ctx context.Context, cred domain.Credential, class domain.FailureClass) error {
	if len(p.Credentials) == 0 {
		return nil
	}

	st, err := p.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("report failure: %w", err)
	}

	tr := st.RecordFailure(p.Credentials, cred, class, nowOr(p.Now), p.Cooldown)
	switch tr {
	case domain.TransitionCooldown:
		log.Printf("[CredentialPool] %s cooling down until %s (%s)",
			cred.Redacted(), st.Cooldowns[cred].UTC().Format(time.RFC3339), class)
		p.record(ctx, domain.OutcomeCooldown)
	case domain.TransitionPermanent:
		log.Printf("[CredentialPool] %s permanently failed (%s)", cred.Redacted(), class)
		p.record(ctx, domain.OutcomePermanent)
	}

	if err := p.Store.Save(ctx, st); err != nil {
		return fmt.Errorf("report failure: %w", err)
	}
	return nil
}

// PoolStatus resume o pool para health checks.
type PoolStatus struct {
	Total           int
	Available       int
	CoolingDown     int
	PermanentlyDown int
	CurrentIndex    int
}

func (p CredentialPool) Status(ctx context.Context) (PoolStatus, error) {
	st, err := p.Store.Load(ctx)
	if err != nil {
		return PoolStatus{}, err
	}
	st.Normalize(len(p.Credentials))

	now := nowOr(p.Now)
	out := PoolStatus{Total: len(p.Credentials), CurrentIndex: st.CurrentIndex}
	for _, c := range p.Credentials {
		switch {
		case st.IsPermanentlyFailed(c):
			out.PermanentlyDown++
		case st.InCooldown(c, now):
			out.CoolingDown++
		default:
			out.Available++
		}
	}
	return out, nil
}

func (p CredentialPool) record(ctx context.Context, outcome string) {
	if p.Stats == nil {
		return
	}
	_ = p.Stats.Record(ctx, domain.StatsEvent{Op: domain.OpPool, Outcome: outcome, At: nowOr(p.Now)})
}
