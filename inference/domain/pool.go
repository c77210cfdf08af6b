package domain

import "time"

// DefaultCooldown é a janela de exclusão após uma falha de cota.
const DefaultCooldown = 30 * 24 * time.Hour

// PoolState é o agregado persistido do pool de credenciais.
//
// CurrentIndex aponta para a credencial preferida na próxima seleção.
// PermanentFails só cresce: nenhuma operação remove uma entrada.
type PoolState struct {
	CurrentIndex   int
	Cooldowns      map[Credential]time.Time
	PermanentFails map[Credential]struct{}
}

// NewPoolState devolve o estado inicial (criado preguiçosamente no primeiro acesso).
func NewPoolState() PoolState {
	return PoolState{
		Cooldowns:      make(map[Credential]time.Time),
		PermanentFails: make(map[Credential]struct{}),
	}
}

// Normalize garante mapas não nulos e o ponteiro dentro de [0, n).
// Necessário quando a lista de credenciais muda entre deploys.
func (s *PoolState) Normalize(n int) {
	if s.Cooldowns == nil {
		s.Cooldowns = make(map[Credential]time.Time)
	}
	if s.PermanentFails == nil {
		s.PermanentFails = make(map[Credential]struct{})
	}
	if n <= 0 {
		s.CurrentIndex = 0
		return
	}
	s.CurrentIndex %= n
	if s.CurrentIndex < 0 {
		s.CurrentIndex += n
	}
}

// IsPermanentlyFailed informa se a credencial foi excluída para sempre.
func (s PoolState) IsPermanentlyFailed(c Credential) bool {
	_, ok := s.PermanentFails[c]
	return ok
}

// InCooldown informa se a credencial tem cooldown ativo em now.
func (s PoolState) InCooldown(c Credential, now time.Time) bool {
	until, ok := s.Cooldowns[c]
	return ok && now.Before(until)
}

// Selection descreve como uma credencial foi escolhida.
type Selection int

const (
	SelectionNone Selection = iota
	SelectionHealthy
	// SelectionFallback: todas as utilizáveis estão em cooldown; devolvemos
	// uma mesmo assim (disponibilidade acima de respeitar a cota).
	SelectionFallback
)

// Select varre a lista ciclicamente a partir de CurrentIndex e escolhe a
// primeira credencial que não falhou permanentemente nem está em cooldown.
//
// Se nenhuma se qualifica, faz a varredura degradada: a primeira (na ordem
// da lista) que não falhou permanentemente, mesmo em cooldown. Se todas
// falharam permanentemente, devolve SelectionNone.
// Em qualquer escolha o ponteiro passa a apontar para a credencial devolvida.
func (s *PoolState) Select(creds []Credential, now time.Time) (Credential, Selection) {
	n := len(creds)
	if n == 0 {
		return "", SelectionNone
	}
	s.Normalize(n)

	for i := 0; i < n; i++ {
		idx := (s.CurrentIndex + i) % n
		c := creds[idx]
		if s.IsPermanentlyFailed(c) || s.InCooldown(c, now) {
			continue
		}
		s.CurrentIndex = idx
		return c, SelectionHealthy
	}

	for idx, c := range creds {
		if s.IsPermanentlyFailed(c) {
			continue
		}
		s.CurrentIndex = idx
		return c, SelectionFallback
	}
	return "", SelectionNone
}

// Transition descreve a mudança de estado causada por RecordFailure.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionCooldown
	TransitionPermanent
)

func (t Transition) String() string {
	switch t {
	case TransitionCooldown:
		return "cooldown"
	case TransitionPermanent:
		return "permanent"
	default:
		return "none"
	}
}

// RecordFailure aplica a política de falhas:
//
//   - FailureRateLimit: sem cooldown, arma um por `cooldown` a partir de now;
//     com cooldown já vencido, escala para falha permanente; com cooldown
//     ativo, nada muda.
//   - FailureInvalidCredential: falha permanente imediata.
//   - FailureOther: nada muda.
//
// Em todos os casos o ponteiro avança uma posição (módulo n), mesmo que a
// credencial reportada não seja a apontada.
func (s *PoolState) RecordFailure(creds []Credential, c Credential, class FailureClass, now time.Time, cooldown time.Duration) Transition {
	n := len(creds)
	s.Normalize(n)
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	t := TransitionNone
	switch class {
	case FailureRateLimit:
		if s.IsPermanentlyFailed(c) {
			break
		}
		until, ok := s.Cooldowns[c]
		switch {
		case !ok:
			s.Cooldowns[c] = now.Add(cooldown)
			t = TransitionCooldown
		case !now.Before(until):
			delete(s.Cooldowns, c)
			s.PermanentFails[c] = struct{}{}
			t = TransitionPermanent
		}
	case FailureInvalidCredential:
		if !s.IsPermanentlyFailed(c) {
			s.PermanentFails[c] = struct{}{}
			delete(s.Cooldowns, c)
			t = TransitionPermanent
		}
	}

	if n > 0 {
		s.CurrentIndex = (s.CurrentIndex + 1) % n
	}
	return t
}

// Available conta as credenciais selecionáveis sem fallback em now.
func (s PoolState) Available(creds []Credential, now time.Time) int {
	count := 0
	for _, c := range creds {
		if s.IsPermanentlyFailed(c) || s.InCooldown(c, now) {
			continue
		}
		count++
	}
	return count
}
