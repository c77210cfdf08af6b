package application

import (
	"context"
	"errors"
	"log"
	"time"

	"inference-gateway/inference/domain"
)

// DefaultUpstreamTimeout é o limite fixo de cada chamada ao upstream.
const DefaultUpstreamTimeout = 15 * time.Second

// UpstreamService aplica a política em volta do domain.Upstream: escolhe a
// credencial, limita o tempo, reporta falhas HTTP ao pool e valida a resposta
// da classificação. Não há retry dentro da mesma requisição.
type UpstreamService struct {
	Upstream domain.Upstream
	Pool     CredentialPool
	// Slots limita chamadas simultâneas ao upstream (opcional).
	Slots   domain.SlotPool
	Timeout time.Duration
	// PenalizeTimeouts faz timeouts contarem como FailureOther no pool
	// (só rotaciona o ponteiro). Padrão: timeouts não entram na contabilidade.
	PenalizeTimeouts bool
	// ReportTimeout limita o relato de falha ao pool, que roda desligado do
	// ctx do chamador; padrão DefaultStoreTimeout.
	ReportTimeout time.Duration
	Stats         domain.StatsStore
	Now              func() time.Time
}

// Extract devolve o texto extraído da imagem.
func (s UpstreamService) Extract(ctx context.Context, image []byte, mimeType string) (string, error) {
	return s.call(ctx, domain.OpExtract, func(ctx context.Context, cred domain.Credential) (string, error) {
		return s.Upstream.Extract(ctx, cred, image, mimeType)
	})
}

// Classify devolve um código de cor validado ou domain.NotFound.
// Resposta fora da gramática nunca é erro.
func (s UpstreamService) Classify(ctx context.Context, label string) (string, error) {
	return s.call(ctx, domain.OpClassify, func(ctx context.Context, cred domain.Credential) (string, error) {
		raw, err := s.Upstream.Classify(ctx, cred, label)
		if err != nil {
			return "", err
		}
		return domain.NormalizeColorCode(raw), nil
	})
}

// Source é a tag de proveniência das respostas.
func (s UpstreamService) Source() string {
	if s.Upstream == nil {
		return ""
	}
	return s.Upstream.Name()
}

func (s UpstreamService) call(ctx context.Context, op string, fn func(context.Context, domain.Credential) (string, error)) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := nowOr(s.Now)

	if s.Slots != nil {
		release, ok := s.Slots.Acquire(callCtx)
		if !ok {
			err := s.ctxError(ctx, callCtx, op)
			s.record(ctx, op, outcomeFor(err), 0, start)
			return "", err
		}
		defer release()
	}

	cred, err := s.Pool.Select(callCtx)
	if err != nil {
		outcome := domain.OutcomeError
		switch {
		case errors.Is(err, domain.ErrNoCredential):
			outcome = domain.OutcomeNoCredential
		case callCtx.Err() != nil:
			// store lento esgotou o orçamento antes de chegar ao upstream
			log.Printf("[Upstream] %s: credential selection did not finish: %v", op, err)
			err = s.ctxError(ctx, callCtx, op)
			outcome = outcomeFor(err)
		}
		s.record(ctx, op, outcome, 0, start)
		return "", err
	}

	out, err := fn(callCtx, cred)
	if err == nil {
		outcome := domain.OutcomeOK
		if op == domain.OpClassify && out == domain.NotFound {
			outcome = domain.OutcomeNotFound
		}
		s.record(ctx, op, outcome, 0, start)
		return out, nil
	}

	var ue *domain.UpstreamError
	switch {
	case errors.As(err, &ue):
		// o callCtx pode já ter expirado; a contabilidade não deve se perder por isso
		rctx, rcancel := detached(ctx, limitOr(s.ReportTimeout, DefaultStoreTimeout))
		defer rcancel()
		if rerr := s.Pool.ReportFailure(rctx, cred, ue.StatusCode); rerr != nil {
			log.Printf("[Upstream] %s: failed to report failure for %s: %v", op, cred.Redacted(), rerr)
		}
		log.Printf("[Upstream] %s failed with %s: status=%d", op, cred.Redacted(), ue.StatusCode)
		s.record(ctx, op, domain.OutcomeUpstreamErr, ue.StatusCode, start)
		return "", err

	case errors.Is(err, context.DeadlineExceeded) && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		terr := &domain.TimeoutError{Op: op, Err: err}
		log.Printf("[Upstream] %s timed out after %s with %s", op, timeout, cred.Redacted())
		if s.PenalizeTimeouts {
			rctx, rcancel := detached(ctx, limitOr(s.ReportTimeout, DefaultStoreTimeout))
			defer rcancel()
			if rerr := s.Pool.ReportClass(rctx, cred, domain.FailureOther); rerr != nil {
				log.Printf("[Upstream] %s: failed to report timeout for %s: %v", op, cred.Redacted(), rerr)
			}
		}
		s.record(ctx, op, domain.OutcomeTimeout, 0, start)
		return "", terr

	default:
		log.Printf("[Upstream] %s failed with %s: %v", op, cred.Redacted(), err)
		s.record(ctx, op, domain.OutcomeError, 0, start)
		return "", err
	}
}

// ctxError converte o fim do callCtx (sem ter chegado ao upstream) em erro.
func (s UpstreamService) ctxError(parent, callCtx context.Context, op string) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	return &domain.TimeoutError{Op: op, Err: callCtx.Err()}
}

func outcomeFor(err error) string {
	var te *domain.TimeoutError
	if errors.As(err, &te) {
		return domain.OutcomeTimeout
	}
	return domain.OutcomeError
}

func (s UpstreamService) record(ctx context.Context, op, outcome string, status int, start time.Time) {
	if s.Stats == nil {
		return
	}
	now := nowOr(s.Now)
	_ = s.Stats.Record(ctx, domain.StatsEvent{
		Op:         op,
		Outcome:    outcome,
		StatusCode: status,
		Duration:   now.Sub(start),
		At:         now,
	})
}
