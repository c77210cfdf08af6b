package domain

import "net/http"

// Credential é uma chave de API opaca, a unidade de rotação do pool.
// Duas credenciais são a mesma se as strings forem iguais.
type Credential string

// Redacted devolve uma forma segura para logs (apenas os 4 últimos caracteres).
func (c Credential) Redacted() string {
	s := string(c)
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// FailureClass classifica uma falha do upstream para fins de contabilidade do pool.
type FailureClass int

const (
	// FailureOther não altera cooldowns nem falhas permanentes.
	FailureOther FailureClass = iota
	// FailureRateLimit indica cota esgotada (HTTP 429).
	FailureRateLimit
	// FailureInvalidCredential indica chave inválida ou proibida (HTTP 401/403).
	FailureInvalidCredential
)

func (c FailureClass) String() string {
	switch c {
	case FailureRateLimit:
		return "rate_limit"
	case FailureInvalidCredential:
		return "invalid_credential"
	default:
		return "other"
	}
}

// ClassifyStatus mapeia o status HTTP devolvido pelo upstream para uma FailureClass.
func ClassifyStatus(status int) FailureClass {
	switch status {
	case http.StatusTooManyRequests:
		return FailureRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureInvalidCredential
	default:
		return FailureOther
	}
}
