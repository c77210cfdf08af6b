package domain

import (
	"regexp"
	"strings"
	"time"
)

// NotFound é a sentinela devolvida quando nenhuma cor válida pôde ser derivada.
// Nunca é gravada no cache.
const NotFound = "NOT_FOUND"

// Janelas padrão do cache: a expiração lógica é a fonte da verdade; o TTL
// físico do store é só limpeza e precisa ser maior que a lógica.
const (
	DefaultCacheTTL      = 30 * 24 * time.Hour
	DefaultCacheStoreTTL = 31 * 24 * time.Hour
)

var colorCodePattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidColorCode aceita "#" seguido de exatamente 3 ou 6 dígitos hexadecimais.
func ValidColorCode(s string) bool {
	return colorCodePattern.MatchString(s)
}

// NormalizeColorCode recorta a resposta crua do upstream e devolve o código
// validado ou NotFound.
func NormalizeColorCode(raw string) string {
	v := strings.TrimSpace(raw)
	if ValidColorCode(v) {
		return v
	}
	return NotFound
}

// CacheEntry é um resultado cacheado com expiração lógica absoluta.
type CacheEntry struct {
	Value  string
	Expiry time.Time
}

// Fresh informa se a entrada ainda vale em now (estritamente antes da expiração).
func (e CacheEntry) Fresh(now time.Time) bool {
	return e.Expiry.After(now)
}
