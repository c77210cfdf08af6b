// Package inference fornece os adapters HTTP (net/http) do gateway de inferência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos (pool de credenciais, chave canônica, erros)
//   - application: casos de uso (seleção/falhas do pool, cache, upstream, consulta de cor)
//   - infra: implementações concretas (Redis, memória, x/time/rate, cliente Gemini, OTel)
//   - inference (este pacote): dispatcher HTTP, middlewares e tradução de erros para status
//
// Fluxo de GET /hex:
//
//  1. Canonicaliza o rótulo e consulta o cache (a menos que bypassCache=1)
//  2. Em miss, seleciona uma credencial e chama o upstream (timeout fixo)
//  3. Em falha HTTP, reporta ao pool (cooldown / falha permanente / rotação)
//  4. Código de cor válido é gravado no cache; qualquer falha vira NOT_FOUND com 200
//
// POST /ocr segue o mesmo caminho de credencial, sem cache, e propaga erros
// com status (400 entrada inválida, 500 upstream/timeout).
//
// Variáveis de ambiente do binário (cmd/gateway) controlam o comportamento,
// como UPSTREAM_API_KEYS, UPSTREAM_TIMEOUT, REDIS_ADDR e RATE_RPS.
package inference
