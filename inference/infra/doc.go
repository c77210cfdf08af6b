// Package infra contém implementações concretas dos contratos do pacote domain.
//
// Exemplos:
//   - RedisKV / MemoryKV: backing store get/put com TTL
//   - KVPoolStateStore: agregado do pool serializado em JSON sobre o KV
//   - RateStore: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
//   - RedisStatsStore / MemoryStatsStore / OtelStats: estatísticas
//   - GeminiClient: cliente HTTP da API de inferência
package infra
