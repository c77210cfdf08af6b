// Package domain define os tipos e contratos do gateway de inferência:
// credenciais e o estado do pool, chave canônica do cache, erros e as
// interfaces de infraestrutura (KV, upstream, estatísticas, limitadores).
//
// Este pacote não depende de net/http nem de implementações concretas.
// O estado do pool é um valor explícito: as operações recebem e devolvem
// PoolState, o que permite montar qualquer estado diretamente nos testes.
package domain
