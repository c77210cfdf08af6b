// Package application contém os casos de uso do gateway: seleção e
// contabilidade de falhas do pool de credenciais, cache de respostas com
// expiração lógica, política de chamada ao upstream (timeout, classificação)
// e a consulta de cor com cache.
//
// Depende apenas do pacote domain e não conhece net/http.
package application
